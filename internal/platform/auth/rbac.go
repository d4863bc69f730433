package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Clinic roles carried in the token's role claim.
const (
	RoleDoctor     = "Doctor"
	RoleNurse      = "Nurse"
	RolePharmacist = "Pharmacist"
)

// ValidRole reports whether role is one of the clinic roles.
func ValidRole(role string) bool {
	switch role {
	case RoleDoctor, RoleNurse, RolePharmacist:
		return true
	}
	return false
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			if len(userRoles) == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
