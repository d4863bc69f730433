package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careconnect/clinic/internal/platform/apperr"
	"github.com/careconnect/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the /auth routes. Login is public; the doctor list
// needs a token.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/login", h.Login)
	g.GET("/doctors", h.ListDoctors, auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RolePharmacist))
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.Doctors(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doctors)
}
