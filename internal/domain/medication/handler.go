package medication

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/drugs", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RolePharmacist))
	g.GET("", h.Search)
	g.POST("", h.Add)
}

// Search handles GET /api/drugs?query=...
func (h *Handler) Search(c echo.Context) error {
	out, err := h.svc.Search(c.Request().Context(), c.QueryParam("query"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Add(c echo.Context) error {
	var d Drug
	if err := c.Bind(&d); err != nil {
		return apperr.Validation("invalid request body")
	}
	drug, created, err := h.svc.Add(c.Request().Context(), d)
	if err != nil {
		return err
	}
	if created {
		return c.JSON(http.StatusCreated, drug)
	}
	return c.JSON(http.StatusOK, drug)
}
