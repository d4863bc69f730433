package terminology

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
	g := api.Group("/icd11", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RolePharmacist))
	g.GET("", h.SearchLocal)
	g.POST("", h.SaveLocal)
	g.POST("/bulk", h.BulkImport)
	g.GET("/external", h.SearchExternal)
}

// SearchLocal handles GET /api/icd11?search=...
func (h *Handler) SearchLocal(c echo.Context) error {
	out, err := h.svc.SearchLocal(c.Request().Context(), c.QueryParam("search"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) SaveLocal(c echo.Context) error {
	var in CodeInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	res, err := h.svc.SaveLocal(c.Request().Context(), in)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

func (h *Handler) BulkImport(c echo.Context) error {
	var items []CodeInput
	if err := c.Bind(&items); err != nil {
		return apperr.Validation("request body must be a list of diagnoses")
	}
	res, err := h.svc.BulkImport(c.Request().Context(), items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// SearchExternal handles GET /api/icd11/external?q=...
func (h *Handler) SearchExternal(c echo.Context) error {
	out, err := h.svc.SearchExternal(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
