package patient

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/careconnect/clinic/internal/platform/apperr"
	"github.com/careconnect/clinic/internal/platform/auth"
	"github.com/careconnect/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients", auth.RequireRole(auth.RoleNurse, auth.RoleDoctor, auth.RolePharmacist))
	g.GET("", h.ListPatients)
	g.GET("/:id", h.GetPatient)
	g.POST("", h.CreatePatient)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperr.Validation("invalid patient id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	pg.SetHeaders(c, total)
	return c.JSON(http.StatusOK, items)
}
