package visit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

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
	staff := auth.RequireRole(auth.RoleNurse, auth.RoleDoctor, auth.RolePharmacist)

	visits := api.Group("/visits", staff)
	visits.GET("", h.ListVisits)
	visits.POST("", h.CreateVisit)
	visits.PUT("/:id/status", h.UpdateStatus)
	visits.PATCH("/:id/attachment", h.AttachToVisit)

	vitals := api.Group("/vitals", staff)
	vitals.POST("", h.RecordVitals)
	vitals.GET("/preview/:visitId", h.GetVitals)

	rx := api.Group("/prescriptions")
	rx.GET("", h.ListPrescriptions, auth.RequireRole(auth.RoleDoctor, auth.RolePharmacist))
	rx.POST("", h.SavePrescription, auth.RequireRole(auth.RoleDoctor))
	rx.PATCH("/:id/sign-off", h.SignOff, auth.RequireRole(auth.RoleDoctor))
	rx.PATCH("/:id/dispense", h.Dispense, auth.RequireRole(auth.RolePharmacist))
	rx.PATCH("/:id/attachment", h.AttachToPrescription, auth.RequireRole(auth.RoleDoctor))
}

func pathID(c echo.Context, name, what string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s id", what)
	}
	return id, nil
}

func (h *Handler) ListVisits(c echo.Context) error {
	f := ListFilter{DoctorName: c.QueryParam("doctorName")}
	if s := strings.TrimSpace(c.QueryParam("patientId")); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return apperr.Validation("invalid patientId")
		}
		f.PatientID = id
	}
	if s := strings.TrimSpace(c.QueryParam("date")); s != "" {
		day, err := time.Parse("2006-01-02", s)
		if err != nil {
			return apperr.Validation("date must be YYYY-MM-DD")
		}
		f.Day = &day
	}

	items, err := h.svc.ListVisits(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateVisit(c echo.Context) error {
	var req CreateVisitRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	v, err := h.svc.CreateVisit(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c, "id", "visit")
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	v, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) AttachToVisit(c echo.Context) error {
	id, err := pathID(c, "id", "visit")
	if err != nil {
		return err
	}
	var req AttachmentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.AttachToVisit(c.Request().Context(), id, req.AttachmentPath); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Attachment saved"})
}

func (h *Handler) RecordVitals(c echo.Context) error {
	var req RecordVitalsRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	v, err := h.svc.RecordVitals(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVitals(c echo.Context) error {
	id, err := pathID(c, "visitId", "visit")
	if err != nil {
		return err
	}
	v, err := h.svc.GetVitals(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	items, err := h.svc.ListPrescriptions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SavePrescription(c echo.Context) error {
	var req SavePrescriptionRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	res, err := h.svc.SavePrescription(c.Request().Context(), req)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

func (h *Handler) SignOff(c echo.Context) error {
	id, err := pathID(c, "id", "prescription")
	if err != nil {
		return err
	}
	if err := h.svc.SignOff(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Prescription signed off"})
}

func (h *Handler) Dispense(c echo.Context) error {
	id, err := pathID(c, "id", "prescription")
	if err != nil {
		return err
	}
	if err := h.svc.Dispense(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Prescription dispensed"})
}

func (h *Handler) AttachToPrescription(c echo.Context) error {
	id, err := pathID(c, "id", "prescription")
	if err != nil {
		return err
	}
	var req AttachmentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.AttachToPrescription(c.Request().Context(), id, req.AttachmentPath); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Attachment saved"})
}
