package blobstore

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careconnect/clinic/internal/platform/apperr"
	"github.com/careconnect/clinic/internal/platform/metrics"
)

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	FilePath string `json:"filePath"`
}

// Handler serves attachment uploads.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the upload route on an authenticated group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/upload", h.Upload)
}

func (h *Handler) Upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		metrics.RecordUpload(false)
		return apperr.Validation("No file uploaded")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	path, err := h.store.Save(c.Request().Context(), file.Filename, src)
	metrics.RecordUpload(err == nil)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UploadResponse{FilePath: path})
}
