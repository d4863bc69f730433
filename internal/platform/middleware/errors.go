package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careconnect/clinic/internal/platform/apperr"
)

const internalErrorMessage = "internal server error"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorHandler renders errors as ErrorResponse. Classified service errors
// keep their message; anything else is logged in full and reported as a
// generic failure carrying the request id for correlation.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		rid, _ := c.Get("request_id").(string)
		status, msg := classify(err)

		if status >= http.StatusInternalServerError {
			evt := logger.Error()
			if status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout {
				evt = logger.Warn()
			}
			evt.Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, ErrorResponse{Message: msg, RequestID: rid})
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Str("request_id", rid).Msg("write error response")
		}
	}
}

func classify(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, http.StatusText(he.Code)
		}
		if m, ok := he.Message.(string); ok && m != "" {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "request timed out"
	}

	status := apperr.Status(err)
	msg := apperr.PublicMessage(err)
	if msg == "" || status == http.StatusInternalServerError {
		return http.StatusInternalServerError, internalErrorMessage
	}
	return status, msg
}
