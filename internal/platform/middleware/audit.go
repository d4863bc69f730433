package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careconnect/clinic/internal/platform/auth"
)

// AuditEntry records who touched which clinical record, when and how.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string
	ResourceID string
	Action     string // read, create, update
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere other than the log stream.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit emits a structured "phi_access" entry for every /api/ request once
// the handler has produced a status. Optional recorders receive the same
// entry.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(c.Request().Context()),
				UserRoles:  auth.RolesFromContext(c.Request().Context()),
				Resource:   resourceFromPath(req.URL.Path),
				ResourceID: resourceID(c),
				Action:     httpMethodToAction(req.Method),
				IPAddress:  c.RealIP(),
				Path:       req.URL.Path,
				Method:     req.Method,
				Timestamp:  time.Now().UTC(),
				StatusCode: c.Response().Status,
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return nil
		}
	}
}

// httpMethodToAction maps HTTP methods to audit action codes.
func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceFromPath returns the first segment under /api/:
// /api/visits/12/status -> visits.
func resourceFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/api/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "unknown"
	}
	return rest
}

// resourceID returns the first route parameter value, if any.
func resourceID(c echo.Context) string {
	names := c.ParamNames()
	values := c.ParamValues()
	for i := range names {
		if i < len(values) && values[i] != "" {
			return values[i]
		}
	}
	if pid := c.QueryParam("patientId"); pid != "" {
		return pid
	}
	return ""
}
