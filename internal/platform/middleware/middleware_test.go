package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	_ = RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesUnsafeHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = RequestID()(func(c echo.Context) error { return nil })(c)

	got := rec.Header().Get(RequestIDHeader)
	if got == "" || strings.Contains(got, " ") {
		t.Errorf("expected a generated id, got %q", got)
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-1")

	handler := func(c echo.Context) error {
		if zerolog.Ctx(c.Request().Context()).GetLevel() == zerolog.Disabled {
			t.Error("expected request logger on context")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := Logger(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("expected request_id req-1, got %v", entry["request_id"])
	}
	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("expected status 200, got %v", entry["status"])
	}
	if entry["level"] != "info" {
		t.Errorf("expected info level, got %v", entry["level"])
	}
}

func TestLogger_HandlesErrorBeforeLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/api/visits/9", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	}

	if err := Logger(logger)(handler)(c); err != nil {
		t.Fatalf("expected error to be handled, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected warn level for 4xx, got %s", buf.String())
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		panic("test panic")
	}

	err := Recovery(zerolog.Nop())(handler)(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	if status, msg := classify(err); status != http.StatusInternalServerError || msg != internalErrorMessage {
		t.Errorf("expected generic 500, got %d %q", status, msg)
	}
}

func TestRecovery_LogsToRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	reqLogger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/visits", nil)
	req = req.WithContext(reqLogger.WithContext(req.Context()))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/visits")

	_ = Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("nil map")
	})(c)

	out := buf.String()
	if !strings.Contains(out, "handler panicked") || !strings.Contains(out, "/api/visits") {
		t.Errorf("expected panic entry with route, got %s", out)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMetrics_HandlesError(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/api/drugs", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/drugs")

	err := Metrics()(func(c echo.Context) error {
		return errors.New("boom")
	})(c)
	if err != nil {
		t.Fatalf("expected nil after handling, got %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = SecurityHeaders()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)

	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s: expected %q, got %q", header, want, got)
		}
	}
}

func TestSecurityHeaders_Uploads(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/uploads/abc.pdf", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = SecurityHeaders()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)

	if got := rec.Header().Get("Cache-Control"); got != "private, max-age=300" {
		t.Errorf("expected private cache for uploads, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("expected SAMEORIGIN for uploads, got %q", got)
	}
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}
