package terminology

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careconnect/clinic/internal/platform/auth"
	"github.com/careconnect/clinic/internal/platform/middleware"
)

func testServer(ext ExternalSearcher) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(zerolog.Nop())
	api := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), "2", "doctor@clinic.test", auth.RoleDoctor)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(newTestService(newMockRepo(seedCodes...), ext)).RegisterRoutes(api)
	return e
}

func send(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SearchLocal(t *testing.T) {
	e := testServer(nil)
	rec := send(e, http.MethodGet, "/api/icd11?search=influ", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []Code
	json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 1 || got[0].Code != "1C62" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = send(e, http.MethodGet, "/api/icd11", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", rec.Body.String())
	}
}

func TestHandler_SaveLocal(t *testing.T) {
	e := testServer(nil)
	if rec := send(e, http.MethodPost, "/api/icd11", `{"description":"Viral fever"}`); rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if rec := send(e, http.MethodPost, "/api/icd11", `{"description":"INFLUENZA"}`); rec.Code != http.StatusOK {
		t.Errorf("expected 200 for existing diagnosis, got %d", rec.Code)
	}
	if rec := send(e, http.MethodPost, "/api/icd11", `{"code":"X"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_BulkImport(t *testing.T) {
	e := testServer(nil)
	rec := send(e, http.MethodPost, "/api/icd11/bulk", `[{"description":"Gout"},{"description":"Pneumonia"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res ImportResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.ImportedCount != 1 || res.DuplicateCount != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	if rec := send(e, http.MethodPost, "/api/icd11/bulk", `[]`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty list, got %d", rec.Code)
	}
}

func TestHandler_SearchExternal_Degraded(t *testing.T) {
	e := testServer(&fakeSearcher{err: errTimeout})
	rec := send(e, http.MethodGet, "/api/icd11/external?q=flu", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "dial tcp") {
		t.Error("upstream error detail must not reach the client")
	}
}

var errTimeout = errors.New("dial tcp 10.0.0.1:443: i/o timeout")
