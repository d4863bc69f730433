package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/careconnect/clinic/internal/platform/apperr"
)

func multipartRequest(t *testing.T, field, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := w.CreateFormFile(field, fileName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write(content)
	} else {
		w.WriteField("note", "no file here")
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHandler_UploadPDF(t *testing.T) {
	store := NewMemoryStore(0)
	h := NewHandler(store)
	e := echo.New()

	content := []byte("%PDF-1.7 discharge summary")
	rec := httptest.NewRecorder()
	c := e.NewContext(multipartRequest(t, "file", "summary.pdf", content), rec)

	if err := h.Upload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp UploadResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)

	rc, err := store.Open(context.Background(), resp.FilePath)
	if err != nil {
		t.Fatalf("stored file not found for %s: %v", resp.FilePath, err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, content) {
		t.Errorf("bytes did not round-trip")
	}
}

func TestHandler_RejectsExe(t *testing.T) {
	store := NewMemoryStore(0)
	h := NewHandler(store)
	e := echo.New()

	c := e.NewContext(multipartRequest(t, "file", "setup.exe", []byte("MZ")), httptest.NewRecorder())
	err := h.Upload(c)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("expected nothing stored")
	}
}

func TestHandler_MissingFile(t *testing.T) {
	h := NewHandler(NewMemoryStore(0))
	e := echo.New()

	c := e.NewContext(multipartRequest(t, "file", "", nil), httptest.NewRecorder())
	if err := h.Upload(c); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandler_TooLarge(t *testing.T) {
	h := NewHandler(NewMemoryStore(16))
	e := echo.New()

	c := e.NewContext(multipartRequest(t, "file", "big.png", bytes.Repeat([]byte("x"), 17)), httptest.NewRecorder())
	if err := h.Upload(c); apperr.Status(err) != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
}
