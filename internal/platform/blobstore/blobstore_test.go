package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/careconnect/clinic/internal/platform/apperr"
)

func TestStoredName_Extensions(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
		ext     string
	}{
		{"report.pdf", false, ".pdf"},
		{"scan.JPG", false, ".jpg"},
		{"photo.jpeg", false, ".jpeg"},
		{"xray.Png", false, ".png"},
		{"virus.exe", true, ""},
		{"noext", true, ""},
		{"", true, ""},
	}

	for _, tt := range tests {
		got, err := storedName(tt.name)
		if tt.wantErr {
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("%q: expected validation error, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.name, err)
			continue
		}
		if !strings.HasSuffix(got, tt.ext) {
			t.Errorf("%q: expected suffix %s, got %s", tt.name, tt.ext, got)
		}
		if len(got) != 36+len(tt.ext) {
			t.Errorf("%q: expected uuid name, got %s", tt.name, got)
		}
	}
}

func TestMemoryStore_SaveOpenRoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	content := []byte("%PDF-1.4 test")

	path, err := store.Save(context.Background(), "lab.pdf", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(path, PublicPrefix) || !strings.HasSuffix(path, ".pdf") {
		t.Errorf("unexpected path %s", path)
	}

	rc, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: %q", got)
	}
}

func TestMemoryStore_RejectsEmptyAndOversized(t *testing.T) {
	store := NewMemoryStore(8)

	if _, err := store.Save(context.Background(), "a.pdf", strings.NewReader("")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for empty file, got %v", err)
	}
	if _, err := store.Save(context.Background(), "a.pdf", strings.NewReader("123456789")); !errors.Is(err, apperr.ErrTooLarge) {
		t.Errorf("expected too large error, got %v", err)
	}
	if _, err := store.Save(context.Background(), "a.pdf", strings.NewReader("12345678")); err != nil {
		t.Errorf("exactly max bytes should be accepted: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored file, got %d", store.Len())
	}
}

func TestMemoryStore_OpenUnknown(t *testing.T) {
	store := NewMemoryStore(0)
	for _, p := range []string{"/uploads/missing.pdf", "/uploads/../etc/passwd", "/uploads/", "/uploads/.hidden"} {
		if _, err := store.Open(context.Background(), p); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", p, err)
		}
	}
}

func TestMemoryStore_ConcurrentSaves(t *testing.T) {
	store := NewMemoryStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Save(context.Background(), "x.png", strings.NewReader("png")); err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
	}
	wg.Wait()
	if store.Len() != 20 {
		t.Errorf("expected 20 files, got %d", store.Len())
	}
}

func TestDiskStore_SaveOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewDiskStore(dir, 1024)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	path, err := store.Save(context.Background(), "Scan.PDF", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(path, PublicPrefix)))
	if err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
	if string(onDisk) != "pdf bytes" {
		t.Errorf("unexpected content %q", onDisk)
	}

	rc, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc.Close()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the stored file, found %d entries", len(entries))
	}
}

func TestDiskStore_RejectsBadExtension(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 1024)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	if _, err := store.Save(context.Background(), "run.exe", strings.NewReader("MZ")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Errorf("expected nothing written, found %d entries", len(entries))
	}
}

func TestDiskStore_TooLargeLeavesNoFile(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	if _, err := store.Save(context.Background(), "a.png", strings.NewReader("12345")); !errors.Is(err, apperr.ErrTooLarge) {
		t.Errorf("expected too large, got %v", err)
	}
	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Errorf("expected nothing written, found %d entries", len(entries))
	}
}
