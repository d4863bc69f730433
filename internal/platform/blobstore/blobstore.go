// Package blobstore stores file attachments for visits and prescriptions.
// It defines the Store interface, a disk-backed implementation used in
// production, an in-memory implementation for tests, and the Echo upload
// handler.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/careconnect/clinic/internal/platform/apperr"
)

// PublicPrefix is the URL prefix under which stored files are served.
const PublicPrefix = "/uploads/"

// DefaultMaxBytes is the default upload cap (5 MiB).
const DefaultMaxBytes = 5 << 20

// AllowedExtensions lists the accepted attachment types. Matching is
// case-insensitive.
var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var ErrNotFound = errors.New("file not found")

// Store persists uploaded attachments.
type Store interface {
	// Save stores content under a fresh name derived from fileName and
	// returns the public path, e.g. "/uploads/<uuid>.pdf".
	Save(ctx context.Context, fileName string, content io.Reader) (string, error)
	// Open returns the content stored under a public path.
	Open(ctx context.Context, publicPath string) (io.ReadCloser, error)
}

// storedName validates fileName and returns the generated on-disk name.
func storedName(fileName string) (string, error) {
	if strings.TrimSpace(fileName) == "" {
		return "", apperr.Validation("file name is required")
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !AllowedExtensions[ext] {
		return "", apperr.Validation("Invalid file type. Allowed: .pdf, .jpg, .jpeg, .png")
	}
	return uuid.NewString() + ext, nil
}

// readLimited reads at most maxBytes from r, rejecting empty and oversized
// content.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if len(data) == 0 {
		return nil, apperr.Validation("file is empty")
	}
	if int64(len(data)) > maxBytes {
		return nil, apperr.TooLarge("file exceeds the %d byte limit", maxBytes)
	}
	return data, nil
}

// nameFromPath maps a public path back to a stored name, refusing anything
// that could escape the upload directory.
func nameFromPath(publicPath string) (string, error) {
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrNotFound
	}
	return name, nil
}

// ---------------------------------------------------------------------------
// Disk implementation
// ---------------------------------------------------------------------------

// DiskStore writes attachments into a single directory.
type DiskStore struct {
	dir      string
	maxBytes int64
}

// NewDiskStore creates dir if needed and returns a store writing into it.
func NewDiskStore(dir string, maxBytes int64) (*DiskStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the directory files are written to.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Save(_ context.Context, fileName string, content io.Reader) (string, error) {
	name, err := storedName(fileName)
	if err != nil {
		return "", err
	}
	data, err := readLimited(content, s.maxBytes)
	if err != nil {
		return "", err
	}

	// Write to a temp file first so a partial write is never served.
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	return PublicPrefix + name, nil
}

func (s *DiskStore) Open(_ context.Context, publicPath string) (io.ReadCloser, error) {
	name, err := nameFromPath(publicPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// MemoryStore is a thread-safe in-memory Store for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	files    map[string][]byte
	maxBytes int64
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &MemoryStore{files: make(map[string][]byte), maxBytes: maxBytes}
}

func (s *MemoryStore) Save(_ context.Context, fileName string, content io.Reader) (string, error) {
	name, err := storedName(fileName)
	if err != nil {
		return "", err
	}
	data, err := readLimited(content, s.maxBytes)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()

	return PublicPrefix + name, nil
}

func (s *MemoryStore) Open(_ context.Context, publicPath string) (io.ReadCloser, error) {
	name, err := nameFromPath(publicPath)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Len reports the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
