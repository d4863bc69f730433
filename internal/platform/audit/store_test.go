package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect/clinic/internal/platform/middleware"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]middleware.AuditEntry
	err     error
}

func (f *fakeWriter) write(_ context.Context, entries []middleware.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]middleware.AuditEntry(nil), entries...))
	return f.err
}

func (f *fakeWriter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func entry(path string) middleware.AuditEntry {
	return middleware.AuditEntry{Path: path, Resource: "visits", Action: "read", StatusCode: 200, Timestamp: time.Now()}
}

func TestStore_FlushesOnShutdown(t *testing.T) {
	w := &fakeWriter{}
	s := newStore(w.write, 16, zerolog.Nop())
	for i := 0; i < 5; i++ {
		if err := s.RecordAccess(entry("/api/visits")); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	cancel()
	s.Wait()

	if got := w.total(); got != 5 {
		t.Errorf("expected 5 entries written, got %d", got)
	}
}

func TestStore_BatchesLargeBursts(t *testing.T) {
	w := &fakeWriter{}
	s := newStore(w.write, 500, zerolog.Nop())
	for i := 0; i < 250; i++ {
		s.RecordAccess(entry("/api/patients"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	cancel()
	s.Wait()

	if w.total() != 250 {
		t.Fatalf("expected 250 entries, got %d", w.total())
	}
	for _, b := range w.batches {
		if len(b) > maxBatch {
			t.Errorf("batch of %d exceeds %d", len(b), maxBatch)
		}
	}
}

func TestStore_DropsWhenFull(t *testing.T) {
	s := newStore(func(context.Context, []middleware.AuditEntry) error { return nil }, 1, zerolog.Nop())
	if err := s.RecordAccess(entry("/api/a")); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAccess(entry("/api/b")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestStore_WriteErrorDoesNotStopWorker(t *testing.T) {
	w := &fakeWriter{err: errors.New("relation access_log does not exist")}
	s := newStore(w.write, 16, zerolog.Nop())
	s.RecordAccess(entry("/api/a"))

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	cancel()
	s.Wait()

	if w.total() != 1 {
		t.Errorf("expected the failed batch to have been attempted, got %d", w.total())
	}
}
