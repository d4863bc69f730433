// Package audit persists access-log entries produced by the audit
// middleware. Entries are queued and written in batches by a background
// worker so that request latency does not depend on the audit table.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careconnect/clinic/internal/platform/middleware"
)

// ErrQueueFull is returned when the writer cannot keep up.
var ErrQueueFull = errors.New("audit queue full, entry dropped")

const (
	defaultQueueSize = 1024
	maxBatch         = 100
	flushInterval    = 2 * time.Second
	writeTimeout     = 5 * time.Second
)

// WriteFunc stores a batch of entries.
type WriteFunc func(ctx context.Context, entries []middleware.AuditEntry) error

type Store struct {
	queue  chan middleware.AuditEntry
	write  WriteFunc
	logger zerolog.Logger
	done   chan struct{}
}

// NewStore returns a Store writing to the access_log table. Call Run to
// start the writer.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return newStore(pgWriter(pool), defaultQueueSize, logger)
}

func newStore(write WriteFunc, queueSize int, logger zerolog.Logger) *Store {
	return &Store{
		queue:  make(chan middleware.AuditEntry, queueSize),
		write:  write,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// RecordAccess queues entry without blocking.
func (s *Store) RecordAccess(entry middleware.AuditEntry) error {
	select {
	case s.queue <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// left and returns.
func (s *Store) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]middleware.AuditEntry, 0, maxBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		if err := s.write(wctx, batch); err != nil {
			s.logger.Error().Err(err).Int("entries", len(batch)).Msg("failed to write access log")
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
			if len(batch) >= maxBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case e := <-s.queue:
					batch = append(batch, e)
					if len(batch) >= maxBatch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (s *Store) Wait() {
	<-s.done
}

func pgWriter(pool *pgxpool.Pool) WriteFunc {
	return func(ctx context.Context, entries []middleware.AuditEntry) error {
		b := &pgx.Batch{}
		for _, e := range entries {
			b.Queue(`
				INSERT INTO access_log (request_id, user_id, user_role, resource, resource_id,
					action, method, path, ip_address, status, accessed_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				e.RequestID, e.UserID, strings.Join(e.UserRoles, ","), e.Resource, e.ResourceID,
				e.Action, e.Method, e.Path, e.IPAddress, e.StatusCode, e.Timestamp)
		}
		return pool.SendBatch(ctx, b).Close()
	}
}
