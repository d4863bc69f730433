package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockID keys the session advisory lock held for a whole run, so
// replicas starting together apply each file once.
const migrationLockID = 7_460_113

const migrationsTable = `CREATE TABLE IF NOT EXISTS _migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migration is one numbered SQL file, e.g. 002_seed.sql is version 2.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationStatus pairs a known migration with when it was applied.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// ReadMigrations loads the NNN_name.sql files at the root of fsys in
// version order. Other files are ignored. Two files with the same version
// are an error.
func ReadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// pending returns the migrations not yet applied, stopping after target
// when target is positive.
func pending(all []Migration, applied map[int]time.Time, target int) []Migration {
	var out []Migration
	for _, m := range all {
		if target > 0 && m.Version > target {
			break
		}
		if _, done := applied[m.Version]; !done {
			out = append(out, m)
		}
	}
	return out
}

type Migrator struct {
	pool   *pgxpool.Pool
	source fs.FS
}

// NewMigrator applies the migrations found in source, typically
// migrations.FS or os.DirFS of a directory.
func NewMigrator(pool *pgxpool.Pool, source fs.FS) *Migrator {
	return &Migrator{pool: pool, source: source}
}

// Up applies pending migrations through target (0 means all), each in its
// own transaction, and returns how many were applied.
func (m *Migrator) Up(ctx context.Context, target int) (int, error) {
	all, err := ReadMigrations(m.source)
	if err != nil {
		return 0, err
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return 0, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range pending(all, applied, target) {
		err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO _migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("apply %s: %w", mig.Name, err)
		}
		count++
	}
	return count, nil
}

// Status lists every known migration with its applied time, if any.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	all, err := ReadMigrations(m.source)
	if err != nil {
		return nil, err
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(all))
	for _, mig := range all {
		s := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if at, ok := applied[mig.Version]; ok {
			s.Applied = true
			s.AppliedAt = &at
		}
		out = append(out, s)
	}
	return out, nil
}

// appliedVersions creates the tracking table on first use.
func appliedVersions(ctx context.Context, conn *pgxpool.Conn) (map[int]time.Time, error) {
	if _, err := conn.Exec(ctx, migrationsTable); err != nil {
		return nil, fmt.Errorf("create _migrations: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT version, applied_at FROM _migrations`)
	if err != nil {
		return nil, fmt.Errorf("read _migrations: %w", err)
	}
	applied := make(map[int]time.Time)
	var (
		v  int
		at time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&v, &at}, func() error {
		applied[v] = at
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read _migrations: %w", err)
	}
	return applied, nil
}
