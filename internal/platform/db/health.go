package db

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Health is the body of GET /health/db.
type Health struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schemaVersion"`
	Connections   int32  `json:"connections"`
	Error         string `json:"error,omitempty"`
}

// healthCheck reports the newest applied migration and the open connection count.
type healthCheck func(ctx context.Context) (version int, conns int32, err error)

// HealthHandler pings the database and reports the applied schema version.
// Pool internals are exported on /metrics; this endpoint is for load
// balancers and deploy checks.
func HealthHandler(pool *pgxpool.Pool, logger zerolog.Logger) echo.HandlerFunc {
	return healthHandler(func(ctx context.Context) (int, int32, error) {
		if err := pool.Ping(ctx); err != nil {
			return 0, 0, err
		}
		var version int
		err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM _migrations`).Scan(&version)
		if err != nil {
			return 0, 0, fmt.Errorf("read schema version: %w", err)
		}
		return version, pool.Stat().TotalConns(), nil
	}, logger)
}

func healthHandler(check healthCheck, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		version, conns, err := check(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("database health check failed")
			return c.JSON(http.StatusServiceUnavailable, Health{
				Status: "unhealthy",
				Error:  "database unreachable",
			})
		}
		return c.JSON(http.StatusOK, Health{
			Status:        "healthy",
			SchemaVersion: version,
			Connections:   conns,
		})
	}
}
