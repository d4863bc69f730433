package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careconnect/clinic/internal/config"
	"github.com/careconnect/clinic/internal/domain/identity"
	"github.com/careconnect/clinic/internal/domain/medication"
	"github.com/careconnect/clinic/internal/domain/patient"
	"github.com/careconnect/clinic/internal/domain/terminology"
	"github.com/careconnect/clinic/internal/domain/visit"
	"github.com/careconnect/clinic/internal/platform/audit"
	"github.com/careconnect/clinic/internal/platform/auth"
	"github.com/careconnect/clinic/internal/platform/blobstore"
	"github.com/careconnect/clinic/internal/platform/db"
	"github.com/careconnect/clinic/internal/platform/icd11"
	"github.com/careconnect/clinic/internal/platform/logging"
	"github.com/careconnect/clinic/internal/platform/metrics"
	"github.com/careconnect/clinic/internal/platform/middleware"
	"github.com/careconnect/clinic/migrations"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "CareConnect clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		AppName:  "clinic-server",
	}
}

// openPool loads config and connects; callers close the pool.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

// migrationSource prefers an on-disk directory when one is given.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(ctx, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in identity.NewUser
			in.Email, _ = cmd.Flags().GetString("email")
			in.Name, _ = cmd.Flags().GetString("name")
			in.Credentials, _ = cmd.Flags().GetString("credentials")
			in.Role, _ = cmd.Flags().GetString("role")
			in.Password, _ = cmd.Flags().GetString("password")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(identity.NewUserRepo(pool), nil, false)
			u, err := svc.CreateUser(ctx, in)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s %s (id %d)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("credentials", "", "Qualifications shown on prescriptions")
	createCmd.Flags().String("role", auth.RoleNurse, "Doctor, Nurse or Pharmacist")
	createCmd.Flags().String("password", "", "Initial password")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")
	cmd.AddCommand(createCmd)

	return cmd
}

// deps are the collaborators the HTTP server is built from.
type deps struct {
	pool     *pgxpool.Pool
	uploads  *blobstore.DiskStore
	external terminology.ExternalSearcher
	metrics  http.Handler
	access   middleware.AuditRecorder
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.New(os.Stdout, cfg.ResolvedLogFormat(), cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")
	metrics.RegisterPoolStats(prometheus.DefaultRegisterer, pool)

	uploads, err := blobstore.NewDiskStore(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		return fmt.Errorf("prepare upload dir: %w", err)
	}

	var shared icd11.SharedCache
	if cfg.RedisURL != "" {
		rdb, err := icd11.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, ICD-11 token cached in process only")
		} else {
			defer rdb.Close()
			shared = icd11.NewRedisCache(rdb)
		}
	}
	icdClient := icd11.New(icd11.Config{
		ClientID:     cfg.ICD11ClientID,
		ClientSecret: cfg.ICD11ClientSecret,
		TokenURL:     cfg.ICD11TokenURL,
		SearchURL:    cfg.ICD11SearchURL,
		Timeout:      cfg.ICD11Timeout,
	}, shared, logger)
	if cfg.ICD11ClientID == "" || cfg.ICD11ClientSecret == "" {
		logger.Warn().Msg("ICD11_CLIENT_ID/ICD11_CLIENT_SECRET not set, external ICD-11 lookups will fail")
	}
	if cfg.AuthPasswordBypass {
		logger.Warn().Msg("AUTH_PASSWORD_BYPASS is enabled")
	}

	accessLog := audit.NewStore(pool, logger)
	auditCtx, stopAudit := context.WithCancel(ctx)
	go accessLog.Run(auditCtx)

	e := newServer(cfg, logger, deps{
		pool:     pool,
		uploads:  uploads,
		external: terminology.NewICD11Searcher(icdClient),
		metrics:  promhttp.Handler(),
		access:   accessLog,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	stopAudit()
	accessLog.Wait()
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires middleware and routes.
func newServer(cfg *config.Config, logger zerolog.Logger, d deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.BodyLimit("2M", uploadLimit(cfg.UploadMaxBytes), "/api/upload"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "X-Total-Count", "Link"},
	}))

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)
	jwtCfg := tokens.Config()
	jwtCfg.Skipper = auth.AuthSkipper
	e.Use(auth.JWTMiddleware(jwtCfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.pool != nil {
		e.GET("/health/db", db.HealthHandler(d.pool, logger))
	}
	if d.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.metrics))
	}
	if d.uploads != nil {
		e.Static(strings.TrimSuffix(blobstore.PublicPrefix, "/"), d.uploads.Dir())
	}

	identitySvc := identity.NewService(identity.NewUserRepo(d.pool), tokens, cfg.AuthPasswordBypass)
	identity.NewHandler(identitySvc).RegisterRoutes(e.Group("/auth"))

	rateCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateCfg.RequestsPerSecond <= 0 {
		rateCfg = middleware.DefaultRateLimitConfig()
	}
	var recorders []middleware.AuditRecorder
	if d.access != nil {
		recorders = append(recorders, d.access)
	}
	api := e.Group("/api", middleware.RateLimit(rateCfg), middleware.Audit(logger, recorders...))

	patient.NewHandler(patient.NewService(patient.NewRepo(d.pool))).RegisterRoutes(api)
	visit.NewHandler(visit.NewService(visit.NewRepo(d.pool))).RegisterRoutes(api)
	terminology.NewHandler(terminology.NewService(terminology.NewRepo(d.pool), d.external)).RegisterRoutes(api)
	medication.NewHandler(medication.NewService(medication.NewRepo(d.pool))).RegisterRoutes(api)

	var store blobstore.Store = blobstore.NewMemoryStore(cfg.UploadMaxBytes)
	if d.uploads != nil {
		store = d.uploads
	}
	blobstore.NewHandler(store).RegisterRoutes(api)

	return e
}

// uploadLimit leaves room for multipart framing above the file cap; the
// store enforces the exact size.
func uploadLimit(maxBytes int64) string {
	return fmt.Sprintf("%dK", maxBytes/1024+64)
}
