package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/ehrapp/internal/config"
	"github.com/ehr/ehrapp/internal/domain/billing"
	"github.com/ehr/ehrapp/internal/domain/careteam"
	"github.com/ehr/ehrapp/internal/domain/clinical"
	"github.com/ehr/ehrapp/internal/domain/identity"
	"github.com/ehr/ehrapp/internal/domain/inbox"
	"github.com/ehr/ehrapp/internal/domain/medication"
	"github.com/ehr/ehrapp/internal/domain/scheduling"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/blobstore"
	"github.com/ehr/ehrapp/internal/platform/db"
	"github.com/ehr/ehrapp/internal/platform/middleware"
	"github.com/ehr/ehrapp/internal/platform/notification"
	"github.com/ehr/ehrapp/internal/platform/websocket"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ehr-server",
		Short: "EHR API server for patients and doctors",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the EHR API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// openPool loads the configuration and connects to the database.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
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
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair one-directional doctor/patient links",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger("production")
			svc := careteam.NewService(careteam.NewLinkRepoPG(pool), db.NewTransactor(pool), nil,
				notification.NewTemplateEngine(), logger)
			repairs, err := svc.Reconcile(ctx)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}

			if len(repairs) == 0 {
				fmt.Println("No drift found.")
				return nil
			}
			fmt.Printf("%-16s %-36s %-36s %s\n", "KIND", "DOCTOR", "PATIENT", "ACTION")
			for _, r := range repairs {
				fmt.Printf("%-16s %-36s %-36s %s\n", r.Drift.Kind, r.Drift.DoctorID, r.Drift.PatientID, r.Action)
			}
			fmt.Printf("Repaired %d link(s).\n", len(repairs))
			return nil
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// services holds every domain service the HTTP layer exposes.
type services struct {
	identity   *identity.Service
	inbox      *inbox.Service
	careteam   *careteam.Service
	scheduling *scheduling.Service
	billing    *billing.Service
	medication *medication.Service
	clinical   *clinical.Service
	blobs      blobstore.Store
	hub        *websocket.Hub
	tokens     *auth.TokenIssuer
}

func buildServices(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *services {
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	tx := db.NewTransactor(pool)
	templates := notification.NewTemplateEngine()
	hub := websocket.NewHub(logger)
	blobs := blobstore.NewPGStore(pool)

	inboxSvc := inbox.NewService(inbox.NewNotificationRepoPG(pool), hub, logger)
	return &services{
		identity: identity.NewService(identity.NewUserRepoPG(pool), tokens, blobs, identity.Options{
			ResetTokenTTL: cfg.ResetTokenTTL,
			ResetURLBase:  cfg.ResetURLBase,
		}, logger),
		inbox:      inboxSvc,
		careteam:   careteam.NewService(careteam.NewLinkRepoPG(pool), tx, inboxSvc, templates, logger),
		scheduling: scheduling.NewService(scheduling.NewAppointmentRepoPG(pool), tx, inboxSvc, templates, logger),
		billing:    billing.NewService(billing.NewBillRepoPG(pool), logger),
		medication: medication.NewService(medication.NewPrescriptionRepoPG(pool), logger),
		clinical:   clinical.NewService(clinical.NewRecordRepoPG(pool), logger),
		blobs:      blobs,
		hub:        hub,
		tokens:     tokens,
	}
}

// newRouter assembles the middleware chain and mounts every route. limiter
// guards both /api groups; on the authenticated group it runs after
// Authenticate so clients are keyed by user.
func newRouter(cfg *config.Config, logger zerolog.Logger, svcs *services, limiter echo.MiddlewareFunc, dbHealth echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger, cfg.IsDev())

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		ExposeHeaders: []string{"X-Total-Count", "X-Next-Offset", echo.HeaderXRequestID, echo.HeaderContentDisposition},
	}))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if dbHealth != nil {
		e.GET("/health/db", dbHealth)
	}

	public := e.Group("/api", limiter)
	api := e.Group("/api", auth.Authenticate(svcs.tokens, svcs.identity), limiter)

	identity.NewHandler(svcs.identity).RegisterRoutes(public, api)
	blobstore.NewHandler(svcs.blobs).RegisterRoutes(public)
	inbox.NewHandler(svcs.inbox).RegisterRoutes(api, websocket.NewHandler(svcs.hub, cfg.CORSOrigins).Connect)
	careteam.NewHandler(svcs.careteam).RegisterRoutes(api)
	scheduling.NewHandler(svcs.scheduling).RegisterRoutes(api)
	billing.NewHandler(svcs.billing).RegisterRoutes(api)
	medication.NewHandler(svcs.medication).RegisterRoutes(api)
	clinical.NewHandler(svcs.clinical).RegisterRoutes(api)

	return e
}

// rateLimiter returns the shared Redis limiter when REDIS_URL is set and the
// in-process token bucket otherwise. The returned cleanup closes the Redis
// client.
func rateLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (echo.MiddlewareFunc, func(), error) {
	if cfg.RedisURL == "" {
		rl := middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}
		if rl.RequestsPerSecond <= 0 {
			rl = middleware.DefaultRateLimitConfig()
		}
		return middleware.RateLimit(rl), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable at startup; rate limiting will fail open")
	}
	limiter := middleware.NewRedisRateLimiter(rdb, cfg.RateLimitRPM, time.Minute, "ehr:rl")
	logger.Info().Int("per_minute", cfg.RateLimitRPM).Msg("using redis rate limiter")
	return limiter.Middleware(logger, true), func() { rdb.Close() }, nil
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if cfg.AutoMigrate {
		n, err := db.NewMigrator(pool, cfg.MigrationsDir).Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Int("applied", n).Msg("migrations applied")
	}

	limiter, closeLimiter, err := rateLimiter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limiter setup failed")
	}
	defer closeLimiter()

	svcs := buildServices(cfg, pool, logger)
	e := newRouter(cfg, logger, svcs, limiter, db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
