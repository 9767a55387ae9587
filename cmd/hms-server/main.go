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

	"github.com/hospital/hms/internal/config"
	"github.com/hospital/hms/internal/domain/availability"
	"github.com/hospital/hms/internal/domain/identity"
	"github.com/hospital/hms/internal/platform/auth"
	"github.com/hospital/hms/internal/platform/db"
	"github.com/hospital/hms/internal/platform/middleware"
	"github.com/hospital/hms/internal/platform/telemetry"
	"github.com/hospital/hms/migrations"
)

const (
	serviceName    = "hms-server"
	serviceVersion = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Hospital doctor availability and booking server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
}

// newMigrator reads MIGRATIONS_DIR when set and the embedded schema otherwise.
func newMigrator(pool *pgxpool.Pool, dir string) *db.Migrator {
	if dir != "" {
		return db.NewMigrator(pool, dir)
	}
	return db.NewMigratorFS(pool, migrations.FS)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
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

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg, newLogger(cfg.Env))
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := newMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg, newLogger(cfg.Env))
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := newMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage doctor daily schedules",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate (or show the existing) schedule for a doctor and date",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, _ := cmd.Flags().GetInt64("doctor")
			dateStr, _ := cmd.Flags().GetString("date")
			if doctorID <= 0 {
				return fmt.Errorf("--doctor is required")
			}
			date, err := availability.ParseDate(dateStr)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := availability.NewService(
				availability.NewScheduleRepoPG(pool),
				availability.NewAppointmentRepoPG(pool),
				availability.WithLogger(logger),
			)
			sched, err := svc.GetOrGenerateSchedule(ctx, doctorID, date)
			if err != nil {
				return err
			}
			printSchedule(cmd, sched, svc.DailyActivities(sched))
			return nil
		},
	}
	generateCmd.Flags().Int64("doctor", 0, "Doctor id")
	generateCmd.Flags().String("date", time.Now().UTC().Format(availability.DateLayout), "Date (YYYY-MM-DD)")
	cmd.AddCommand(generateCmd)

	return cmd
}

func printSchedule(cmd *cobra.Command, sched *availability.DoctorDailySchedule, activities []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Doctor %d on %s at %s\n", sched.DoctorID, sched.Date.Format(availability.DateLayout), sched.Location)
	fmt.Fprintf(out, "  working: %s\n", sched.Working())
	fmt.Fprintf(out, "  lunch:   %s\n", sched.Lunch())
	for _, a := range activities {
		fmt.Fprintf(out, "  - %s\n", a)
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage login accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a login account",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, password, err := userFromFlags(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(identity.NewUserRepoPG(pool), jwtConfig(cfg), cfg.JWTTTL(), logger)
			if err := svc.CreateUser(ctx, u, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %q (%s)\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Password")
	createCmd.Flags().String("role", auth.RolePatient, "admin, doctor or patient")
	createCmd.Flags().Int64("doctor-id", 0, "Doctor id (doctor accounts)")
	createCmd.Flags().Int64("patient-id", 0, "Patient id (patient accounts)")
	cmd.AddCommand(createCmd)

	return cmd
}

func userFromFlags(cmd *cobra.Command) (*identity.User, string, error) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	role, _ := cmd.Flags().GetString("role")
	doctorID, _ := cmd.Flags().GetInt64("doctor-id")
	patientID, _ := cmd.Flags().GetInt64("patient-id")
	if username == "" || password == "" {
		return nil, "", fmt.Errorf("--username and --password are required")
	}

	u := &identity.User{Username: username, Role: role}
	if doctorID > 0 {
		u.DoctorID = &doctorID
	}
	if patientID > 0 {
		u.PatientID = &patientID
	}
	if err := u.Validate(); err != nil {
		return nil, "", err
	}
	return u, password, nil
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{Issuer: cfg.JWTIssuer, SigningKey: []byte(cfg.JWTSecret)}
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.ResolvedAuthMode() == "development" {
		return auth.DevAuthMiddleware(jwtConfig(cfg))
	}
	return auth.JWTMiddleware(jwtConfig(cfg))
}

// rateLimiter returns a limiter factory backed by the shared Redis window
// when REDIS_URL is set and by in-process token buckets otherwise. Each scope
// counts separately. The returned close func releases the Redis client.
func rateLimiter(cfg *config.Config, logger zerolog.Logger) (func(scope string) echo.MiddlewareFunc, func() error, error) {
	if cfg.RedisURL == "" {
		rl := middleware.DefaultRateLimitConfig()
		if cfg.RateLimitRPS > 0 {
			rl.RequestsPerSecond = cfg.RateLimitRPS
			rl.BurstSize = cfg.RateLimitBurst
		}
		return func(string) echo.MiddlewareFunc { return middleware.RateLimit(rl) }, func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	perMinute := int(cfg.RateLimitRPS * 60)
	newLimit := func(scope string) echo.MiddlewareFunc {
		return middleware.NewRedisRateLimiter(rdb, perMinute, time.Minute, "hms:rl:"+scope).Middleware(logger, true)
	}
	return newLimit, rdb.Close, nil
}

// apiGroups returns the public and the authenticated /api/v1 groups. The
// authenticated limiter runs after auth so it counts per user, not per IP.
func apiGroups(e *echo.Echo, cfg *config.Config, newLimit func(scope string) echo.MiddlewareFunc) (public, protected *echo.Group) {
	apiV1 := e.Group("/api/v1")
	public = apiV1.Group("", newLimit("public"))
	protected = apiV1.Group("", authMiddleware(cfg), newLimit("api"))
	return public, protected
}

func eventPublisher(cfg *config.Config) (availability.EventPublisher, func() error) {
	brokers := availability.SplitBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return availability.NopPublisher{}, func() error { return nil }
	}
	p := availability.NewKafkaPublisher(brokers, cfg.KafkaTopic)
	return p, p.Close
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := newLogger(os.Getenv("ENV"))
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	// Tracing
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSamplingRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// Database
	pool, err := openPool(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(telemetry.Middleware(serviceName))
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": serviceVersion,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	newLimit, closeLimiter, err := rateLimiter(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up rate limiting")
	}
	defer closeLimiter()

	public, protected := apiGroups(e, cfg, newLimit)

	// Identity: login is public
	identitySvc := identity.NewService(identity.NewUserRepoPG(pool), jwtConfig(cfg), cfg.JWTTTL(), logger)
	identity.NewHandler(identitySvc).RegisterRoutes(public)

	// Availability

	schedules, err := availability.NewCachedScheduleRepository(availability.NewScheduleRepoPG(pool), cfg.ScheduleCacheSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create schedule cache")
	}
	events, closeEvents := eventPublisher(cfg)
	defer closeEvents()

	availabilitySvc := availability.NewService(schedules, availability.NewAppointmentRepoPG(pool),
		availability.WithEvents(events),
		availability.WithLogger(logger),
		availability.WithTx(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		}),
	)
	availability.NewHandler(availabilitySvc).RegisterRoutes(protected)

	// Background completion of past appointments
	completion, err := availability.StartCompletionJob(cfg.CompletionCron,
		availability.NewCompletionJob(availabilitySvc, logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule completion job")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	<-completion.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
