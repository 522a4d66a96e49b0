package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/auth"
	"github.com/frahmantamala/admin-dashboard/internal/core/events"
	"github.com/frahmantamala/admin-dashboard/internal/observability"
	"github.com/frahmantamala/admin-dashboard/internal/ratelimit"
	"github.com/frahmantamala/admin-dashboard/internal/session"
	sessionPostgres "github.com/frahmantamala/admin-dashboard/internal/session/postgres"
	"github.com/frahmantamala/admin-dashboard/internal/user"
	userPostgres "github.com/frahmantamala/admin-dashboard/internal/user/postgres"
	"github.com/frahmantamala/admin-dashboard/pkg/logger"
)

// application holds the wired services shared by the server, worker and seed
// commands.
type application struct {
	Config  *internal.Config
	Logger  *slog.Logger
	DB      *sqlx.DB
	Gorm    *gorm.DB
	Redis   *redis.Client
	AMQP    *amqp.Connection
	Bus     *events.EventBus
	Metrics *observability.Metrics

	forwarder *events.AMQPForwarder

	Users    *userPostgres.UserRepository
	Sessions *sessionPostgres.SessionStore
	Manager  *session.Manager
	Hasher   *auth.BcryptHasher
	Auth     *auth.Service
	Accounts *user.Service
}

func newApplication(cfg *internal.Config) (*application, error) {
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	app := &application{
		Config: cfg,
		Logger: lg,
		DB:     db,
		Gorm:   gdb,
		Bus:    events.NewEventBus(lg),
	}

	if cfg.Observability.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		app.Metrics = observability.NewMetrics(registry)
	}

	if cfg.Redis.Addr != "" {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := app.Redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			lg.Warn("redis unreachable, rate limiting falls back to process memory", "addr", cfg.Redis.Addr, "error", err)
			_ = app.Redis.Close()
			app.Redis = nil
		}
	}

	if cfg.Events.AMQPURL != "" {
		fwd, conn, err := events.DialAMQPForwarder(cfg.Events.AMQPURL, cfg.Events.Queue, lg)
		if err != nil {
			lg.Warn("event forwarding disabled", "error", err)
		} else {
			fwd.Attach(app.Bus)
			app.forwarder = fwd
			app.AMQP = conn
		}
	}

	app.Users = userPostgres.NewUserRepository(gdb)
	app.Sessions = sessionPostgres.NewSessionStore(gdb)
	app.Hasher = auth.NewBcryptHasher(cfg.Security.BCryptCost)
	app.Manager = session.NewManager(session.ManagerDeps{
		Store:   app.Sessions,
		Stats:   sessionPostgres.NewStatsRepository(db),
		Events:  app.Bus,
		Metrics: app.Metrics,
		Logger:  lg,
	}, session.Options{
		MaxConcurrent:               cfg.Session.MaxConcurrent,
		RetentionDays:               cfg.Session.RetentionDays,
		SuspiciousCreationThreshold: cfg.Session.SuspiciousCreationThreshold,
		SuspiciousActiveThreshold:   cfg.Session.SuspiciousActiveThreshold,
	})
	app.Auth = auth.NewService(auth.Deps{
		Users:        app.Users,
		Sessions:     app.Sessions,
		Housekeeping: app.Manager,
		Hasher:       app.Hasher,
		Codec:        auth.NewJWTCodec(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTTTL),
		Events:       app.Bus,
		Metrics:      app.Metrics,
		Logger:       lg,
	}, auth.Options{
		SessionTTL:      cfg.Session.TTL,
		RememberMeTTL:   cfg.Session.RememberMeTTL,
		MaxConcurrent:   cfg.Session.MaxConcurrent,
		EnforceOnCreate: cfg.Session.EnforceOnCreate,
	})
	app.Accounts = user.NewService(app.Users, app.Hasher, app.Sessions, app.Bus, lg).
		WithPasswordMinLength(cfg.Security.PasswordMinLength)

	return app, nil
}

// loginLimiter prefers the shared Redis counter. Without Redis each replica
// keeps its own buckets.
func (a *application) loginLimiter() ratelimit.Limiter {
	rl := a.Config.RateLimit
	if !rl.Enabled {
		return nil
	}
	if a.Redis != nil {
		return ratelimit.NewRedisLimiter(a.Redis, rl.KeyPrefix, rl.MaxAttempts, rl.Window, a.Logger)
	}
	return ratelimit.NewLocalLimiter(rl.MaxAttempts, rl.Window)
}

func (a *application) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Bus.Drain(ctx); err != nil {
		a.Logger.Warn("event bus drain timed out", "error", err)
	}

	if a.forwarder != nil {
		if err := a.forwarder.Close(); err != nil {
			a.Logger.Error("event forwarder close error", "error", err)
		}
	}
	if a.AMQP != nil {
		_ = a.AMQP.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("redis close error", "error", err)
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("database close error", "error", err)
	}
}

// initDB opens the pgx-backed pool shared by sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
