// Package main provides the entry point for the URL shortener service
//
// @title URL Shortener API
// @version 1.0
// @description Shorten URLs, resolve aliases with click counting, and manage owned links.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/url-shortener/app/handlers"
	"github.com/amirphl/url-shortener/app/middleware"
	"github.com/amirphl/url-shortener/app/router"
	"github.com/amirphl/url-shortener/app/services"
	businessflow "github.com/amirphl/url-shortener/business_flow"
	"github.com/amirphl/url-shortener/config"
	"github.com/amirphl/url-shortener/logging"
	"github.com/amirphl/url-shortener/migrations"
	"github.com/amirphl/url-shortener/repository"
	"github.com/amirphl/url-shortener/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, sink, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}
	defer logCloser.Close()

	log.Logger = logger
	stdlog.SetFlags(0)
	stdlog.SetOutput(logger)

	log.Info().
		Str("environment", cfg.Deployment.Environment).
		Str("version", cfg.Deployment.Version).
		Str("commit", cfg.Deployment.CommitHash).
		Msg("starting url shortener")

	app, err := initializeApplication(cfg, logger, sink)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.router.Start(cfg.Server.Address())
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.router.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	log.Info().Msg("server stopped")
}

// initializeDatabase opens the gorm pool; duplicate-key violations surface as gorm.ErrDuplicatedKey
func initializeDatabase(cfg config.DatabaseConfig, logger zerolog.Logger) (*gorm.DB, error) {
	gl := logger.With().Str("component", "gorm").Logger()
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(&gl, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: utils.UTCNow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("database connection established")

	return db, nil
}

func runMigrations(cfg config.DatabaseConfig, logger zerolog.Logger) error {
	m, err := migrations.New(cfg.URL(), logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("database schema up to date")
	return nil
}

// initializeCache returns nil when the resolution cache is disabled
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	if cfg.RedisPassword != "" {
		opt.Password = cfg.RedisPassword
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("redis connection established")
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis until the returned func is called
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn().Err(err).Msg("redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeApplication(cfg *config.ProductionConfig, logger zerolog.Logger, sink io.Writer) (*Application, error) {
	app := &Application{config: cfg}

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	app.stopFuncs = append(app.stopFuncs, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var linkCache services.LinkCache = services.NoopLinkCache{}
	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		linkCache = services.NewRedisLinkCache(rc, cfg.Cache.RedisPrefix, cfg.Cache.DefaultTTL)
		stopMonitor := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval)
		app.stopFuncs = append(app.stopFuncs, stopMonitor, func() { _ = rc.Close() })
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	shortLinkRepo := repository.NewShortLinkRepository(db)

	// Services
	hasher, err := services.NewBcryptPasswordHasher(cfg.Security.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	tokenService, err := services.NewTokenService(
		utils.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Info().Str("issuer", cfg.JWT.Issuer).Str("audience", cfg.JWT.Audience).Msg("token service initialized")

	// Business flows
	authFlow, err := businessflow.NewAuthFlow(userRepo, hasher, tokenService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth flow: %w", err)
	}
	shortenerFlow := businessflow.NewShortenerFlow(
		shortLinkRepo,
		businessflow.NewAliasGenerator(shortLinkRepo),
		linkCache,
		cfg.Shortener.BaseURL,
	)

	// Handlers
	authHandler := handlers.NewAuthHandler(authFlow)
	shortLinkHandler := handlers.NewShortLinkHandler(shortenerFlow)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	accessLog := io.Discard
	if cfg.Logging.EnableAccessLog {
		accessLog = sink
	}

	app.router = router.NewFiberRouter(authHandler, shortLinkHandler, authMiddleware, router.Options{
		AllowAnonymous: cfg.Shortener.AllowAnonymous,
		CORSOrigins:    cfg.Security.AllowedOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		DocsEnabled:    cfg.Deployment.EnableDocs || cfg.Deployment.IsDevelopment(),
		Version:        cfg.Deployment.Version,
		AccessLog:      accessLog,
		Readiness: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	return app, nil
}
