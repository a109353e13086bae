package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appcrm "github.com/saasfilter/backend/internal/application/crm"
	appidentity "github.com/saasfilter/backend/internal/application/identity"
	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/crm"
	"github.com/saasfilter/backend/internal/infrastructure/auth"
	"github.com/saasfilter/backend/internal/infrastructure/config"
	"github.com/saasfilter/backend/internal/infrastructure/event"
	"github.com/saasfilter/backend/internal/infrastructure/logger"
	"github.com/saasfilter/backend/internal/infrastructure/persistence"
	"github.com/saasfilter/backend/internal/infrastructure/telemetry"
	"github.com/saasfilter/backend/internal/interfaces/http/handler"
	"github.com/saasfilter/backend/internal/interfaces/http/middleware"
	"github.com/saasfilter/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if loggerProvider.IsEnabled() {
		level, _ := logger.ParseLevel(cfg.Log.Level)
		log, err = logger.New(logCfg, loggerProvider.Core(cfg.Telemetry.ServiceName, level))
		if err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	profiler, err := telemetry.NewProfiler(cfg.Profiling, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	log.Info("Starting SaaSFilter dashboard backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("database", cfg.Database.Driver),
	)

	// Lead and call store
	latency := persistence.LatencyFromConfig(cfg.Mock)
	repo, db, err := openRepository(ctx, cfg, latency, log)
	if err != nil {
		log.Fatal("Failed to open lead store", zap.Error(err))
	}
	var dbPinger handler.Pinger
	if db != nil {
		dbPinger = db
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
	}

	// Token revocation
	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if cfg.Redis.Enabled {
		redisBlacklist, err := auth.NewRedisTokenBlacklist(ctx, auth.RedisOptions{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, revoked tokens are kept in memory", zap.Error(err))
		} else {
			blacklist = redisBlacklist
			defer func() {
				_ = redisBlacklist.Close()
			}()
			log.Info("Token blacklist backed by Redis", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	// Metrics and session events
	meter := meterProvider.Meter("saasfilter")
	if db != nil {
		if err := telemetry.RegisterDBPoolMetrics(meter, db.Driver(), db.Stats); err != nil {
			log.Warn("Database pool metrics not registered", zap.Error(err))
		}
	}
	dashboardMetrics, err := telemetry.NewDashboardMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create dashboard metrics", zap.Error(err))
	}

	bus := event.NewInMemoryBus(log)
	bus.Subscribe(session.NewMetricsHandler(dashboardMetrics))
	bus.Subscribe(session.NewLoggingHandler(log))

	registry := session.NewRegistry(bus, log)
	if err := dashboardMetrics.RegisterActiveSessions(meter, func() int64 { return int64(registry.Len()) }); err != nil {
		log.Warn("Active session gauge not registered", zap.Error(err))
	}
	stopSweep := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stopSweep:
				return
			case <-ticker.C:
				registry.Sweep()
			}
		}
	}()

	// Services
	tokens := auth.NewJWTService(cfg.JWT)
	directory := persistence.NewMemoryDirectory(persistence.DemoDirectory(), latency)
	authService := appidentity.NewAuthService(directory, registry, tokens, blacklist, dashboardMetrics, log)
	crmService := appcrm.NewService(repo, dashboardMetrics, log)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := router.NewEngine(router.Dependencies{
		Logger:   log,
		Sessions: authService,
		Auth:     handler.NewAuthHandler(authService),
		CRM:      handler.NewCRMHandler(crmService),
		System:   handler.NewSystemHandler(version, dbPinger, registry),
		Meters:   meterProvider,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Profiling: middleware.ProfilingConfig{
			Enabled:   profiler.IsEnabled(),
			SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
		},
		CORS: middleware.CORSConfig{
			AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
			AllowMethods:  cfg.HTTP.CORSAllowMethods,
			AllowHeaders:  cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders: middleware.DefaultCORSConfig().ExposeHeaders,
			MaxAge:        middleware.DefaultCORSConfig().MaxAge,
		},
		Security:    securityConfig(cfg),
		MaxBodySize: cfg.HTTP.MaxBodySize,
	})
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")
	close(stopSweep)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler stop failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Logger provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// openRepository returns the in-memory store for the memory driver, otherwise a gorm
// repository over the configured database. db is nil for the memory driver.
func openRepository(ctx context.Context, cfg *config.Config, latency persistence.Latency, log *zap.Logger) (crm.Repository, *persistence.Database, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Info("Using in-memory demo tenants")
		return persistence.NewMemoryRepository(persistence.DemoDataset(), latency), nil, nil
	}

	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:        log,
		SlowThreshold: 200 * time.Millisecond,
		Plugins:       telemetry.GormTracingPlugins(cfg.Telemetry, cfg.Database.Driver, nil),
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	if cfg.Database.Seed {
		seeded, err := persistence.Seed(ctx, db.DB, persistence.DemoDataset())
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if seeded {
			log.Info("Seeded demo tenants")
		}
	}

	log.Info("Database connected", zap.String("driver", db.Driver()))
	return persistence.NewGormCRMRepository(db.DB), db, nil
}

func securityConfig(cfg *config.Config) middleware.SecurityConfig {
	sec := middleware.DefaultSecurityConfig()
	sec.HSTSEnabled = cfg.App.IsProduction()
	return sec
}
