package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/storelens/collector/internal/archive"
	"github.com/storelens/collector/internal/config"
	"github.com/storelens/collector/internal/database"
	"github.com/storelens/collector/internal/geo"
	"github.com/storelens/collector/internal/httpserver"
	"github.com/storelens/collector/internal/metrics"
	"github.com/storelens/collector/internal/middleware"
	"github.com/storelens/collector/internal/storage"
)

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	defer logger.Sync()

	logger.Info("starting collector",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Driver),
	)

	ctx := context.Background()

	// The primary record store is required; without it every beacon write
	// would be lost silently. The memory driver is a dev/test escape hatch.
	var db *database.PostgresDB
	if cfg.Store.Driver == config.StorePostgres {
		db, err = database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("PostgreSQL unavailable", zap.Error(err))
		}
		defer db.Close()

		if err := storage.InitSchema(ctx, db.Pool); err != nil {
			logger.Fatal("schema init failed", zap.Error(err))
		}
	} else {
		logger.Warn("using in-memory store, data is not persisted")
	}

	var redis *database.RedisDB
	if cfg.Redis.Enabled {
		redis, err = database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis not available, report caching disabled", zap.Error(err))
			redis = nil
		} else {
			defer redis.Close()
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics("collector")
	}

	var archiveWriter *archive.Writer
	if cfg.Archive.Enabled {
		ch, err := database.NewClickHouseDB(ctx, cfg.Archive, logger)
		if err != nil {
			logger.Warn("ClickHouse not available, raw-hit archive disabled", zap.Error(err))
		} else {
			defer ch.Close()
			if err := archive.InitSchema(ctx, ch.Conn); err != nil {
				logger.Warn("archive schema init failed, archive disabled", zap.Error(err))
			} else {
				archiveWriter = archive.NewWriter(ch.Conn, cfg.Archive.BatchSize, cfg.Archive.FlushInterval, m, logger)
				defer archiveWriter.Close()
			}
		}
	}

	var geoProvider geo.Provider
	if cfg.Geo.Enabled {
		geoProvider, err = geo.NewMaxMindProvider(cfg.Geo.DatabasePath)
		if err != nil {
			logger.Warn("GeoIP database not available, geo enrichment disabled", zap.Error(err))
			geoProvider = nil
		} else {
			defer geoProvider.Close()
		}
	}

	handler := httpserver.NewServer(&httpserver.Dependencies{
		DB:      db,
		Redis:   redis,
		Archive: archiveWriter,
		Geo:     geoProvider,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	})

	// Wrap middleware, innermost first
	logging := middleware.NewLoggingMiddleware(logger)
	handler = logging.Handler(handler)

	ratelimit := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	ratelimit.SetMetrics(m)
	handler = ratelimit.Handler(handler)

	recovery := middleware.NewRecoveryMiddleware(logger)
	handler = recovery.Handler(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func setupLogger(cfg *config.Config) *zap.Logger {
	var zapCfg zap.Config

	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	switch cfg.Log.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	return logger
}
