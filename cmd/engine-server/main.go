// cmd/engine-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rooftrust-engine/internal/archive"
	"rooftrust-engine/internal/common/config"
	"rooftrust-engine/internal/common/database"
	"rooftrust-engine/internal/common/logger"
	"rooftrust-engine/internal/common/notify"
	"rooftrust-engine/internal/common/observability"
	"rooftrust-engine/internal/engine"
	"rooftrust-engine/internal/engine/survey"
	"rooftrust-engine/internal/httpapi"
	"rooftrust-engine/internal/store"
	"rooftrust-engine/internal/watch"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting engine server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("engine-server")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	projectStore := store.NewPostgres(pg.GetDB())
	if err := projectStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	var oracle survey.WindZoneOracle = survey.NewRandomOracle()
	if err != nil {
		zapLog.Warn("redis unavailable, wind-zone lookups will not be cached", zap.Error(err))
	} else {
		defer redis.Close()
		oracle = survey.NewCachedOracle(oracle, redis.GetClient(), 0)
		zapLog.Info("Redis connected successfully")
	}

	// --- Init Elasticsearch archiver ---
	var archiver engine.Archiver = archive.Noop{}
	if cfg.Archive.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		archiver = archive.NewElasticsearch(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init notification channels ---
	var notifier notify.Composite
	if cfg.Notify.AWS.SES.Enabled {
		ses, err := notify.NewSESClient(ctx, cfg.Notify.AWS.Region, cfg.Notify.AWS.SES.FromEmail)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		notifier.Email = ses
		zapLog.Info("SES notifier enabled")
	}
	if cfg.Notify.AWS.SNS.Enabled {
		sns, err := notify.NewSNSClient(ctx, cfg.Notify.AWS.Region, cfg.Notify.AWS.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		notifier.SMS = sns
		zapLog.Info("SNS notifier enabled")
	}

	// --- Assemble the engine ---
	eng := engine.New(cfg.Rules, engine.Deps{
		Store:    projectStore,
		Oracle:   oracle,
		Notifier: notifier,
		Archiver: archiver,
		Obs:      obs,
		Logger:   log,
	})

	// --- Overdue watcher ---
	watcher := watch.New(eng, time.Duration(cfg.Notify.OverdueScanSecs)*time.Second, log)
	go watcher.Run(ctx)

	// --- Metrics server (plus pprof) ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.Handle("/debug/pprof/", http.DefaultServeMux)
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddress, Handler: metricsMux}
	go func() {
		zapLog.Info("metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	// --- API server ---
	apiSrv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: httpapi.NewServer(eng, log).Routes(),
	}
	go func() {
		zapLog.Info("api server listening", zap.String("address", cfg.Server.Address))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("api server shutdown failed", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
