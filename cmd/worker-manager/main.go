// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/database"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/observability"
	"scholarship-workers/internal/repository/postgres"

	"go.uber.org/zap"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: cfg.Camunda.Plaintext,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
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
	if err := postgres.Migrate(ctx, pg.DB); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected and migrated")

	// --- Redis ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch (audit index, optional) ---
	var es *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			// audit rows still land in Postgres
			zapLog.Warn("elasticsearch unavailable, audit indexing disabled", zap.Error(err))
			es = nil
		} else {
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	svc, err := buildServices(ctx, cfg, pg, redis, es, obs, log)
	if err != nil {
		zapLog.Fatal("service wiring failed", zap.Error(err))
	}

	runner := camunda.NewJobRunner(log, svc.actors, obs, zeebe.RetryConfig())
	workers := startWorkers(cfg, zeebe, runner, svc, log)
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	server := startHealthServer(cfg.App.HTTPAddress, readinessChecks{pg: pg, redis: redis, zeebe: zeebe}, log)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("health server shutdown failed", zap.Error(err))
	}
	zapLog.Info("Worker manager stopped")
}
