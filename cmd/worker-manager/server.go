// cmd/worker-manager/server.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/database"
	"scholarship-workers/internal/common/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type readinessChecks struct {
	pg    *database.PostgresClient
	redis *database.RedisClient
	zeebe *camunda.Client
}

func (c readinessChecks) run(ctx context.Context) map[string]string {
	status := map[string]string{}
	record := func(name string, err error) {
		if err != nil {
			status[name] = err.Error()
			return
		}
		status[name] = "ok"
	}
	record("postgres", c.pg.Ping(ctx))
	record("redis", c.redis.Ping(ctx))
	record("zeebe", c.zeebe.HealthCheck(ctx))
	return status
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func healthMux(checks readinessChecks) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		deps := checks.run(ctx)
		for _, s := range deps {
			if s != "ok" {
				writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "dependencies": deps})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready", "dependencies": deps})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func startHealthServer(addr string, checks readinessChecks, log logger.Logger) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           healthMux(checks),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return server
}
