// Package serve exposes the operational HTTP surface of a scanning
// process: a readiness probe and the Prometheus metrics endpoint. It is
// intentionally small; scan orchestration itself stays in-process.
package serve

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/secureflow/secureflow/cache"
	"github.com/secureflow/secureflow/config"
	"github.com/secureflow/secureflow/health"
	"github.com/secureflow/secureflow/metrics"
)

// Handler builds the operational HTTP mux.
//
// Routes:
//
//	GET /healthz  readiness report as JSON, 503 when unhealthy
//	GET /metrics  Prometheus exposition of the collector's registry
func Handler(cfg *config.Config, store cache.Store, collector *metrics.Collector) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		report := health.Check(r.Context(), cfg, store)

		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			slog.Error("failed to encode health report", "error", err)
		}
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(collector.Gatherer(), promhttp.HandlerOpts{}))

	return mux
}

// ListenAndServe runs the operational server until the context is
// cancelled, then shuts it down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("operational server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
