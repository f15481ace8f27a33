package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/bambu-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/bambu-telemetry/internal/printer"
)

const metricsShutdownTimeout = 5 * time.Second

// newRegistry returns a registry with the client metrics plus the Go runtime
// and process collectors.
func newRegistry() (*prometheus.Registry, *printer.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, printer.NewMetrics(reg)
}

// newMetricsHandler serves /metrics and a /healthz endpoint backed by the
// client's session health. An idle or dropped session answers 503.
func newMetricsHandler(reg *prometheus.Registry, client *printer.Client) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := client.HealthCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "%s: %v", client.Status(), err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(client.Status()))
	})
	return mux
}

// serveMetrics runs the metrics server until ctx is done.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, log *logging.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("serving metrics", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
