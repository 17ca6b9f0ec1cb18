// Package metrics declares the Prometheus collectors of chatd and serves them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Message store
	MessagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatd_messages_stored_total",
			Help: "Total chat messages appended to the store",
		},
	)

	StoreSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_store_saves_total",
			Help: "Snapshot writes by result",
		},
		[]string{"result"}, // "ok" or "error"
	)

	StoreSaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatd_store_save_duration_seconds",
			Help:    "Snapshot write duration",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	// Summaries
	Summaries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_summaries_total",
			Help: "Summary requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	// Job tracker
	JobsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatd_jobs_tracked",
			Help: "Music generation jobs currently being polled",
		},
	)

	JobPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_job_polls_total",
			Help: "Job status polls by outcome",
		},
		[]string{"outcome"}, // "pending", "transient", "error", "succeeded", "failed", "abandoned"
	)

	JobDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_job_deliveries_total",
			Help: "Terminal job deliveries by result",
		},
		[]string{"result"},
	)

	// Scheduled tasks
	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_task_runs_total",
			Help: "Scheduled task runs by task and result",
		},
		[]string{"task", "result"},
	)
)

// Result maps an error to the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Metrics listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics listener failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics listener shutdown failed: %w", err)
		}
		log.Info("Metrics listener stopped")
		return nil
	}
}
