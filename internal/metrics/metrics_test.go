package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Usernoise/chatd/internal/logger"
)

func TestResult(t *testing.T) {
	t.Parallel()

	if got := Result(nil); got != "ok" {
		t.Errorf("Result(nil) = %q, want ok", got)
	}
	if got := Result(errors.New("boom")); got != "error" {
		t.Errorf("Result(err) = %q, want error", got)
	}
}

func TestCollectorsExposed(t *testing.T) {
	t.Parallel()

	MessagesStored.Inc()
	TaskRuns.WithLabelValues("store_flush", Result(nil)).Inc()
	JobPolls.WithLabelValues("pending").Inc()

	srv := httptest.NewServer(promhttp.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		"chatd_messages_stored_total",
		`chatd_task_runs_total{result="ok",task="store_flush"}`,
		`chatd_job_polls_total{outcome="pending"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", logger.Discard()) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
