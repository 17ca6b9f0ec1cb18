// Package tasks implements the scheduled tasks of chatd: the daily report,
// thread cache sweeps and message store maintenance.
package tasks

import (
	"context"
	"log/slog"

	"github.com/Usernoise/chatd/internal/config"
	"github.com/Usernoise/chatd/internal/gemini"
	"github.com/Usernoise/chatd/internal/persist"
	"github.com/Usernoise/chatd/internal/reply"
	"github.com/Usernoise/chatd/internal/store"
	"github.com/Usernoise/chatd/internal/summary"
	"github.com/Usernoise/chatd/internal/threads"
)

// Maintainer is a persistence backend with a periodic maintenance routine.
type Maintainer interface {
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Store        *store.Store
	Saver        *persist.Saver
	Summary      *summary.Service
	Threads      *threads.Cache
	GeminiClient gemini.Client
	Sender       reply.Sender
	// Maintainer is nil for backends without maintenance.
	Maintainer Maintainer
}
