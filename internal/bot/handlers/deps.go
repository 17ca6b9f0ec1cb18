package handlers

import (
	"context"
	"log/slog"

	"github.com/Usernoise/chatd/internal/config"
	"github.com/Usernoise/chatd/internal/gemini"
	"github.com/Usernoise/chatd/internal/jobs"
	"github.com/Usernoise/chatd/internal/persist"
	"github.com/Usernoise/chatd/internal/store"
	"github.com/Usernoise/chatd/internal/summary"
	"github.com/Usernoise/chatd/internal/suno"
	"github.com/Usernoise/chatd/internal/threads"
)

// SongSubmitter starts a music generation job and returns its id.
type SongSubmitter interface {
	Submit(ctx context.Context, req suno.Request) (string, error)
}

// JobTracker follows a submitted job until its result is delivered.
type JobTracker interface {
	Track(e jobs.Entry) error
}

// VoiceDownloader fetches the audio of a voice message.
type VoiceDownloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Store        *store.Store
	Saver        *persist.Saver
	Summary      *summary.Service
	Threads      *threads.Cache
	GeminiClient gemini.Client
	// Songs and Jobs are nil when song generation is not configured.
	Songs   SongSubmitter
	Jobs    JobTracker
	Counter *ReplyCounter
	// Orders holds song orders started from the keyboard; nil disables them.
	Orders *OrderWaits
	// Voice is nil when voice messages are not transcribed.
	Voice VoiceDownloader
}

func (d HandlerDeps) songsEnabled() bool {
	return d.Songs != nil && d.Jobs != nil
}
