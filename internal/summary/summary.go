// Package summary turns stored message windows into model-written summaries.
// Callers get one of three distinguishable failures: a bad window label, an
// empty window, or an unavailable summarizer.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Usernoise/chatd/internal/gemini"
	"github.com/Usernoise/chatd/internal/logger"
	"github.com/Usernoise/chatd/internal/metrics"
	"github.com/Usernoise/chatd/internal/store"
)

var (
	// ErrNoMessages means the window is valid but holds no messages.
	ErrNoMessages = errors.New("no messages in window")
	// ErrUpstream means the summarizer failed; the cause is logged, not returned.
	ErrUpstream = errors.New("summarizer unavailable")
	// ErrInvalidDateFormat means the window label could not be parsed.
	ErrInvalidDateFormat = store.ErrInvalidDateFormat
)

// Summarizer is the text-in, text-out model capability.
type Summarizer interface {
	Summarize(ctx context.Context, instruction, text string) (string, error)
}

// Request names what to summarize.
type Request struct {
	// Kind labels the request in logs and metrics ("sum", "top", ...).
	Kind        string
	ChatID      int64
	Window      store.Window
	Instruction string
}

// Result is a produced summary.
type Result struct {
	Window   store.Window
	Text     string
	Messages int
}

// Service reads windows from the store and hands them to the summarizer.
type Service struct {
	store *store.Store
	llm   Summarizer
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a summary service.
func NewService(st *store.Store, llm Summarizer, log *slog.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		store: st,
		llm:   llm,
		log:   log.With("component", "summary"),
		now:   time.Now,
	}
}

// Now returns the current time in the store's canonical zone.
func (s *Service) Now() time.Time {
	return s.now().In(s.store.Location())
}

// Render returns the window as the text handed to the model, and the number
// of messages it contains.
func (s *Service) Render(chatID int64, w store.Window) (string, int) {
	lines := s.store.QueryWindow(chatID, w.Start, w.End)
	if len(lines) == 0 {
		return "", 0
	}
	return fmt.Sprintf(gemini.ChatLogTemplate, w.Label, strings.Join(lines, "\n")), len(lines)
}

// Summarize summarizes req.Window.
func (s *Service) Summarize(ctx context.Context, req Request) (Result, error) {
	log := s.log.With("kind", req.Kind, "chat_id", req.ChatID, "window", req.Window.Label)

	text, n := s.Render(req.ChatID, req.Window)
	if n == 0 {
		metrics.Summaries.WithLabelValues(req.Kind, "empty").Inc()
		log.DebugContext(ctx, "No messages to summarize")
		return Result{Window: req.Window}, ErrNoMessages
	}

	start := time.Now()
	out, err := s.llm.Summarize(ctx, req.Instruction, text)
	if err != nil {
		metrics.Summaries.WithLabelValues(req.Kind, "error").Inc()
		log.ErrorContext(ctx, "Summarizer failed", "error", err, "messages", n)
		return Result{Window: req.Window, Messages: n}, ErrUpstream
	}

	metrics.Summaries.WithLabelValues(req.Kind, "ok").Inc()
	log.InfoContext(ctx, "Summary generated", "messages", n, "duration", time.Since(start))
	return Result{Window: req.Window, Text: out, Messages: n}, nil
}

// SummarizeLabel parses label relative to now (see store.ParseWindow) and
// summarizes the resulting window.
func (s *Service) SummarizeLabel(ctx context.Context, kind string, chatID int64, label, instruction string) (Result, error) {
	w, err := store.ParseWindow(label, s.Now(), s.store.Location())
	if err != nil {
		metrics.Summaries.WithLabelValues(kind, "invalid").Inc()
		return Result{}, err
	}
	return s.Summarize(ctx, Request{Kind: kind, ChatID: chatID, Window: w, Instruction: instruction})
}
