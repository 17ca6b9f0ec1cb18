package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/gemini"
	"github.com/Usernoise/chatd/internal/jobs"
	"github.com/Usernoise/chatd/internal/reply"
	"github.com/Usernoise/chatd/internal/store"
	"github.com/Usernoise/chatd/internal/suno"
)

const (
	songWindowHours = 24
	orderPrefix     = "Write a song for the chat on this request:\n\n"
)

// NewSongHandler returns a handler for /song (a song about the last day)
// and, when custom is set, /ordersong (a song on the user's request).
func NewSongHandler(deps HandlerDeps, custom bool) bot.HandlerFunc {
	return songHandler{deps: deps, custom: custom}.Handle
}

type songHandler struct {
	deps   HandlerDeps
	custom bool
}

func (h songHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.handle(ctx, b, update.Message)
}

func (h songHandler) handle(ctx context.Context, s reply.Sender, msg *models.Message) {
	msgs := h.deps.Config.Messages
	chatID := msg.Chat.ID

	if !h.custom {
		h.compose(ctx, s, chatID, "")
		return
	}
	wish := commandArgs(msg.Text)
	if wish == "" {
		_ = reply.Send(ctx, s, h.deps.Logger.With("handler", "song"), chatID, msgs.SongOrderUsage)
		return
	}
	h.compose(ctx, s, chatID, wish)
}

// compose writes a song about the last day, or about wish when it is set,
// and starts generating its music.
func (h songHandler) compose(ctx context.Context, s reply.Sender, chatID int64, wish string) {
	log := h.deps.Logger.With("handler", "song", "custom", wish != "")
	msgs := h.deps.Config.Messages

	if !h.deps.songsEnabled() {
		_ = reply.Send(ctx, s, log, chatID, msgs.SongDisabled)
		return
	}

	text := orderPrefix + wish
	if wish == "" {
		var n int
		text, n = h.deps.Summary.Render(chatID, store.LastHours(h.deps.Summary.Now(), songWindowHours))
		if n == 0 {
			_ = reply.Send(ctx, s, log, chatID, msgs.SongFailed)
			return
		}
	}

	_ = reply.Send(ctx, s, log, chatID, msgs.SongComposing)
	start := time.Now()
	stopTyping := startTyping(ctx, s, log, chatID)
	song, err := h.deps.GeminiClient.ComposeSong(ctx, h.deps.Config.Prompts.Song, text)
	if err == nil {
		song.Lyrics = refineLyrics(ctx, h.deps, log, song.Lyrics)
	}
	stopTyping()
	if err != nil {
		log.ErrorContext(ctx, "Failed to compose song", "error", err, "chat_id", chatID)
		_ = reply.Send(ctx, s, log, chatID, msgs.SongFailed)
		return
	}
	log.InfoContext(ctx, "Song composed", "chat_id", chatID, "title", song.Title, "duration", time.Since(start))
	_ = reply.Send(ctx, s, log, chatID, reply.Song(song))

	startMusic(ctx, h.deps, s, log, chatID, song)
}

// refineLyrics runs a second model pass over lyrics. Without a refine
// prompt, or when the pass fails, lyrics are returned unchanged.
func refineLyrics(ctx context.Context, deps HandlerDeps, log *slog.Logger, lyrics string) string {
	instruction := deps.Config.Prompts.Refine
	if instruction == "" || lyrics == "" {
		return lyrics
	}
	refined, err := deps.GeminiClient.Summarize(ctx, instruction, lyrics)
	if err != nil {
		log.WarnContext(ctx, "Failed to refine lyrics, keeping the first draft", "error", err)
		return lyrics
	}
	if refined = strings.TrimSpace(refined); refined == "" {
		return lyrics
	}
	return refined
}

// startMusic submits song for music generation and tracks the job until the
// tracks are delivered to chatID.
func startMusic(ctx context.Context, deps HandlerDeps, s reply.Sender, log *slog.Logger, chatID int64, song *gemini.Song) {
	msgs := deps.Config.Messages

	jobID, err := deps.Songs.Submit(ctx, suno.Request{Lyrics: song.Lyrics, Style: song.Style(), Title: song.Title})
	if err != nil {
		log.ErrorContext(ctx, "Failed to submit music generation", "error", err, "chat_id", chatID)
		_ = reply.Send(ctx, s, log, chatID, msgs.SongSubmitFailed)
		return
	}

	entry := jobs.Entry{JobID: jobID, ChatID: chatID, Payload: song, CreatedAt: deps.Summary.Now()}
	if err := deps.Jobs.Track(entry); err != nil {
		log.ErrorContext(ctx, "Failed to track music generation", "error", err, "job_id", jobID, "chat_id", chatID)
		_ = reply.Send(ctx, s, log, chatID, msgs.SongSubmitFailed)
		return
	}
	_ = reply.Send(ctx, s, log, chatID, msgs.SongSubmitted)
}
