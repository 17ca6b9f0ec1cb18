package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/config"
	"github.com/Usernoise/chatd/internal/gemini"
	"github.com/Usernoise/chatd/internal/jobs"
	"github.com/Usernoise/chatd/internal/logger"
)

const defaultSongTitle = "Song of the day"

// Sender is the part of *bot.Bot used to deliver results.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendAudio(ctx context.Context, params *bot.SendAudioParams) (*models.Message, error)
}

// Delivery sends finished music generation jobs to their chat. It
// implements jobs.Sink.
type Delivery struct {
	sender   Sender
	http     *http.Client
	messages config.MessagesConfig
	limit    int64
	loc      *time.Location
	log      *slog.Logger
}

// NewDelivery creates a sink. Downloads are bounded by timeout and limit bytes.
func NewDelivery(sender Sender, messages config.MessagesConfig, timeout time.Duration, limit int64, loc *time.Location, log *slog.Logger) *Delivery {
	if log == nil {
		log = logger.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Delivery{
		sender:   sender,
		http:     &http.Client{Timeout: timeout},
		messages: messages,
		limit:    limit,
		loc:      loc,
		log:      log.With("component", "song_delivery"),
	}
}

// Deliver reports the outcome of entry to its chat.
func (d *Delivery) Deliver(ctx context.Context, entry jobs.Entry, outcome jobs.Outcome) error {
	song, _ := entry.Payload.(*gemini.Song)
	title := defaultSongTitle
	if song != nil && song.Title != "" {
		title = song.Title
	}
	log := d.log.With("job_id", entry.JobID, "chat_id", entry.ChatID, "outcome", outcome.Kind.String())

	switch outcome.Kind {
	case jobs.OutcomeFailed:
		return d.sendText(ctx, entry.ChatID, fmt.Sprintf(d.messages.SongGenerationError, html.EscapeString(outcome.Tag)))
	case jobs.OutcomeAbandoned:
		return d.sendText(ctx, entry.ChatID, d.messages.SongTimedOut)
	}

	if len(outcome.Tracks) == 0 {
		log.WarnContext(ctx, "Job succeeded without tracks")
		return d.sendText(ctx, entry.ChatID, fmt.Sprintf(d.messages.SongNoTracks, html.EscapeString(title)))
	}

	log.InfoContext(ctx, "Sending song", "title", title, "tracks", len(outcome.Tracks))
	var errs []error
	for i, track := range outcome.Tracks {
		if err := d.sendTrack(ctx, entry.ChatID, title, i+1, track); err != nil {
			log.WarnContext(ctx, "Failed to send track as audio, sending links", "track", i+1, "error", err)
			if err := d.sendText(ctx, entry.ChatID, fallbackText(i+1, track)); err != nil {
				errs = append(errs, fmt.Errorf("track %d: %w", i+1, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Delivery) sendTrack(ctx context.Context, chatID int64, title string, n int, track jobs.Track) error {
	if track.AudioURL == "" || track.ImageURL == "" {
		return errors.New("track has no audio or cover url")
	}
	audio, err := d.download(ctx, track.AudioURL)
	if err != nil {
		return fmt.Errorf("download audio: %w", err)
	}
	cover, err := d.download(ctx, track.ImageURL)
	if err != nil {
		return fmt.Errorf("download cover: %w", err)
	}

	_, err = d.sender.SendAudio(ctx, &bot.SendAudioParams{
		ChatID:    chatID,
		Audio:     &models.InputFileUpload{Filename: fmt.Sprintf("track_%d.mp3", n), Data: bytes.NewReader(audio)},
		Thumbnail: &models.InputFileUpload{Filename: fmt.Sprintf("cover_%d.jpg", n), Data: bytes.NewReader(cover)},
		Title:     fmt.Sprintf("%s - Track %d", title, n),
		Performer: time.Now().In(d.loc).Format("02.01.06"),
		Caption:   fmt.Sprintf("🎵 <b>Track %d</b>", n),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (d *Delivery) download(ctx context.Context, url string) ([]byte, error) {
	return fetch(ctx, d.http, url, d.limit)
}

// fetch downloads url, failing on non-200 responses and bodies over limit bytes.
func fetch(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file larger than %d bytes", limit)
	}
	return data, nil
}

func (d *Delivery) sendText(ctx context.Context, chatID int64, text string) error {
	_, err := d.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func fallbackText(n int, track jobs.Track) string {
	audio, cover := track.AudioURL, track.ImageURL
	if audio == "" {
		audio = "N/A"
	}
	if cover == "" {
		cover = "N/A"
	}
	return fmt.Sprintf("🎵 <b>Track %d</b>\nAudio: %s\nCover: %s", n, html.EscapeString(audio), html.EscapeString(cover))
}
