package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/metrics"
	"github.com/Usernoise/chatd/internal/store"
)

const (
	voicePrefix      = "[Voice]: "
	defaultVoiceMIME = "audio/ogg"
)

func storeMessage(ctx context.Context, deps HandlerDeps, m store.Message) {
	deps.Store.Append(m)
	metrics.MessagesStored.Inc()
	deps.Saver.Save(ctx, false)
}

// storeVoice transcribes a voice message and stores the transcript as chat
// text. Failures are logged and the message is skipped.
func storeVoice(ctx context.Context, deps HandlerDeps, msg *models.Message) {
	if deps.Voice == nil {
		return
	}
	log := deps.Logger.With("handler", "voice", "chat_id", msg.Chat.ID, "message_id", msg.ID)
	start := time.Now()

	audio, err := deps.Voice.Download(ctx, msg.Voice.FileID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to download voice message", "error", err)
		return
	}
	mime := msg.Voice.MimeType
	if mime == "" {
		mime = defaultVoiceMIME
	}

	text, err := deps.GeminiClient.Transcribe(ctx, deps.Config.Prompts.Transcribe, audio, mime)
	if err != nil {
		log.ErrorContext(ctx, "Failed to transcribe voice message", "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		log.InfoContext(ctx, "Voice message has no speech")
		return
	}

	m := toStoreMessage(msg)
	m.Text = voicePrefix + text
	storeMessage(ctx, deps, m)
	log.InfoContext(ctx, "Voice message stored", "duration", time.Since(start), "text_len", len(text))
}
