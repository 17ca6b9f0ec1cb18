package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// typingInterval stays below the five seconds Telegram shows an action for.
const typingInterval = 4 * time.Second

type chatActionSender interface {
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// startTyping shows the typing indicator in chatID until the returned stop
// function is called. Senders without chat actions get a no-op.
func startTyping(ctx context.Context, s any, log *slog.Logger, chatID int64) (stop func()) {
	typer, ok := s.(chatActionSender)
	if !ok {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			if _, err := typer.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping}); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.DebugContext(ctx, "Typing action failed", "error", err, "chat_id", chatID)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
