package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/reply"
	"github.com/Usernoise/chatd/internal/store"
)

const giftWindowHours = 24

// NewGiftHandler returns a handler for the /gift command.
func NewGiftHandler(deps HandlerDeps) bot.HandlerFunc {
	return giftHandler{deps}.Handle
}

type giftHandler struct {
	deps HandlerDeps
}

func (h giftHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.handle(ctx, b, update.Message)
}

func (h giftHandler) handle(ctx context.Context, s reply.Sender, msg *models.Message) {
	log := h.deps.Logger.With("handler", "gift")
	chatID := msg.Chat.ID

	text, n := h.deps.Summary.Render(chatID, store.LastHours(h.deps.Summary.Now(), giftWindowHours))
	if n == 0 {
		_ = reply.Send(ctx, s, log, chatID, h.deps.Config.Messages.GiftFailed)
		return
	}

	stopTyping := startTyping(ctx, s, log, chatID)
	gift, err := h.deps.GeminiClient.ComposeGift(ctx, h.deps.Config.Prompts.Gift, text)
	stopTyping()
	if err != nil {
		log.ErrorContext(ctx, "Failed to compose gift", "error", err, "chat_id", chatID, "messages", n)
		_ = reply.Send(ctx, s, log, chatID, h.deps.Config.Messages.GiftFailed)
		return
	}
	log.InfoContext(ctx, "Gift composed", "chat_id", chatID, "director", gift.DirectorName)
	_ = reply.Send(ctx, s, log, chatID, reply.Gift(gift))
}
