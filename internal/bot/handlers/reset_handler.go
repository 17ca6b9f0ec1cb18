package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/reply"
)

// NewResetHandler returns a handler for the /reset command.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetHandler{deps}.Handle
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		h.deps.Logger.ErrorContext(ctx, "Reset handler called with nil Message or From", "update_id", update.ID)
		return
	}
	h.handle(ctx, b, update.Message)
}

func (h resetHandler) handle(ctx context.Context, s reply.Sender, msg *models.Message) {
	log := h.deps.Logger.With("handler", "reset")
	chatID := msg.Chat.ID
	log.InfoContext(ctx, "Admin requested data reset", "chat_id", chatID, "user_id", msg.From.ID)

	removed := h.deps.Store.ResetChat(chatID)
	h.deps.Threads.Reset(chatID)
	h.deps.Counter.Reset(chatID)

	// The forced save reports failure through logs only; the in-memory reset stands.
	h.deps.Saver.Save(ctx, true)

	log.InfoContext(ctx, "Chat history cleared", "chat_id", chatID, "removed", removed)
	_ = reply.Send(ctx, s, log, chatID, h.deps.Config.Messages.ResetConfirm)
}
