package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/reply"
)

// NewMessageHandler returns the default handler for plain chat messages.
// Keyboard buttons run their command, a pending song order takes the text
// as the wish, text starting with "?" is a question to the bot, and any
// other text is stored for summaries. Voice messages are stored as their
// transcript.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.handle(ctx, b, update.Message)
}

func (h messageHandler) handle(ctx context.Context, s reply.Sender, msg *models.Message) {
	log := h.deps.Logger.With("handler", "message")

	if msg.ViaBot != nil || (msg.From != nil && msg.From.IsBot) {
		return
	}
	if msg.Voice != nil {
		storeVoice(ctx, h.deps, msg)
		return
	}
	if msg.Text == "" {
		return
	}
	// Commands without a registered handler are not chat content.
	if strings.HasPrefix(msg.Text, "/") {
		log.DebugContext(ctx, "Ignoring unknown command", "chat_id", msg.Chat.ID, "text", msg.Text)
		return
	}

	if action, ok := buttons[msg.Text]; ok {
		log.InfoContext(ctx, "Keyboard button pressed", "chat_id", msg.Chat.ID, "button", msg.Text)
		action(ctx, h.deps, s, msg)
		return
	}
	if h.deps.Orders.Take(msg.Chat.ID, senderID(msg)) {
		log.InfoContext(ctx, "Song order received", "chat_id", msg.Chat.ID)
		songHandler{deps: h.deps, custom: true}.compose(ctx, s, msg.Chat.ID, strings.TrimSpace(msg.Text))
		return
	}

	if strings.HasPrefix(msg.Text, "?") {
		if prompt := strings.TrimSpace(msg.Text[1:]); prompt != "" {
			answer(ctx, h.deps, s, log, msg.Chat.ID, prompt)
			return
		}
	}

	storeMessage(ctx, h.deps, toStoreMessage(msg))

	if h.deps.Counter.Hit(msg.Chat.ID) {
		log.InfoContext(ctx, "Automatic reply", "chat_id", msg.Chat.ID, "count", h.deps.Counter.Count(msg.Chat.ID))
		answer(ctx, h.deps, s, log, msg.Chat.ID, msg.Text)
	}
}
