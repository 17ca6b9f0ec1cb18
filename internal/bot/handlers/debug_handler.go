package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/reply"
)

const debugTimeLayout = "02.01.2006 15:04"

// NewDebugHandler returns a handler for the /debug command.
func NewDebugHandler(deps HandlerDeps) bot.HandlerFunc {
	return debugHandler{deps}.Handle
}

type debugHandler struct {
	deps HandlerDeps
}

func (h debugHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.handle(ctx, b, update.Message)
}

func (h debugHandler) handle(ctx context.Context, s reply.Sender, msg *models.Message) {
	log := h.deps.Logger.With("handler", "debug")
	_ = reply.Send(ctx, s, log, msg.Chat.ID, h.report(msg.Chat.ID))
}

func (h debugHandler) report(chatID int64) string {
	stats := h.deps.Store.DebugStats(chatID)

	var sb strings.Builder
	sb.WriteString("📊 <b>Chat statistics</b>\n\n")
	fmt.Fprintf(&sb, "Messages: <code>%d</code>\n", stats.Count)
	if stats.Count > 0 {
		fmt.Fprintf(&sb, "Oldest: <code>%s</code>\n", stats.Oldest.Format(debugTimeLayout))
		fmt.Fprintf(&sb, "Newest: <code>%s</code>\n", stats.Newest.Format(debugTimeLayout))
	}
	fmt.Fprintf(&sb, "Now: <code>%s</code>\n", h.deps.Summary.Now().Format(debugTimeLayout))
	fmt.Fprintf(&sb, "Thread turns: <code>%d</code>\n", h.deps.Threads.Len(chatID))
	fmt.Fprintf(&sb, "Message counter: <code>%d</code>\n", h.deps.Counter.Count(chatID))
	if next := h.deps.Counter.Next(chatID); next >= 0 {
		fmt.Fprintf(&sb, "Next automatic reply in: <code>%d</code>", next)
	} else {
		sb.WriteString("Automatic replies: <code>off</code>")
	}
	return sb.String()
}
