package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/config"
	"github.com/Usernoise/chatd/internal/reply"
	"github.com/Usernoise/chatd/internal/summary"
)

// summaryCommand describes one window summary command.
type summaryCommand struct {
	kind string
	// label returns the window label for the command arguments; ok is
	// false when a required argument is missing.
	label       func(cfg *config.Config, args string) (label string, ok bool)
	instruction func(p config.PromptsConfig) string
	// header is HTML and may hold one %s for the window label.
	header string
}

func fixedLabel(label string) func(*config.Config, string) (string, bool) {
	return func(*config.Config, string) (string, bool) { return label, true }
}

func dateArg(_ *config.Config, args string) (string, bool) {
	return args, args != ""
}

func summaryPrompt(p config.PromptsConfig) string { return p.Summary }
func topPrompt(p config.PromptsConfig) string     { return p.Top }
func recentPrompt(p config.PromptsConfig) string  { return p.Recent }

var (
	sumCommand = summaryCommand{
		kind: "sum", label: fixedLabel("24h"), instruction: summaryPrompt,
		header: "📋 <b>Summary of the last 24 hours:</b>",
	}
	topCommand = summaryCommand{
		kind: "top", label: fixedLabel("24h"), instruction: topPrompt,
		header: "🏆 <b>Top participants of the last 24 hours:</b>",
	}
	weekCommand = summaryCommand{
		kind: "week",
		label: func(cfg *config.Config, _ string) (string, bool) {
			return fmt.Sprintf("%dd", cfg.Bot.WeekDays), true
		},
		instruction: topPrompt,
		header:      "📅 <b>Top participants of the week:</b>",
	}
	recentCommand = summaryCommand{
		kind: "recent",
		label: func(cfg *config.Config, _ string) (string, bool) {
			return fmt.Sprintf("%dh", cfg.Bot.RecentHours), true
		},
		instruction: recentPrompt,
		header:      "🤔 <b>What happened in the %s:</b>",
	}
	dateCommand = summaryCommand{
		kind: "date", label: dateArg, instruction: summaryPrompt,
		header: "📋 <b>Summary for %s:</b>",
	}
	topDateCommand = summaryCommand{
		kind: "topdate", label: dateArg, instruction: topPrompt,
		header: "🏆 <b>Top participants for %s:</b>",
	}
)

// NewSummaryHandler returns a handler summarizing the window cmd names.
func NewSummaryHandler(deps HandlerDeps, cmd summaryCommand) bot.HandlerFunc {
	return summaryHandler{deps: deps, cmd: cmd}.Handle
}

type summaryHandler struct {
	deps HandlerDeps
	cmd  summaryCommand
}

func (h summaryHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.handle(ctx, b, update.Message)
}

func (h summaryHandler) handle(ctx context.Context, s reply.Sender, msg *models.Message) {
	log := h.deps.Logger.With("handler", h.cmd.kind)
	chatID := msg.Chat.ID
	msgs := h.deps.Config.Messages

	label, ok := h.cmd.label(h.deps.Config, commandArgs(msg.Text))
	if !ok {
		_ = reply.Send(ctx, s, log, chatID, msgs.DateUsage)
		return
	}

	log.InfoContext(ctx, "Handling summary command", "chat_id", chatID, "label", label)
	stopTyping := startTyping(ctx, s, log, chatID)
	res, err := h.deps.Summary.SummarizeLabel(ctx, h.cmd.kind, chatID, label, h.cmd.instruction(h.deps.Config.Prompts))
	stopTyping()
	switch {
	case errors.Is(err, summary.ErrInvalidDateFormat):
		_ = reply.Send(ctx, s, log, chatID, msgs.InvalidDate)
	case errors.Is(err, summary.ErrNoMessages):
		_ = reply.Send(ctx, s, log, chatID, fmt.Sprintf(msgs.NoMessages, html.EscapeString(res.Window.Label)))
	case err != nil:
		_ = reply.Send(ctx, s, log, chatID, msgs.SummaryFailed)
	default:
		header := h.cmd.header
		if strings.Contains(header, "%s") {
			header = fmt.Sprintf(header, html.EscapeString(res.Window.Label))
		}
		_ = reply.Send(ctx, s, log, chatID, reply.Titled(header, res.Text))
	}
}
