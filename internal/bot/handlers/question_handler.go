package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/reply"
	"github.com/Usernoise/chatd/internal/threads"
)

// NewQuestionHandler returns a handler for the /q command.
func NewQuestionHandler(deps HandlerDeps) bot.HandlerFunc {
	return questionHandler{deps}.Handle
}

type questionHandler struct {
	deps HandlerDeps
}

func (h questionHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.handle(ctx, b, update.Message)
}

func (h questionHandler) handle(ctx context.Context, s reply.Sender, msg *models.Message) {
	log := h.deps.Logger.With("handler", "question")
	prompt := commandArgs(msg.Text)
	if prompt == "" {
		_ = reply.Send(ctx, s, log, msg.Chat.ID, h.deps.Config.Messages.QuestionUsage)
		return
	}
	answer(ctx, h.deps, s, log, msg.Chat.ID, prompt)
}

// answer continues the chat thread with prompt and sends the model reply.
// The thread keeps the user turn even when the model fails.
func answer(ctx context.Context, deps HandlerDeps, s reply.Sender, log *slog.Logger, chatID int64, prompt string) {
	deps.Threads.AppendTurn(chatID, threads.RoleUser, prompt)

	stopTyping := startTyping(ctx, s, log, chatID)
	out, err := deps.GeminiClient.Chat(ctx, deps.Threads.Turns(chatID))
	stopTyping()
	if err != nil {
		log.ErrorContext(ctx, "Chat reply failed", "error", err, "chat_id", chatID)
		_ = reply.Send(ctx, s, log, chatID, deps.Config.Messages.QuestionFailed)
		return
	}

	deps.Threads.AppendTurn(chatID, threads.RoleAssistant, out)
	if deps.Threads.Trim(chatID) {
		log.DebugContext(ctx, "Thread trimmed", "chat_id", chatID, "turns", deps.Threads.Len(chatID))
	}
	_ = reply.Send(ctx, s, log, chatID, "🤖 "+reply.Model(out))
}
