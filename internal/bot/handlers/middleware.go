// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/reply"
)

// AdminOnly creates a middleware that checks if the message sender is the configured admin user.
// Other users get the unauthorized message and the handler is not called.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				next(ctx, bot, update)
				return
			}

			if !isAdmin(deps, update.Message.From.ID) {
				chatID := update.Message.Chat.ID
				log := deps.Logger.With("middleware", "AdminOnly")
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", update.Message.From.ID, "chat_id", chatID)
				_ = reply.Send(ctx, bot, log, chatID, deps.Config.Messages.ErrorUnauthorized)
				return
			}

			next(ctx, bot, update)
		}
	}
}

// isAdmin reports whether userID is the configured admin. An unset admin id
// authorizes nobody.
func isAdmin(deps HandlerDeps, userID int64) bool {
	adminID := deps.Config.Telegram.AdminUserID
	return adminID != 0 && userID == adminID
}
