package handlers

import (
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
	// MatchFunc, when set, replaces HandlerType, Pattern and MatchType.
	MatchFunc tgbot.MatchFunc
}

func command(pattern string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) RegisteredHandler {
	return RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     pattern,
		Handler:     h,
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  mw,
	}
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// It configures each command with appropriate handlers and middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = command("start", NewStartHandler(deps))
	handlers["/help"] = command("help", NewHelpHandler(deps))

	handlers["/sum"] = command("sum", NewSummaryHandler(deps, sumCommand))
	handlers["/top"] = command("top", NewSummaryHandler(deps, topCommand))
	handlers["/week"] = command("week", NewSummaryHandler(deps, weekCommand))
	handlers["/recent"] = command("recent", NewSummaryHandler(deps, recentCommand))
	handlers["/date"] = command("date", NewSummaryHandler(deps, dateCommand))
	handlers["/topdate"] = command("topdate", NewSummaryHandler(deps, topDateCommand))

	handlers["/q"] = command("q", NewQuestionHandler(deps))
	handlers["/song"] = command("song", NewSongHandler(deps, false))
	handlers["/ordersong"] = command("ordersong", NewSongHandler(deps, true))
	handlers["/gift"] = command("gift", NewGiftHandler(deps))
	handlers["/debug"] = command("debug", NewDebugHandler(deps))

	handlers["/reset"] = command("reset", NewResetHandler(deps), AdminOnly(deps))

	handlers["message"] = RegisteredHandler{
		Handler:   NewMessageHandler(deps),
		MatchFunc: isChatMessage,
	}

	return handlers
}

// isChatMessage matches voice messages and text messages that are not commands.
func isChatMessage(update *models.Update) bool {
	msg := update.Message
	if msg == nil {
		return false
	}
	if msg.Voice != nil {
		return true
	}
	return msg.Text != "" && !strings.HasPrefix(msg.Text, "/")
}
