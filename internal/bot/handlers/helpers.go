package handlers

import (
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/store"
)

const anonymousSender = "Anonymous"

// commandArgs returns everything after the command word of text.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	i := strings.IndexAny(text, " \n\t")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

// senderName is how a user appears in stored chat logs.
func senderName(u *models.User) string {
	if u == nil || strings.TrimSpace(u.FirstName) == "" {
		return anonymousSender
	}
	return u.FirstName
}

// toStoreMessage converts a Telegram message, using its send time.
func toStoreMessage(msg *models.Message) store.Message {
	return store.Message{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Sender:    senderName(msg.From),
		Text:      msg.Text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}
}

func botMention(text string, info *models.User) string {
	if info == nil || info.Username == "" {
		return text
	}
	return strings.ReplaceAll(text, "@botname", "@"+info.Username)
}
