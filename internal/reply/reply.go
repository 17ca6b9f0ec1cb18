// Package reply formats bot output as Telegram HTML and sends it.
package reply

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Usernoise/chatd/internal/gemini"
)

// Sender is the part of *bot.Bot used to send text.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

var (
	boldMarkdown = regexp.MustCompile(`\*\*(.+?)\*\*`)
	stripTags    = bluemonday.StrictPolicy()
)

// Model escapes model output for HTML parse mode and keeps its **bold** markup.
func Model(s string) string {
	return boldMarkdown.ReplaceAllString(html.EscapeString(s), "<b>$1</b>")
}

// Plain strips markup from an HTML message.
func Plain(s string) string {
	return html.UnescapeString(stripTags.Sanitize(s))
}

func isParseError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "can't parse") || strings.Contains(msg, "parse entities")
}

// Send sends text in HTML parse mode. When Telegram rejects the markup the
// message is sent again without it.
func Send(ctx context.Context, s Sender, log *slog.Logger, chatID int64, text string) error {
	return send(ctx, s, log, chatID, text, nil)
}

// SendWithKeyboard is Send with a reply keyboard attached.
func SendWithKeyboard(ctx context.Context, s Sender, log *slog.Logger, chatID int64, text string, kb *models.ReplyKeyboardMarkup) error {
	return send(ctx, s, log, chatID, text, kb)
}

func send(ctx context.Context, s Sender, log *slog.Logger, chatID int64, text string, kb *models.ReplyKeyboardMarkup) error {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	_, err := s.SendMessage(ctx, params)
	if err == nil {
		return nil
	}
	if !isParseError(err) {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
		return fmt.Errorf("send message: %w", err)
	}

	log.WarnContext(ctx, "HTML rejected, sending plain text", "error", err, "chat_id", chatID)
	params = &bot.SendMessageParams{ChatID: chatID, Text: Plain(text)}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := s.SendMessage(ctx, params); err != nil {
		log.ErrorContext(ctx, "Failed to send plain text message", "error", err, "chat_id", chatID)
		return fmt.Errorf("send plain message: %w", err)
	}
	return nil
}

// Song renders a composed song.
func Song(s *gemini.Song) string {
	var sb strings.Builder
	sb.WriteString("🎵 <b>SONG OF THE DAY</b> 🎵\n\n")
	fmt.Fprintf(&sb, "🎼 <b>Title:</b> %s\n", html.EscapeString(s.Title))
	fmt.Fprintf(&sb, "🎭 <b>Genre:</b> %s\n", html.EscapeString(s.Genre))
	fmt.Fprintf(&sb, "😊 <b>Mood:</b> %s\n\n", html.EscapeString(s.Mood))
	fmt.Fprintf(&sb, "📝 <b>What happened:</b>\n%s\n\n", html.EscapeString(s.Description))
	if len(s.MainCharacters) > 0 {
		fmt.Fprintf(&sb, "👥 <b>Main characters:</b>\n%s\n\n", html.EscapeString(strings.Join(s.MainCharacters, ", ")))
	}
	if len(s.KeyEvents) > 0 {
		fmt.Fprintf(&sb, "🎯 <b>Key events:</b>\n%s\n\n", html.EscapeString(strings.Join(s.KeyEvents, ", ")))
	}
	fmt.Fprintf(&sb, "🎤 <b>Lyrics:</b>\n\n%s", html.EscapeString(s.Lyrics))
	return sb.String()
}

// Gift renders the director of the day and their gift.
func Gift(g *gemini.Gift) string {
	return fmt.Sprintf("🎁 <b>A GIFT FOR THE CHAT DIRECTOR</b> 🎁\n\n"+
		"👑 <b>Director:</b> %s\n"+
		"📊 <b>Analysis:</b> %s\n\n"+
		"🎁 <b>Gift:</b> %s\n"+
		"📝 <b>Description:</b> %s\n\n"+
		"🤔 <b>Why this gift:</b>\n%s",
		html.EscapeString(g.DirectorName),
		html.EscapeString(g.DirectorAnalysis),
		html.EscapeString(g.Name),
		html.EscapeString(g.Description),
		html.EscapeString(g.Reasoning),
	)
}

// Titled puts an HTML header above model output.
func Titled(header, body string) string {
	return header + "\n\n" + Model(body)
}
