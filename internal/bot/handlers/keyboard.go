package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/reply"
)

// Reply keyboard buttons shown by /start.
const (
	buttonSummary   = "📋 Summary"
	buttonTop       = "🏆 Top of the day"
	buttonWeek      = "📅 Top 7d"
	buttonRecent    = "🤔 What's going on here"
	buttonGift      = "🎁 Gift"
	buttonSong      = "🎵 Song of the day"
	buttonOrderSong = "🎶 Order a song"
)

const orderWaitTTL = 10 * time.Minute

func mainKeyboard() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: buttonSummary}, {Text: buttonTop}, {Text: buttonWeek}},
			{{Text: buttonRecent}},
			{{Text: buttonGift}, {Text: buttonSong}, {Text: buttonOrderSong}},
		},
		ResizeKeyboard: true,
	}
}

type buttonAction func(ctx context.Context, deps HandlerDeps, s reply.Sender, msg *models.Message)

func summaryButton(cmd summaryCommand) buttonAction {
	return func(ctx context.Context, deps HandlerDeps, s reply.Sender, msg *models.Message) {
		summaryHandler{deps: deps, cmd: cmd}.handle(ctx, s, msg)
	}
}

var buttons = map[string]buttonAction{
	buttonSummary: summaryButton(sumCommand),
	buttonTop:     summaryButton(topCommand),
	buttonWeek:    summaryButton(weekCommand),
	buttonRecent:  summaryButton(recentCommand),
	buttonGift: func(ctx context.Context, deps HandlerDeps, s reply.Sender, msg *models.Message) {
		giftHandler{deps}.handle(ctx, s, msg)
	},
	buttonSong: func(ctx context.Context, deps HandlerDeps, s reply.Sender, msg *models.Message) {
		songHandler{deps: deps}.handle(ctx, s, msg)
	},
	buttonOrderSong: orderSongButton,
}

// orderSongButton makes the sender's next message in the chat a song order.
func orderSongButton(ctx context.Context, deps HandlerDeps, s reply.Sender, msg *models.Message) {
	log := deps.Logger.With("handler", "keyboard")
	if !deps.songsEnabled() {
		_ = reply.Send(ctx, s, log, msg.Chat.ID, deps.Config.Messages.SongDisabled)
		return
	}
	deps.Orders.Wait(msg.Chat.ID, senderID(msg))
	_ = reply.Send(ctx, s, log, msg.Chat.ID, deps.Config.Messages.SongOrderPrompt)
}

func senderID(msg *models.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}

type orderKey struct {
	chatID int64
	userID int64
}

// OrderWaits remembers users who pressed the order button and owe the bot
// a song request. A nil *OrderWaits never waits.
type OrderWaits struct {
	mu      sync.Mutex
	pending map[orderKey]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewOrderWaits creates an empty set of pending song orders.
func NewOrderWaits() *OrderWaits {
	return &OrderWaits{
		pending: make(map[orderKey]time.Time),
		ttl:     orderWaitTTL,
		now:     time.Now,
	}
}

// Wait marks userID in chatID as about to send a song request.
func (o *OrderWaits) Wait(chatID, userID int64) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[orderKey{chatID, userID}] = o.now().Add(o.ttl)
}

// Take reports whether userID in chatID was waiting and clears the wait.
// Expired waits are dropped.
func (o *OrderWaits) Take(chatID, userID int64) bool {
	if o == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	key := orderKey{chatID, userID}
	deadline, ok := o.pending[key]
	if !ok {
		return false
	}
	delete(o.pending, key)
	return o.now().Before(deadline)
}
