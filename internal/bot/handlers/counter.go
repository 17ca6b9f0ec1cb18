package handlers

import "sync"

// ReplyCounter counts stored messages per chat and tells when the bot
// should answer on its own. Counters start at zero on every process start.
type ReplyCounter struct {
	mu       sync.Mutex
	interval int
	counts   map[int64]int
}

// NewReplyCounter creates a counter firing every interval messages. An
// interval of zero or less never fires.
func NewReplyCounter(interval int) *ReplyCounter {
	return &ReplyCounter{interval: interval, counts: make(map[int64]int)}
}

// Hit records one message for chatID and reports whether it is an Nth one.
func (c *ReplyCounter) Hit(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[chatID]++
	return c.interval > 0 && c.counts[chatID]%c.interval == 0
}

// Count returns the number of messages counted for chatID.
func (c *ReplyCounter) Count(chatID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[chatID]
}

// Next returns how many messages remain until the next automatic reply,
// or -1 when automatic replies are disabled.
func (c *ReplyCounter) Next(chatID int64) int {
	if c.interval <= 0 {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval - c.counts[chatID]%c.interval
}

// Reset forgets chatID.
func (c *ReplyCounter) Reset(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, chatID)
}
