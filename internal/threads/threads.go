// Package threads keeps a short rolling question/answer history per chat so
// a stateless model can see the last few exchanges. Threads live in memory
// only and start empty after a restart.
package threads

import (
	"sync"
)

// Roles of a thread turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single utterance of a thread.
type Turn struct {
	Role    string
	Content string
}

// Cache holds one thread per chat. The first turn of every thread is the
// system seed; when a thread grows past maxLen it is cut down to the seed
// plus the most recent keep-1 turns.
type Cache struct {
	mu      sync.Mutex
	seed    string
	maxLen  int
	keep    int
	threads map[int64][]Turn
}

// New creates a cache seeded with seed. keep counts the seed itself.
func New(seed string, maxLen, keep int) *Cache {
	if maxLen < 2 {
		maxLen = 2
	}
	if keep < 1 || keep > maxLen {
		keep = maxLen
	}
	return &Cache{
		seed:    seed,
		maxLen:  maxLen,
		keep:    keep,
		threads: make(map[int64][]Turn),
	}
}

// AppendTurn adds a turn to the chat's thread, creating the thread on first use.
func (c *Cache) AppendTurn(chatID int64, role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[chatID]
	if !ok {
		thread = []Turn{{Role: RoleSystem, Content: c.seed}}
	}
	c.threads[chatID] = append(thread, Turn{Role: role, Content: content})
}

// Trim applies the length cap to one thread and reports whether it was cut.
func (c *Cache) Trim(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trimLocked(chatID)
}

func (c *Cache) trimLocked(chatID int64) bool {
	thread := c.threads[chatID]
	if len(thread) <= c.maxLen {
		return false
	}
	kept := make([]Turn, 0, c.keep)
	kept = append(kept, thread[0])
	kept = append(kept, thread[len(thread)-(c.keep-1):]...)
	c.threads[chatID] = kept
	return true
}

// SweepAll trims every thread and returns how many were cut.
func (c *Cache) SweepAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	trimmed := 0
	for chatID := range c.threads {
		if c.trimLocked(chatID) {
			trimmed++
		}
	}
	return trimmed
}

// Turns returns a copy of the chat's thread. An unknown chat yields only the seed.
func (c *Cache) Turns(chatID int64) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[chatID]
	if !ok {
		return []Turn{{Role: RoleSystem, Content: c.seed}}
	}
	out := make([]Turn, len(thread))
	copy(out, thread)
	return out
}

// Len returns the number of turns in the chat's thread, 0 if it has none.
func (c *Cache) Len(chatID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.threads[chatID])
}

// Reset forgets the chat's thread.
func (c *Cache) Reset(chatID int64) {
	c.mu.Lock()
	delete(c.threads, chatID)
	c.mu.Unlock()
}
