// Package store keeps the time-indexed log of chat messages that every
// summary, report and song is built from. All reads and writes of
// historical messages go through Store; other packages only query it.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Message is a single stored chat message.
type Message struct {
	ChatID    int64
	MessageID int
	Sender    string
	Text      string
	Timestamp time.Time
}

// Line renders the message the way it is handed to the summarizer.
func (m Message) Line() string {
	return fmt.Sprintf("%s: %s", m.Sender, m.Text)
}

// Record is the persisted form of a message inside a chat.
type Record struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time deep copy of the store: chat id to message id to record.
type Snapshot map[int64]map[int]Record

// Count returns the number of records across all chats.
func (s Snapshot) Count() int {
	n := 0
	for _, chat := range s {
		n += len(chat)
	}
	return n
}

// Stats describes the stored messages of one chat. Oldest and Newest are
// zero when Count is 0.
type Stats struct {
	Count  int
	Oldest time.Time
	Newest time.Time
}

// Store is a concurrency-safe, per-chat message log. Every timestamp is
// kept in the canonical location the store was created with.
type Store struct {
	mu       sync.RWMutex
	loc      *time.Location
	chats    map[int64]map[int]Record
	revision uint64
}

// New creates an empty store that normalizes timestamps to loc.
func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		loc:   loc,
		chats: make(map[int64]map[int]Record),
	}
}

// Location returns the canonical time zone of the store.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Append inserts or overwrites the message at (ChatID, MessageID) and marks
// the store dirty.
func (s *Store) Append(m Message) {
	rec := Record{
		Sender:    m.Sender,
		Text:      m.Text,
		Timestamp: m.Timestamp.In(s.loc),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[m.ChatID]
	if !ok {
		chat = make(map[int]Record)
		s.chats[m.ChatID] = chat
	}
	chat[m.MessageID] = rec
	s.revision++
}

// QueryWindow returns every message of chatID with start <= timestamp <= end
// rendered as "sender: text", oldest first. Ties are broken by message id.
// An unknown chat or an empty range yields an empty slice.
func (s *Store) QueryWindow(chatID int64, start, end time.Time) []string {
	msgs := s.Messages(chatID, start, end)
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, m.Line())
	}
	return lines
}

// Messages returns the messages of chatID inside [start, end], oldest first.
func (s *Store) Messages(chatID int64, start, end time.Time) []Message {
	s.mu.RLock()
	chat := s.chats[chatID]
	msgs := make([]Message, 0, len(chat))
	for id, rec := range chat {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		msgs = append(msgs, Message{
			ChatID:    chatID,
			MessageID: id,
			Sender:    rec.Sender,
			Text:      rec.Text,
			Timestamp: rec.Timestamp,
		})
	}
	s.mu.RUnlock()

	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].MessageID < msgs[j].MessageID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs
}

// QueryNamed resolves label into a window relative to now (see ParseWindow)
// and returns the matching lines. A label that cannot be parsed returns
// ErrInvalidDateFormat; a valid window without messages returns an empty slice.
func (s *Store) QueryNamed(chatID int64, label string, now time.Time) ([]string, Window, error) {
	w, err := ParseWindow(label, now, s.loc)
	if err != nil {
		return nil, Window{}, err
	}
	return s.QueryWindow(chatID, w.Start, w.End), w, nil
}

// DebugStats reports the message count and time range of chatID.
func (s *Store) DebugStats(chatID int64) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, rec := range s.chats[chatID] {
		if st.Count == 0 || rec.Timestamp.Before(st.Oldest) {
			st.Oldest = rec.Timestamp
		}
		if st.Count == 0 || rec.Timestamp.After(st.Newest) {
			st.Newest = rec.Timestamp
		}
		st.Count++
	}
	return st
}

// ChatIDs lists every chat that has stored messages, in ascending order.
func (s *Store) ChatIDs() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.chats))
	for id, chat := range s.chats {
		if len(chat) > 0 {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Revision increases on every mutation. The persistence layer compares it
// to decide whether a flush has anything to write.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Snapshot returns a deep copy of the store and the revision it reflects.
func (s *Store) Snapshot() (Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(s.chats))
	for chatID, chat := range s.chats {
		cp := make(map[int]Record, len(chat))
		for id, rec := range chat {
			cp[id] = rec
		}
		snap[chatID] = cp
	}
	return snap, s.revision
}

// Restore replaces the store contents with snap, re-attaching the canonical
// location to every timestamp.
func (s *Store) Restore(snap Snapshot) {
	chats := make(map[int64]map[int]Record, len(snap))
	for chatID, chat := range snap {
		cp := make(map[int]Record, len(chat))
		for id, rec := range chat {
			rec.Timestamp = rec.Timestamp.In(s.loc)
			cp[id] = rec
		}
		chats[chatID] = cp
	}

	s.mu.Lock()
	s.chats = chats
	s.revision++
	s.mu.Unlock()
}

// Reset drops every stored message.
func (s *Store) Reset() {
	s.mu.Lock()
	s.chats = make(map[int64]map[int]Record)
	s.revision++
	s.mu.Unlock()
}

// ResetChat drops the stored messages of one chat and reports how many were removed.
func (s *Store) ResetChat(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.chats[chatID])
	delete(s.chats, chatID)
	if n > 0 {
		s.revision++
	}
	return n
}

// Prune removes records older than before and returns how many were dropped.
// It only bounds memory and file size; queries never depend on it.
func (s *Store) Prune(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for chatID, chat := range s.chats {
		for id, rec := range chat {
			if rec.Timestamp.Before(before) {
				delete(chat, id)
				removed++
			}
		}
		if len(chat) == 0 {
			delete(s.chats, chatID)
		}
	}
	if removed > 0 {
		s.revision++
	}
	return removed
}
