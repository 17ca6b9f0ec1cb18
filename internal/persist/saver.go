package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Usernoise/chatd/internal/logger"
	"github.com/Usernoise/chatd/internal/metrics"
	"github.com/Usernoise/chatd/internal/store"
)

// Saver batches store writes: every Save call counts, and a snapshot is
// written only when the count reaches the batch size or the call is forced.
type Saver struct {
	store     *store.Store
	backend   Backend
	batchSize int
	log       *slog.Logger

	mu      sync.Mutex // guards counter and savedRev
	counter int
	// savedRev is the store revision of the last successful write.
	savedRev uint64

	writeMu sync.Mutex // serializes backend writes
}

// NewSaver creates a Saver for st writing through backend.
func NewSaver(st *store.Store, backend Backend, batchSize int, log *slog.Logger) *Saver {
	if log == nil {
		log = logger.Discard()
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Saver{
		store:     st,
		backend:   backend,
		batchSize: batchSize,
		log:       log.With("component", "saver"),
	}
}

// Save counts one change and writes a snapshot when the batch is full or
// force is set. It reports whether a write was attempted. Write failures are
// logged and dropped; the in-memory store stays authoritative.
func (s *Saver) Save(ctx context.Context, force bool) bool {
	s.mu.Lock()
	s.counter++
	if !force && s.counter < s.batchSize {
		s.mu.Unlock()
		return false
	}
	s.counter = 0
	s.mu.Unlock()

	if err := s.write(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to save message store", "error", err)
	}
	return true
}

// Flush writes a snapshot if the store changed since the last successful write.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.store.Revision() == s.savedRev {
		s.mu.Unlock()
		return nil
	}
	s.counter = 0
	s.mu.Unlock()
	return s.write(ctx)
}

func (s *Saver) write(ctx context.Context) error {
	snap, rev := s.store.Snapshot()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	err := s.backend.Write(ctx, snap)
	metrics.StoreSaves.WithLabelValues(metrics.Result(err)).Inc()
	metrics.StoreSaveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.mu.Lock()
	if rev > s.savedRev {
		s.savedRev = rev
	}
	s.mu.Unlock()

	s.log.DebugContext(ctx, "Message store saved", "messages", snap.Count(), "revision", rev, "duration", time.Since(start))
	return nil
}

// Load restores the store from the backend.
func (s *Saver) Load(ctx context.Context) error {
	snap, err := s.backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to load message store: %w", err)
	}
	s.store.Restore(snap)

	s.mu.Lock()
	s.savedRev = s.store.Revision()
	s.counter = 0
	s.mu.Unlock()
	return nil
}
