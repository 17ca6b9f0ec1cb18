package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	chatdlog "github.com/Usernoise/chatd/internal/logger"
	"github.com/Usernoise/chatd/internal/store"
)

// SnapshotStore persists message store snapshots in SQLite. Each Write
// replaces the whole messages table inside one transaction.
type SnapshotStore struct {
	db     *sqlx.DB
	loc    *time.Location
	logger *slog.Logger
}

// NewSnapshotStore wraps a connected, migrated database.
func NewSnapshotStore(db *sqlx.DB, loc *time.Location, logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = chatdlog.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SnapshotStore{
		db:     db,
		loc:    loc,
		logger: logger.With("component", "sqlite_backend"),
	}
}

// Ping checks the database connection.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Write replaces the stored messages with snap.
func (s *SnapshotStore) Write(ctx context.Context, snap store.Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO messages (chat_id, message_id, sender, text, sent_at)
		VALUES (:chat_id, :message_id, :sender, :text, :sent_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for chatID, chat := range snap {
		for id, rec := range chat {
			row := messageRow{
				ChatID:    chatID,
				MessageID: id,
				Sender:    rec.Sender,
				Text:      rec.Text,
				SentAt:    rec.Timestamp.UnixNano(),
			}
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("failed to insert message %d in chat %d: %w", id, chatID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Snapshot written", "messages", snap.Count())
	return nil
}

// Read loads every stored message. An empty table is an empty snapshot.
func (s *SnapshotStore) Read(ctx context.Context) (store.Snapshot, error) {
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT chat_id, message_id, sender, text, sent_at FROM messages`)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while loading messages", "error", err)
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	snap := make(store.Snapshot)
	for _, r := range rows {
		chat, ok := snap[r.ChatID]
		if !ok {
			chat = make(map[int]store.Record)
			snap[r.ChatID] = chat
		}
		chat[r.MessageID] = store.Record{
			Sender:    r.Sender,
			Text:      r.Text,
			Timestamp: r.timestamp(s.loc),
		}
	}

	s.logger.InfoContext(ctx, "Loaded message store", "chats", len(snap), "messages", len(rows))
	return snap, nil
}

// RunSQLMaintenance reclaims space after large deletions.
func (s *SnapshotStore) RunSQLMaintenance(ctx context.Context) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		return fmt.Errorf("failed to analyze database: %w", err)
	}
	s.logger.InfoContext(ctx, "SQL maintenance completed", "duration", time.Since(start))
	return nil
}

// Close closes the connection pool.
func (s *SnapshotStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
