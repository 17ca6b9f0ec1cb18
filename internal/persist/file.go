package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Usernoise/chatd/internal/logger"
	"github.com/Usernoise/chatd/internal/store"
)

const backupLayout = "20060102_150405"

// FileBackend keeps the snapshot in a single JSON document:
//
//	{"<chat_id>": {"<message_id>": {"sender": ..., "text": ..., "timestamp": RFC 3339}}}
//
// Writes go to "<path>.tmp" and are renamed over path once synced.
type FileBackend struct {
	path string
	loc  *time.Location
	log  *slog.Logger
	now  func() time.Time
}

// NewFileBackend creates a backend for path. Loaded timestamps are converted to loc.
func NewFileBackend(path string, loc *time.Location, log *slog.Logger) *FileBackend {
	if log == nil {
		log = logger.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FileBackend{
		path: path,
		loc:  loc,
		log:  log.With("component", "file_backend", "path", path),
		now:  time.Now,
	}
}

// BackupPath names the file a corrupt store at path is moved to.
func BackupPath(path string, t time.Time) string {
	return fmt.Sprintf("%s.backup_%s", path, t.Format(backupLayout))
}

func (f *FileBackend) tmpPath() string {
	return f.path + ".tmp"
}

// Write atomically replaces the file with snap.
func (f *FileBackend) Write(ctx context.Context, snap store.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := f.tmpPath()
	f.removeTmp()

	if err := writeSynced(tmp, data); err != nil {
		f.removeTmp()
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		f.removeTmp()
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	syncDir(filepath.Dir(f.path))
	return nil
}

func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func (f *FileBackend) removeTmp() {
	if err := os.Remove(f.tmpPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.log.Warn("Failed to remove temporary snapshot file", "error", err)
	}
}

// Read loads the snapshot. A missing file yields an empty snapshot. A file
// that cannot be decoded is moved aside to "<path>.backup_YYYYMMDD_HHMMSS"
// and an empty snapshot is returned, so a corrupt file never blocks startup.
func (f *FileBackend) Read(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.log.Info("Message store file does not exist, starting empty")
		return store.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		f.log.Error("Message store file is corrupt", "error", err)
		backup := BackupPath(f.path, f.now())
		if renameErr := os.Rename(f.path, backup); renameErr != nil {
			return nil, fmt.Errorf("failed to move corrupt store aside: %w", renameErr)
		}
		f.log.Info("Corrupt message store saved as backup", "backup", backup)
		return store.Snapshot{}, nil
	}

	for _, chat := range snap {
		for id, rec := range chat {
			rec.Timestamp = rec.Timestamp.In(f.loc)
			chat[id] = rec
		}
	}
	f.log.Info("Loaded message store", "chats", len(snap), "messages", snap.Count())
	return snap, nil
}

func decodeSnapshot(data []byte) (store.Snapshot, error) {
	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap == nil {
		return store.Snapshot{}, nil
	}
	for chatID, chat := range snap {
		for id, rec := range chat {
			if rec.Timestamp.IsZero() {
				return nil, fmt.Errorf("message %d in chat %d has no timestamp", id, chatID)
			}
		}
	}
	return snap, nil
}

// Close is a no-op; the file is closed after every write.
func (f *FileBackend) Close() error {
	return nil
}
