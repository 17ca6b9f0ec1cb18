package database

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Usernoise/chatd/internal/store"
)

func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	s := NewSnapshotStore(db, time.FixedZone("MSK", 3*60*60), nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotStore_EmptyRead(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	snap, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("Read() = %v, want empty", snap)
	}
}

func TestSnapshotStore_WriteReplacesContents(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 7, 20, 23, 30, 0, 123, time.UTC)

	first := store.Snapshot{
		1: {1: {Sender: "a", Text: "one", Timestamp: ts}, 2: {Sender: "b", Text: "two", Timestamp: ts.Add(time.Second)}},
		2: {1: {Sender: "c", Text: "other", Timestamp: ts}},
	}
	if err := s.Write(ctx, first); err != nil {
		t.Fatalf("Write(first) error = %v", err)
	}

	second := store.Snapshot{
		1: {2: {Sender: "b", Text: "edited", Timestamp: ts.Add(time.Second)}},
	}
	if err := s.Write(ctx, second); err != nil {
		t.Fatalf("Write(second) error = %v", err)
	}

	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Count() != 1 {
		t.Fatalf("Read() count = %d, want 1: %v", got.Count(), got)
	}
	rec := got[1][2]
	if rec.Text != "edited" || !rec.Timestamp.Equal(ts.Add(time.Second)) {
		t.Errorf("record = %+v", rec)
	}
	if rec.Timestamp.Location().String() != "MSK" {
		t.Errorf("location = %v, want MSK", rec.Timestamp.Location())
	}
}

func TestSnapshotStore_Maintenance(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := s.RunSQLMaintenance(ctx); err != nil {
		t.Errorf("RunSQLMaintenance() error = %v", err)
	}
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if err := ApplyMigrations(s.db.DB); err != nil {
		t.Errorf("second ApplyMigrations() error = %v", err)
	}
}

func TestOpenOrRecover_CorruptFileMovedAside(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "chat.db")
	garbage := bytes.Repeat([]byte("definitely not sqlite "), 200)
	if err := os.WriteFile(path, garbage, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	now := time.Date(2024, 7, 20, 10, 11, 12, 0, time.UTC)
	db, err := OpenOrRecover(path, now, nil)
	if err != nil {
		t.Fatalf("OpenOrRecover() error = %v", err)
	}
	s := NewSnapshotStore(db, time.UTC, nil)
	t.Cleanup(func() { _ = s.Close() })

	snap, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("Read() = %v, want empty", snap)
	}

	data, err := os.ReadFile(path + ".backup_20240720_101112")
	if err != nil {
		t.Fatalf("backup not found: %v", err)
	}
	if !bytes.Equal(data, garbage) {
		t.Error("backup content differs from the corrupt file")
	}
}

func TestOpenOrRecover_HealthyFileKept(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "chat.db")
	ctx := context.Background()
	ts := time.Date(2024, 7, 20, 9, 0, 0, 0, time.UTC)

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	first := NewSnapshotStore(db, time.UTC, nil)
	if err := first.Write(ctx, store.Snapshot{1: {1: {Sender: "a", Text: "kept", Timestamp: ts}}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err = OpenOrRecover(path, time.Now(), nil)
	if err != nil {
		t.Fatalf("OpenOrRecover() error = %v", err)
	}
	s := NewSnapshotStore(db, time.UTC, nil)
	t.Cleanup(func() { _ = s.Close() })

	snap, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := snap[1][1].Text; got != "kept" {
		t.Errorf("Read()[1][1].Text = %q, want kept", got)
	}
	backups, _ := filepath.Glob(path + ".backup_*")
	if len(backups) != 0 {
		t.Errorf("backups = %v, want none", backups)
	}
}
