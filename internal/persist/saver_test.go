package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Usernoise/chatd/internal/store"
)

type fakeBackend struct {
	mu     sync.Mutex
	writes []store.Snapshot
	fail   error
	read   store.Snapshot
}

func (f *fakeBackend) Write(_ context.Context, snap store.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.writes = append(f.writes, snap)
	return nil
}

func (f *fakeBackend) Read(context.Context) (store.Snapshot, error) {
	return f.read, nil
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func appendN(st *store.Store, n int) {
	base := time.Date(2024, 7, 20, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		st.Append(store.Message{ChatID: 1, MessageID: i + 1, Sender: "s", Text: "t", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
}

func TestSaver_BatchThreshold(t *testing.T) {
	t.Parallel()

	st := store.New(time.UTC)
	fb := &fakeBackend{}
	s := NewSaver(st, fb, 10, nil)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		if s.Save(ctx, false) {
			t.Fatalf("Save #%d wrote before the threshold", i+1)
		}
	}
	if got := fb.count(); got != 0 {
		t.Fatalf("writes after 9 saves = %d, want 0", got)
	}

	if !s.Save(ctx, false) {
		t.Fatal("10th Save should write")
	}
	if got := fb.count(); got != 1 {
		t.Fatalf("writes after 10 saves = %d, want 1", got)
	}

	// The counter restarts after a write.
	s.Save(ctx, false)
	if got := fb.count(); got != 1 {
		t.Errorf("writes after 11 saves = %d, want 1", got)
	}
}

func TestSaver_ForceAlwaysWrites(t *testing.T) {
	t.Parallel()

	st := store.New(time.UTC)
	fb := &fakeBackend{}
	s := NewSaver(st, fb, 10, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !s.Save(ctx, true) {
			t.Fatalf("forced Save #%d did not write", i+1)
		}
	}
	if got := fb.count(); got != 3 {
		t.Errorf("writes = %d, want 3", got)
	}
}

func TestSaver_FailureIsSwallowed(t *testing.T) {
	t.Parallel()

	st := store.New(time.UTC)
	appendN(st, 2)
	fb := &fakeBackend{fail: errors.New("disk full")}
	s := NewSaver(st, fb, 1, nil)
	ctx := context.Background()

	if !s.Save(ctx, false) {
		t.Fatal("Save should attempt a write")
	}
	if got := len(st.QueryWindow(1, time.Time{}, time.Now())); got != 2 {
		t.Errorf("store lost messages after failed write: %d", got)
	}

	// The failed write did not count as saved, so Flush retries it.
	fb.mu.Lock()
	fb.fail = nil
	fb.mu.Unlock()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := fb.count(); got != 1 {
		t.Errorf("writes after Flush = %d, want 1", got)
	}
}

func TestSaver_FlushOnlyWhenDirty(t *testing.T) {
	t.Parallel()

	st := store.New(time.UTC)
	fb := &fakeBackend{}
	s := NewSaver(st, fb, 10, nil)
	ctx := context.Background()

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := fb.count(); got != 0 {
		t.Fatalf("clean Flush wrote %d snapshots", got)
	}

	appendN(st, 1)
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := fb.count(); got != 1 {
		t.Errorf("writes = %d, want 1", got)
	}
}

func TestSaver_LoadRestoresStore(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 7, 20, 10, 0, 0, 0, time.UTC)
	fb := &fakeBackend{read: store.Snapshot{5: {9: {Sender: "a", Text: "restored", Timestamp: ts}}}}
	st := store.New(time.UTC)
	s := NewSaver(st, fb, 10, nil)
	ctx := context.Background()

	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := st.QueryWindow(5, ts, ts); len(got) != 1 || got[0] != "a: restored" {
		t.Errorf("QueryWindow() = %v", got)
	}

	// A freshly loaded store is clean.
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := fb.count(); got != 0 {
		t.Errorf("Flush after Load wrote %d snapshots", got)
	}
}

func TestSaver_ConcurrentSaves(t *testing.T) {
	t.Parallel()

	st := store.New(time.UTC)
	fb := &fakeBackend{}
	s := NewSaver(st, fb, 5, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.Append(store.Message{ChatID: 1, MessageID: i, Sender: "s", Text: "t", Timestamp: time.Now()})
			s.Save(ctx, false)
		}(i)
	}
	wg.Wait()

	if got := fb.count(); got != 10 {
		t.Errorf("writes = %d, want 10", got)
	}
}

func TestFileRoundTripThroughSaver(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/store.json"
	loc := time.FixedZone("MSK", 3*60*60)
	ctx := context.Background()

	st := store.New(loc)
	appendN(st, 3)
	s := NewSaver(st, NewFileBackend(path, loc, nil), 10, nil)
	s.Save(ctx, true)

	restored := store.New(loc)
	if err := NewSaver(restored, NewFileBackend(path, loc, nil), 10, nil).Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want, _ := st.Snapshot()
	got, _ := restored.Snapshot()
	for id, rec := range want[1] {
		g := got[1][id]
		if g.Text != rec.Text || !g.Timestamp.Equal(rec.Timestamp) {
			t.Errorf("record %d = %+v, want %+v", id, g, rec)
		}
	}
}
