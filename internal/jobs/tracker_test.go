package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type step struct {
	res Result
	err error
}

// scriptedChecker replays steps in order and repeats the last one.
type scriptedChecker struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (c *scriptedChecker) Status(context.Context, string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.steps) {
		i = len(c.steps) - 1
	}
	c.calls++
	return c.steps[i].res, c.steps[i].err
}

type delivery struct {
	entry   Entry
	outcome Outcome
}

type recordingSink struct {
	mu   sync.Mutex
	got  []delivery
	fail error
}

func (s *recordingSink) Deliver(_ context.Context, e Entry, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, delivery{entry: e, outcome: o})
	return s.fail
}

func (s *recordingSink) deliveries() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.got...)
}

var testDelays = Delays{Initial: 180 * time.Second, Transient: 60 * time.Second, Pending: 30 * time.Second, Error: 120 * time.Second}

func pending() step { return step{res: Classify("PENDING", nil, "")} }

func success() step {
	return step{res: Classify(TagSuccess, []Track{{Title: "t", AudioURL: "https://a/1.mp3"}}, "")}
}

func newTestTracker(steps ...step) (*Tracker, *scriptedChecker, *recordingSink) {
	c := &scriptedChecker{steps: steps}
	s := &recordingSink{}
	return NewTracker(c, s, testDelays, Limits{MaxPolls: 60, MaxWait: time.Hour}, nil), c, s
}

func TestPoll_PendingThenSuccess(t *testing.T) {
	t.Parallel()

	tr, _, sink := newTestTracker(pending(), pending(), success())
	ctx := context.Background()
	if err := tr.Add(Entry{JobID: "job-1", ChatID: 7}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var decisions []Decision
	for i := 0; i < 5; i++ {
		decisions = append(decisions, tr.Poll(ctx, "job-1"))
	}

	want := []Decision{{Next: 30 * time.Second}, {Next: 30 * time.Second}, {Terminal: true}, {Terminal: true}, {Terminal: true}}
	for i := range want {
		if decisions[i] != want[i] {
			t.Errorf("decision %d = %+v, want %+v", i, decisions[i], want[i])
		}
	}

	got := sink.deliveries()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	if got[0].outcome.Kind != OutcomeSucceeded || len(got[0].outcome.Tracks) != 1 {
		t.Errorf("outcome = %+v", got[0].outcome)
	}
	if got[0].entry.ChatID != 7 || got[0].entry.Status != StatusSucceeded || got[0].entry.Polls != 3 {
		t.Errorf("delivered entry = %+v", got[0].entry)
	}
	if _, ok := tr.Get("job-1"); ok {
		t.Error("entry should be removed after success")
	}
}

func TestPoll_TransientThenSuccess(t *testing.T) {
	t.Parallel()

	tr, _, sink := newTestTracker(step{err: fmt.Errorf("dial: %w", ErrTransient)}, success())
	ctx := context.Background()
	if err := tr.Add(Entry{JobID: "job-2", ChatID: 1}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	d := tr.Poll(ctx, "job-2")
	if d.Terminal || d.Next != 60*time.Second {
		t.Fatalf("first decision = %+v, want retry in 60s", d)
	}
	if n := len(sink.deliveries()); n != 0 {
		t.Fatalf("transient error delivered %d outcomes", n)
	}
	if e, ok := tr.Get("job-2"); !ok || e.Status != StatusUnknown {
		t.Errorf("entry after transient error = %+v, %v", e, ok)
	}

	if d := tr.Poll(ctx, "job-2"); !d.Terminal {
		t.Errorf("second decision = %+v, want terminal", d)
	}
	if n := len(sink.deliveries()); n != 1 {
		t.Errorf("deliveries = %d, want 1", n)
	}
}

func TestPoll_FailureTags(t *testing.T) {
	t.Parallel()

	for _, tag := range []string{TagCreateTaskFailed, TagGenerateAudioFailed, TagCallbackException, TagSensitiveWordError} {
		t.Run(tag, func(t *testing.T) {
			t.Parallel()

			tr, checker, sink := newTestTracker(step{res: Classify(tag, nil, "")})
			ctx := context.Background()
			if err := tr.Add(Entry{JobID: "job", ChatID: 3}); err != nil {
				t.Fatalf("Add() error = %v", err)
			}

			if d := tr.Poll(ctx, "job"); !d.Terminal {
				t.Fatalf("decision = %+v, want terminal", d)
			}
			for i := 0; i < 3; i++ {
				if d := tr.Poll(ctx, "job"); !d.Terminal {
					t.Errorf("follow-up poll %d = %+v, want no-op", i, d)
				}
			}

			got := sink.deliveries()
			if len(got) != 1 {
				t.Fatalf("deliveries = %d, want 1", len(got))
			}
			if got[0].outcome.Kind != OutcomeFailed || got[0].outcome.Tag != tag {
				t.Errorf("outcome = %+v", got[0].outcome)
			}
			if got[0].entry.Status != StatusFailed {
				t.Errorf("entry status = %v, want failed", got[0].entry.Status)
			}
			if checker.calls != 1 {
				t.Errorf("checker calls = %d, want 1", checker.calls)
			}
		})
	}
}

func TestPoll_OtherErrorAndPanic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		checker Checker
	}{
		{name: "plain error", checker: &scriptedChecker{steps: []step{{err: errors.New("decode failed")}}}},
		{name: "panic", checker: panicChecker{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &recordingSink{}
			tr := NewTracker(tt.checker, sink, testDelays, Limits{}, nil)
			if err := tr.Add(Entry{JobID: "j"}); err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			d := tr.Poll(context.Background(), "j")
			if d.Terminal || d.Next != 120*time.Second {
				t.Errorf("decision = %+v, want retry in 120s", d)
			}
			if tr.Len() != 1 {
				t.Error("entry should stay tracked after an error")
			}
			if n := len(sink.deliveries()); n != 0 {
				t.Errorf("deliveries = %d, want 0", n)
			}
		})
	}
}

type panicChecker struct{}

func (panicChecker) Status(context.Context, string) (Result, error) {
	panic("boom")
}

func TestPoll_UnknownJobIsNoop(t *testing.T) {
	t.Parallel()

	tr, checker, sink := newTestTracker(success())
	if d := tr.Poll(context.Background(), "missing"); !d.Terminal {
		t.Errorf("decision = %+v, want terminal", d)
	}
	if checker.calls != 0 || len(sink.deliveries()) != 0 {
		t.Error("unknown job should not be checked or delivered")
	}
}

func TestAdd_Duplicate(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTestTracker(pending())
	if err := tr.Add(Entry{JobID: "dup"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := tr.Add(Entry{JobID: "dup"}); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("second Add() error = %v, want ErrDuplicateJob", err)
	}
	if err := tr.Add(Entry{}); err == nil {
		t.Error("Add() with empty job id should fail")
	}
}

func TestPoll_AbandonAfterLimits(t *testing.T) {
	t.Parallel()

	t.Run("max polls", func(t *testing.T) {
		t.Parallel()
		c := &scriptedChecker{steps: []step{pending()}}
		sink := &recordingSink{}
		tr := NewTracker(c, sink, testDelays, Limits{MaxPolls: 2}, nil)
		_ = tr.Add(Entry{JobID: "slow", ChatID: 9})

		ctx := context.Background()
		tr.Poll(ctx, "slow")
		tr.Poll(ctx, "slow")
		if d := tr.Poll(ctx, "slow"); !d.Terminal {
			t.Fatalf("third poll = %+v, want terminal", d)
		}
		if c.calls != 2 {
			t.Errorf("checker calls = %d, want 2", c.calls)
		}
		got := sink.deliveries()
		if len(got) != 1 || got[0].outcome.Kind != OutcomeAbandoned {
			t.Errorf("deliveries = %+v, want one abandoned outcome", got)
		}
		if tr.Len() != 0 {
			t.Error("abandoned entry should be removed")
		}
	})

	t.Run("max wait", func(t *testing.T) {
		t.Parallel()
		sink := &recordingSink{}
		tr := NewTracker(&scriptedChecker{steps: []step{pending()}}, sink, testDelays, Limits{MaxWait: time.Minute}, nil)
		start := time.Date(2024, 7, 20, 12, 0, 0, 0, time.UTC)
		tr.now = func() time.Time { return start }
		_ = tr.Add(Entry{JobID: "old"})

		tr.now = func() time.Time { return start.Add(2 * time.Minute) }
		if d := tr.Poll(context.Background(), "old"); !d.Terminal {
			t.Fatalf("decision = %+v, want terminal", d)
		}
		if got := sink.deliveries(); len(got) != 1 || got[0].outcome.Kind != OutcomeAbandoned {
			t.Errorf("deliveries = %+v, want one abandoned outcome", got)
		}
	})
}

type blockingChecker struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingChecker) Status(context.Context, string) (Result, error) {
	b.entered <- struct{}{}
	<-b.release
	return Classify(TagSuccess, nil, ""), nil
}

func TestPoll_InFlightIsNoop(t *testing.T) {
	t.Parallel()

	bc := &blockingChecker{entered: make(chan struct{}), release: make(chan struct{})}
	sink := &recordingSink{}
	tr := NewTracker(bc, sink, testDelays, Limits{}, nil)
	_ = tr.Add(Entry{JobID: "busy"})
	ctx := context.Background()

	done := make(chan Decision)
	go func() { done <- tr.Poll(ctx, "busy") }()
	<-bc.entered

	if d := tr.Poll(ctx, "busy"); !d.Terminal {
		t.Errorf("concurrent poll = %+v, want no-op", d)
	}

	close(bc.release)
	if d := <-done; !d.Terminal {
		t.Errorf("first poll = %+v, want terminal", d)
	}
	if n := len(sink.deliveries()); n != 1 {
		t.Errorf("deliveries = %d, want 1", n)
	}
}

func TestPoll_DeliveryErrorStillRemoves(t *testing.T) {
	t.Parallel()

	c := &scriptedChecker{steps: []step{success()}}
	sink := &recordingSink{fail: errors.New("telegram down")}
	tr := NewTracker(c, sink, testDelays, Limits{}, nil)
	_ = tr.Add(Entry{JobID: "x"})

	if d := tr.Poll(context.Background(), "x"); !d.Terminal {
		t.Errorf("decision = %+v, want terminal", d)
	}
	if tr.Len() != 0 {
		t.Error("entry should be gone after a failed delivery")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  string
		want Kind
	}{
		{tag: TagSuccess, want: KindSuccess},
		{tag: TagSensitiveWordError, want: KindFailure},
		{tag: "PENDING", want: KindPending},
		{tag: "TEXT_SUCCESS", want: KindPending},
		{tag: "FIRST_SUCCESS", want: KindPending},
		{tag: "", want: KindPending},
	}
	for _, tt := range tests {
		if got := Classify(tt.tag, nil, ""); got.Kind != tt.want {
			t.Errorf("Classify(%q).Kind = %v, want %v", tt.tag, got.Kind, tt.want)
		}
	}
	if got := Classify(TagCallbackException, nil, ""); got.Reason != TagCallbackException {
		t.Errorf("failure reason = %q, want tag fallback", got.Reason)
	}
}
