package jobs

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type scheduled struct {
	delay time.Duration
	name  string
	fn    func()
}

// manualScheduler queues callbacks until the test runs them.
type manualScheduler struct {
	mu    sync.Mutex
	queue []scheduled
	fail  error
}

func (m *manualScheduler) After(d time.Duration, name string, fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.queue = append(m.queue, scheduled{delay: d, name: name, fn: fn})
	return nil
}

// next pops the oldest callback.
func (m *manualScheduler) next(t *testing.T) scheduled {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		t.Fatal("nothing scheduled")
	}
	s := m.queue[0]
	m.queue = m.queue[1:]
	return s
}

func (m *manualScheduler) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func TestRunner_DrivesJobToCompletion(t *testing.T) {
	t.Parallel()

	checker := &scriptedChecker{steps: []step{
		{err: ErrTransient},
		pending(),
		success(),
	}}
	sink := &recordingSink{}
	tr := NewTracker(checker, sink, testDelays, Limits{MaxPolls: 10}, nil)
	sched := &manualScheduler{}
	r := NewRunner(tr, sched, 2, nil)
	defer r.Stop()

	if err := r.Track(Entry{JobID: "abc", ChatID: 5}); err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	wantDelays := []time.Duration{180 * time.Second, 60 * time.Second, 30 * time.Second}
	for i, want := range wantDelays {
		s := sched.next(t)
		if s.delay != want {
			t.Errorf("schedule %d delay = %v, want %v", i, s.delay, want)
		}
		if s.name != "job_poll_abc" {
			t.Errorf("schedule %d name = %q", i, s.name)
		}
		s.fn()
	}

	if n := sched.pending(); n != 0 {
		t.Errorf("%d polls scheduled after terminal state", n)
	}
	if got := sink.deliveries(); len(got) != 1 || got[0].outcome.Kind != OutcomeSucceeded {
		t.Errorf("deliveries = %+v, want one success", got)
	}
}

func TestRunner_TrackDuplicate(t *testing.T) {
	t.Parallel()

	tr := NewTracker(&scriptedChecker{steps: []step{pending()}}, &recordingSink{}, testDelays, Limits{}, nil)
	sched := &manualScheduler{}
	r := NewRunner(tr, sched, 1, nil)
	defer r.Stop()

	if err := r.Track(Entry{JobID: "same"}); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if err := r.Track(Entry{JobID: "same"}); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("second Track() error = %v, want ErrDuplicateJob", err)
	}
	if n := sched.pending(); n != 1 {
		t.Errorf("scheduled polls = %d, want 1", n)
	}
}

func TestRunner_ScheduleFailureUntracks(t *testing.T) {
	t.Parallel()

	tr := NewTracker(&scriptedChecker{steps: []step{pending()}}, &recordingSink{}, testDelays, Limits{}, nil)
	r := NewRunner(tr, &manualScheduler{fail: errors.New("scheduler stopped")}, 1, nil)
	defer r.Stop()

	if err := r.Track(Entry{JobID: "lost"}); err == nil {
		t.Fatal("Track() expected error")
	}
	if tr.Len() != 0 {
		t.Error("entry should not stay tracked without a scheduled poll")
	}
}

func TestRunner_StoppedDropsPolls(t *testing.T) {
	t.Parallel()

	checker := &scriptedChecker{steps: []step{success()}}
	sink := &recordingSink{}
	tr := NewTracker(checker, sink, testDelays, Limits{}, nil)
	sched := &manualScheduler{}
	r := NewRunner(tr, sched, 1, nil)

	if err := r.Track(Entry{JobID: "late"}); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	r.Stop()
	sched.next(t).fn()

	if checker.calls != 0 {
		t.Errorf("checker called %d times after Stop", checker.calls)
	}
}
