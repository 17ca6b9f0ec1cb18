package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Usernoise/chatd/internal/logger"
	"github.com/Usernoise/chatd/internal/metrics"
)

// Checker fetches the current status of an external job. Errors wrapping
// ErrTransient are retried sooner than other errors.
type Checker interface {
	Status(ctx context.Context, jobID string) (Result, error)
}

// Sink receives the single terminal outcome of a job. Its errors are
// logged, never retried.
type Sink interface {
	Deliver(ctx context.Context, entry Entry, outcome Outcome) error
}

// Delays are the waits between polls.
type Delays struct {
	Initial   time.Duration
	Transient time.Duration
	Pending   time.Duration
	Error     time.Duration
}

// Limits bound how long a job is polled. Zero values disable a limit.
type Limits struct {
	MaxPolls int
	MaxWait  time.Duration
}

// Decision tells the caller what to do after a poll.
type Decision struct {
	Terminal bool
	Next     time.Duration
}

func terminal() Decision { return Decision{Terminal: true} }

func retryIn(d time.Duration) Decision { return Decision{Next: d} }

// Tracker owns the set of active jobs. Removal of an entry and its
// in-flight flag share one lock, so a job is delivered at most once.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry

	checker Checker
	sink    Sink
	delays  Delays
	limits  Limits
	log     *slog.Logger
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker(checker Checker, sink Sink, delays Delays, limits Limits, log *slog.Logger) *Tracker {
	if log == nil {
		log = logger.Discard()
	}
	return &Tracker{
		entries: make(map[string]*Entry),
		checker: checker,
		sink:    sink,
		delays:  delays,
		limits:  limits,
		log:     log.With("component", "job_tracker"),
		now:     time.Now,
	}
}

// Delays returns the configured poll delays.
func (t *Tracker) Delays() Delays {
	return t.delays
}

// Add starts tracking e. A job id can only be tracked once at a time.
func (t *Tracker) Add(e Entry) error {
	if e.JobID == "" {
		return errors.New("job id is empty")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now()
	}
	e.Status = StatusPending
	e.Polls = 0
	e.inFlight = false

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[e.JobID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, e.JobID)
	}
	t.entries[e.JobID] = &e
	metrics.JobsTracked.Set(float64(len(t.entries)))
	return nil
}

// Get returns a copy of the tracked entry.
func (t *Tracker) Get(jobID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[jobID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// removeLocked deletes the entry and returns its final copy.
func (t *Tracker) removeLocked(jobID string, status Status) Entry {
	e := t.entries[jobID]
	delete(t.entries, jobID)
	metrics.JobsTracked.Set(float64(len(t.entries)))
	e.Status = status
	e.inFlight = false
	return *e
}

// Poll checks the job once and decides whether it needs another poll.
// Polling an unknown job or one whose previous poll is still running does
// nothing and reports a terminal decision.
func (t *Tracker) Poll(ctx context.Context, jobID string) Decision {
	log := t.log.With("job_id", jobID)

	t.mu.Lock()
	e, ok := t.entries[jobID]
	if !ok {
		t.mu.Unlock()
		log.DebugContext(ctx, "Poll for untracked job ignored")
		return terminal()
	}
	if e.inFlight {
		t.mu.Unlock()
		log.DebugContext(ctx, "Poll already in flight, skipping")
		return terminal()
	}
	if reason, over := t.overLimit(e); over {
		final := t.removeLocked(jobID, StatusUnknown)
		t.mu.Unlock()
		log.WarnContext(ctx, "Giving up on job", "reason", reason, "polls", final.Polls)
		metrics.JobPolls.WithLabelValues("abandoned").Inc()
		t.deliver(ctx, final, Outcome{Kind: OutcomeAbandoned, Reason: reason})
		return terminal()
	}
	e.inFlight = true
	e.Polls++
	polls := e.Polls
	t.mu.Unlock()

	res, err := t.check(ctx, jobID)

	t.mu.Lock()
	e, ok = t.entries[jobID]
	if !ok {
		t.mu.Unlock()
		return terminal()
	}
	e.inFlight = false

	switch {
	case errors.Is(err, ErrTransient):
		e.Status = StatusUnknown
		t.mu.Unlock()
		log.WarnContext(ctx, "Transient error checking job status", "error", err, "poll", polls)
		metrics.JobPolls.WithLabelValues("transient").Inc()
		return retryIn(t.delays.Transient)

	case err != nil:
		e.Status = StatusUnknown
		t.mu.Unlock()
		log.ErrorContext(ctx, "Error checking job status", "error", err, "poll", polls)
		metrics.JobPolls.WithLabelValues("error").Inc()
		return retryIn(t.delays.Error)

	case res.Kind == KindSuccess:
		final := t.removeLocked(jobID, StatusSucceeded)
		t.mu.Unlock()
		log.InfoContext(ctx, "Job succeeded", "tracks", len(res.Tracks), "poll", polls)
		metrics.JobPolls.WithLabelValues("succeeded").Inc()
		t.deliver(ctx, final, Outcome{Kind: OutcomeSucceeded, Tag: res.Tag, Tracks: res.Tracks})
		return terminal()

	case res.Kind == KindFailure:
		final := t.removeLocked(jobID, StatusFailed)
		t.mu.Unlock()
		log.WarnContext(ctx, "Job failed", "tag", res.Tag, "poll", polls)
		metrics.JobPolls.WithLabelValues("failed").Inc()
		t.deliver(ctx, final, Outcome{Kind: OutcomeFailed, Tag: res.Tag, Reason: res.Reason})
		return terminal()

	default:
		e.Status = StatusPending
		t.mu.Unlock()
		log.DebugContext(ctx, "Job still running", "tag", res.Tag, "poll", polls)
		metrics.JobPolls.WithLabelValues("pending").Inc()
		return retryIn(t.delays.Pending)
	}
}

func (t *Tracker) overLimit(e *Entry) (string, bool) {
	if t.limits.MaxPolls > 0 && e.Polls >= t.limits.MaxPolls {
		return fmt.Sprintf("reached %d polls", e.Polls), true
	}
	if t.limits.MaxWait > 0 && t.now().Sub(e.CreatedAt) > t.limits.MaxWait {
		return fmt.Sprintf("waited longer than %s", t.limits.MaxWait), true
	}
	return "", false
}

// check calls the checker, turning a panic into an ordinary error.
func (t *Tracker) check(ctx context.Context, jobID string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("status check panicked: %v", r)
		}
	}()
	return t.checker.Status(ctx, jobID)
}

func (t *Tracker) deliver(ctx context.Context, e Entry, o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			t.log.ErrorContext(ctx, "Delivery panicked", "job_id", e.JobID, "panic", r)
			metrics.JobDeliveries.WithLabelValues("error").Inc()
		}
	}()

	err := t.sink.Deliver(ctx, e, o)
	metrics.JobDeliveries.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to deliver job outcome",
			"job_id", e.JobID, "chat_id", e.ChatID, "outcome", o.Kind.String(), "error", err)
	}
}
