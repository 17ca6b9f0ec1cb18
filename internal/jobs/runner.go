package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/semaphore"

	"github.com/Usernoise/chatd/internal/logger"
)

// Scheduler runs fn once after d.
type Scheduler interface {
	After(d time.Duration, name string, fn func()) error
}

// GocronScheduler implements Scheduler with gocron one-time jobs.
type GocronScheduler struct {
	s gocron.Scheduler
}

// NewGocronScheduler wraps a running gocron scheduler.
func NewGocronScheduler(s gocron.Scheduler) *GocronScheduler {
	return &GocronScheduler{s: s}
}

// After registers a one-time job starting d from now. The job is removed
// from the scheduler once it has run.
func (g *GocronScheduler) After(d time.Duration, name string, fn func()) error {
	_, err := g.s.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(d))),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithLimitedRuns(1),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Runner drives a Tracker: it schedules the first poll of every tracked
// job and reschedules until the tracker reports a terminal decision. Polls
// run through a bounded worker pool.
type Runner struct {
	tracker *Tracker
	sched   Scheduler
	sem     *semaphore.Weighted
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner creates a runner allowing at most workers concurrent polls.
func NewRunner(tracker *Tracker, sched Scheduler, workers int, log *slog.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		tracker: tracker,
		sched:   sched,
		sem:     semaphore.NewWeighted(int64(workers)),
		log:     log.With("component", "job_runner"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Track starts tracking e and schedules its first poll after the initial delay.
func (r *Runner) Track(e Entry) error {
	if err := r.tracker.Add(e); err != nil {
		return err
	}
	delay := r.tracker.Delays().Initial
	if err := r.schedule(e.JobID, delay); err != nil {
		r.tracker.mu.Lock()
		r.tracker.removeLocked(e.JobID, StatusUnknown)
		r.tracker.mu.Unlock()
		return err
	}
	r.log.Info("Tracking job", "job_id", e.JobID, "chat_id", e.ChatID, "first_poll_in", delay)
	return nil
}

func (r *Runner) schedule(jobID string, d time.Duration) error {
	return r.sched.After(d, "job_poll_"+jobID, func() { r.poll(jobID) })
}

func (r *Runner) poll(jobID string) {
	if r.ctx.Err() != nil {
		r.log.Debug("Runner stopped, dropping poll", "job_id", jobID)
		return
	}
	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		r.log.Debug("Runner stopped, dropping poll", "job_id", jobID)
		return
	}
	defer r.sem.Release(1)

	d := r.tracker.Poll(r.ctx, jobID)
	if d.Terminal {
		return
	}
	if err := r.schedule(jobID, d.Next); err != nil {
		r.log.Error("Failed to reschedule job poll", "job_id", jobID, "error", err)
	}
}

// Stop cancels in-flight polls and drops queued ones.
func (r *Runner) Stop() {
	r.cancel()
}
