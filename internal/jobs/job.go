// Package jobs tracks long-running external generation jobs until they
// finish. Each tracked job is polled on its own schedule; a poll either
// ends the job with exactly one delivery or asks to be run again later.
package jobs

import (
	"errors"
	"time"
)

var (
	// ErrTransient marks a status check failure worth retrying soon:
	// network errors, timeouts, unexpected HTTP codes.
	ErrTransient = errors.New("transient job status error")

	// ErrDuplicateJob is returned when a job id is already tracked.
	ErrDuplicateJob = errors.New("job already tracked")
)

// Status is the tracker's view of a job.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Provider status tags.
const (
	TagSuccess             = "SUCCESS"
	TagCreateTaskFailed    = "CREATE_TASK_FAILED"
	TagGenerateAudioFailed = "GENERATE_AUDIO_FAILED"
	TagCallbackException   = "CALLBACK_EXCEPTION"
	TagSensitiveWordError  = "SENSITIVE_WORD_ERROR"
)

var failureTags = map[string]bool{
	TagCreateTaskFailed:    true,
	TagGenerateAudioFailed: true,
	TagCallbackException:   true,
	TagSensitiveWordError:  true,
}

// Kind classifies a status check result.
type Kind int

const (
	KindPending Kind = iota
	KindSuccess
	KindFailure
)

// Track is one generated audio track.
type Track struct {
	Title    string
	AudioURL string
	ImageURL string
	Duration float64
}

// Result is a validated status check response.
type Result struct {
	Kind   Kind
	Tag    string
	Tracks []Track
	Reason string
}

// Classify turns a raw provider status tag into a Result. Unknown tags are
// treated as still running.
func Classify(tag string, tracks []Track, reason string) Result {
	switch {
	case tag == TagSuccess:
		return Result{Kind: KindSuccess, Tag: tag, Tracks: tracks}
	case failureTags[tag]:
		if reason == "" {
			reason = tag
		}
		return Result{Kind: KindFailure, Tag: tag, Reason: reason}
	default:
		return Result{Kind: KindPending, Tag: tag}
	}
}

// Entry links an external job to the chat that should receive the result.
type Entry struct {
	JobID     string
	ChatID    int64
	Payload   any
	Status    Status
	CreatedAt time.Time
	Polls     int

	inFlight bool
}

// OutcomeKind is how a job ended.
type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota
	OutcomeFailed
	// OutcomeAbandoned means the tracker gave up waiting.
	OutcomeAbandoned
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "abandoned"
	}
}

// Outcome is delivered exactly once per tracked job.
type Outcome struct {
	Kind   OutcomeKind
	Tag    string
	Tracks []Track
	Reason string
}
