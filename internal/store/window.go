package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted calendar-date label format.
const DateLayout = "2006-01-02"

// ErrInvalidDateFormat is returned when a window label cannot be parsed.
// It is distinct from a valid window that simply holds no messages.
var ErrInvalidDateFormat = errors.New("invalid date format")

// Window is a named, inclusive time range.
type Window struct {
	Label string
	Start time.Time
	End   time.Time
}

// Today spans from local midnight of now up to now.
func Today(now time.Time, loc *time.Location) Window {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{Label: local.Format(DateLayout), Start: midnight, End: local}
}

// LastHours is the rolling window [now-n hours, now].
func LastHours(now time.Time, n int) Window {
	return Window{
		Label: fmt.Sprintf("last %d hours", n),
		Start: now.Add(-time.Duration(n) * time.Hour),
		End:   now,
	}
}

// LastDays is the rolling window [now-n*24h, now].
func LastDays(now time.Time, n int) Window {
	return Window{
		Label: fmt.Sprintf("last %d days", n),
		Start: now.Add(-time.Duration(n) * 24 * time.Hour),
		End:   now,
	}
}

// Date spans the whole calendar day named by label (YYYY-MM-DD) in loc.
func Date(label string, loc *time.Location) (Window, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(label), loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, label)
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	return Window{Label: day.Format(DateLayout), Start: day, End: end}, nil
}

// ParseWindow resolves a user label into a window relative to now.
// Accepted labels: "day"/"today", "week", "<N>h", "<N>d" and "YYYY-MM-DD".
func ParseWindow(label string, now time.Time, loc *time.Location) (Window, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	switch l {
	case "day", "today":
		return Today(now, loc), nil
	case "week":
		return LastDays(now, 7), nil
	}

	if n, ok := countSuffix(l, "h"); ok {
		return LastHours(now, n), nil
	}
	if n, ok := countSuffix(l, "d"); ok {
		return LastDays(now, n), nil
	}
	return Date(l, loc)
}

func countSuffix(label, suffix string) (int, bool) {
	digits, found := strings.CutSuffix(label, suffix)
	if !found || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
