// Package timeutil normalizes the rolling report windows ("7d", "24h") used
// by the usage endpoints.
package timeutil

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid period")

// Window is a rolling [start, end) range anchored to a location.
type Window struct {
	period string
	start  time.Time
	end    time.Time
	loc    *time.Location
}

// EnsureLocation returns UTC when loc is nil.
func EnsureLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// NewWindow constructs a rolling window ending at now for the requested
// period, e.g. "7d" or "24h".
func NewWindow(period string, now time.Time, loc *time.Location) (Window, error) {
	loc = EnsureLocation(loc)
	dur, normalized, err := parsePeriod(period)
	if err != nil {
		return Window{}, err
	}
	end := now.In(loc)
	return Window{period: normalized, start: end.Add(-dur), end: end, loc: loc}, nil
}

// Period returns the normalized period string.
func (w Window) Period() string { return w.period }

// Start returns the inclusive start of the window.
func (w Window) Start() time.Time { return w.start }

// End returns the exclusive end of the window.
func (w Window) End() time.Time { return w.end }

// Location returns the reporting timezone for the window.
func (w Window) Location() *time.Location { return EnsureLocation(w.loc) }

// Timezone returns the location name for JSON responses.
func (w Window) Timezone() string { return w.Location().String() }

// StartString returns the start formatted as RFC3339 in the window's zone.
func (w Window) StartString() string { return w.start.In(w.Location()).Format(time.RFC3339) }

// EndString returns the end formatted as RFC3339 in the window's zone.
func (w Window) EndString() string { return w.end.In(w.Location()).Format(time.RFC3339) }

// Duration returns the window length.
func (w Window) Duration() time.Duration { return w.end.Sub(w.start) }

// Contains reports whether the timestamp falls within [start, end).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.start) && ts.Before(w.end)
}

// TruncateToDay normalizes the timestamp to midnight in the provided zone.
func TruncateToDay(t time.Time, loc *time.Location) time.Time {
	loc = EnsureLocation(loc)
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// parsePeriod accepts <n>d and <n>h with n > 0.
func parsePeriod(period string) (time.Duration, string, error) {
	p := strings.ToLower(strings.TrimSpace(period))

	var unit time.Duration
	switch {
	case strings.HasSuffix(p, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(p, "h"):
		unit = time.Hour
	default:
		return 0, "", ErrInvalidPeriod
	}

	n, err := strconv.Atoi(p[:len(p)-1])
	if err != nil || n <= 0 {
		return 0, "", ErrInvalidPeriod
	}
	return time.Duration(n) * unit, p, nil
}
