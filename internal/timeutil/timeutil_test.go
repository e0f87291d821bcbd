package timeutil

import (
	"errors"
	"testing"
	"time"
)

func TestNewWindowDays(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2024, time.November, 7, 12, 0, 0, 0, time.UTC)
	win, err := NewWindow("7d", now, loc)
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	if got := win.Period(); got != "7d" {
		t.Fatalf("unexpected period %s", got)
	}
	if !win.End().Equal(now.In(loc)) {
		t.Fatalf("unexpected end %v", win.End())
	}
	if !win.Start().Equal(win.End().Add(-7 * 24 * time.Hour)) {
		t.Fatalf("unexpected start %v", win.Start())
	}
	if win.Timezone() != loc.String() {
		t.Fatalf("unexpected timezone %s", win.Timezone())
	}
	if win.StartString() == "" || win.EndString() == "" {
		t.Fatalf("expected formatted timestamps")
	}
}

func TestNewWindowHours(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)
	win, err := NewWindow("24h", now, time.UTC)
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	if win.Duration() != 24*time.Hour {
		t.Fatalf("unexpected duration %v", win.Duration())
	}
	if !win.Contains(now.Add(-12 * time.Hour)) {
		t.Fatalf("expected timestamp within window")
	}
	if win.Contains(now.Add(-25 * time.Hour)) {
		t.Fatalf("timestamp should be outside window")
	}
}

func TestNewWindowInvalid(t *testing.T) {
	for _, period := range []string{"bad", "", "0d", "-3h", "5m"} {
		if _, err := NewWindow(period, time.Now(), time.UTC); !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("period %q: expected ErrInvalidPeriod, got %v", period, err)
		}
	}
}

func TestTruncateToDay(t *testing.T) {
	ts := time.Date(2024, 3, 15, 18, 45, 12, 0, time.UTC)
	got := TruncateToDay(ts, time.UTC)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
