package models

import (
	"testing"
	"time"
)

func TestDailyStatsWindowCoversTheWholeDay(t *testing.T) {
	start, end := dailyStatsWindow(time.Date(2026, time.August, 25, 14, 30, 0, 0, time.UTC))

	if !start.Equal(day(2026, time.August, 25)) {
		t.Fatalf("window start: %v", start)
	}
	if !end.Equal(day(2026, time.August, 26).Add(-time.Nanosecond)) {
		t.Fatalf("window end: %v", end)
	}

	// an order landing inside the final second still falls in the window
	lastMoment := time.Date(2026, time.August, 25, 23, 59, 59, 500_000_000, time.UTC)
	if lastMoment.Before(start) || lastMoment.After(end) {
		t.Fatalf("sub-second tail excluded: %v outside [%v, %v]", lastMoment, start, end)
	}
	if !end.Before(day(2026, time.August, 26)) {
		t.Fatal("window must not reach into the next day")
	}
}
