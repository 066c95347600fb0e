package testfixtures

import (
	"testing"
	"time"
)

func TestClockZeroStartUsesReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected reference time, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start)

	if got := clock.Advance(45 * time.Minute); !got.Equal(start.Add(45 * time.Minute)) {
		t.Fatalf("advance returned %v", got)
	}

	pinned := start.Add(3 * time.Hour)
	clock.Set(pinned)
	if got := clock.Current(); !got.Equal(pinned) {
		t.Fatalf("expected %v after set, got %v", pinned, got)
	}
}

func TestClockNowFuncTracksAdvance(t *testing.T) {
	clock := NewClock(time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC))
	now := clock.NowFunc()

	before := now()
	clock.Advance(24 * time.Hour)
	after := now()

	if !after.Equal(before.Add(24 * time.Hour)) {
		t.Fatalf("expected NowFunc to observe advance, got %v then %v", before, after)
	}
}

func TestNilClockNowFuncFallsBackToRealTime(t *testing.T) {
	var clock *Clock
	now := clock.NowFunc()
	if now().IsZero() {
		t.Fatal("expected wall-clock time from nil clock")
	}
}
