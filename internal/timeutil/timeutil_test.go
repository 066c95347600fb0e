package timeutil

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"monday is its own week start", "2025-06-02", "2025-06-02"},
		{"wednesday rolls back to monday", "2025-06-04", "2025-06-02"},
		{"saturday rolls back to monday", "2025-06-07", "2025-06-02"},
		{"sunday belongs to the preceding week", "2025-06-08", "2025-06-02"},
		{"across month boundary", "2025-07-01", "2025-06-30"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseDate(tc.in)
			if err != nil {
				t.Fatalf("ParseDate(%q) failed: %v", tc.in, err)
			}
			got := WeekStart(d)
			if got.String() != tc.want {
				t.Errorf("WeekStart(%s) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestAddWorkdays(t *testing.T) {
	friday, err := ParseDate("2025-06-06")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}

	cases := []struct {
		n    int
		want string
	}{
		{0, "2025-06-06"},
		{1, "2025-06-09"}, // weekend skipped
		{2, "2025-06-10"},
		{5, "2025-06-13"},
		{6, "2025-06-16"}, // second weekend skipped
	}

	for _, tc := range cases {
		got := AddWorkdays(friday, tc.n)
		if got.String() != tc.want {
			t.Errorf("AddWorkdays(friday, %d) = %s, want %s", tc.n, got, tc.want)
		}
	}
}

func TestDateFormattingNearMidnight(t *testing.T) {
	// Formatting must reflect the local calendar date of the instant it was
	// derived from, never a UTC-shifted one.
	loc := time.FixedZone("UTC+9", 9*60*60)
	beforeMidnight := time.Date(2025, time.March, 31, 23, 59, 0, 0, loc)
	afterMidnight := time.Date(2025, time.April, 1, 0, 1, 0, 0, loc)

	if got := DateOf(beforeMidnight).String(); got != "2025-03-31" {
		t.Errorf("DateOf(23:59 local) = %s, want 2025-03-31", got)
	}
	if got := DateOf(afterMidnight).String(); got != "2025-04-01" {
		t.Errorf("DateOf(00:01 local) = %s, want 2025-04-01", got)
	}
}

func TestClockRoundTrip(t *testing.T) {
	cases := []string{"00:00", "08:00", "09:30", "17:45", "23:59", "24:00"}
	for _, value := range cases {
		c, err := ParseClock(value)
		if err != nil {
			t.Fatalf("ParseClock(%q) failed: %v", value, err)
		}
		if got := c.String(); got != value {
			t.Errorf("round trip of %q produced %q", value, got)
		}
	}

	if c, _ := ParseClock("24:00"); c != MinutesPerDay {
		t.Errorf("ParseClock(24:00) = %d, want %d", c, MinutesPerDay)
	}

	if _, err := ParseClock("25:00"); err == nil {
		t.Error("expected ParseClock(25:00) to fail")
	}
	if _, err := ParseClock("24:01"); err == nil {
		t.Error("expected ParseClock(24:01) to fail")
	}
}

func TestClockClampToDay(t *testing.T) {
	if got := NewClock(0, 10).AddMinutes(-30).ClampToDay(); got != 0 {
		t.Errorf("clamped start = %v, want 0", got)
	}
	if got := NewClock(23, 50).AddMinutes(30).ClampToDay(); got != MinutesPerDay {
		t.Errorf("clamped end = %v, want %d", got, MinutesPerDay)
	}
}

func TestHoursToMinutes(t *testing.T) {
	cases := []struct {
		hours float64
		want  int
	}{
		{8, 480},
		{2.5, 150},
		{0.25, 15},
		{1.333, 80},
	}
	for _, tc := range cases {
		if got := HoursToMinutes(tc.hours); got != tc.want {
			t.Errorf("HoursToMinutes(%v) = %d, want %d", tc.hours, got, tc.want)
		}
	}
}

func TestDateOrdering(t *testing.T) {
	earlier, _ := ParseDate("2025-06-06")
	later, _ := ParseDate("2025-06-09")

	if !earlier.Before(later) {
		t.Error("expected earlier.Before(later)")
	}
	if !later.After(earlier) {
		t.Error("expected later.After(earlier)")
	}
	if earlier.Before(earlier) {
		t.Error("a date must not be before itself")
	}
}
