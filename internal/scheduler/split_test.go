package scheduler

import (
	"testing"

	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

func TestSplitJob_SingleDay(t *testing.T) {
	start := clock(10, 30)
	segments, err := SplitJob(SplitRequest{
		TotalHours: 6,
		StartDate:  mustDate(t, "2025-06-04"),
		StartClock: start,
	})
	if err != nil {
		t.Fatalf("SplitJob failed: %v", err)
	}

	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Start != start {
		t.Errorf("start moved: got %s, want %s", seg.Start, start)
	}
	if seg.End != clock(16, 30) {
		t.Errorf("end = %s, want 16:30", seg.End)
	}
	if seg.Ordinal != 1 || seg.Total != 1 || seg.Label != "Part 1 of 1" {
		t.Errorf("unexpected metadata: %+v", seg)
	}
}

func TestSplitJob_SeventeenHoursFromFriday(t *testing.T) {
	segments, err := SplitJob(SplitRequest{
		TotalHours: 17,
		StartDate:  mustDate(t, "2025-06-06"), // Friday
		StartClock: clock(9, 0),
	})
	if err != nil {
		t.Fatalf("SplitJob failed: %v", err)
	}

	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}

	want := []struct {
		date  string
		start timeutil.Clock
		end   timeutil.Clock
		hours float64
		label string
	}{
		{"2025-06-06", clock(9, 0), clock(17, 0), 8, "Part 1 of 3"},
		{"2025-06-09", clock(8, 0), clock(16, 0), 8, "Part 2 of 3"}, // Monday, weekend skipped
		{"2025-06-10", clock(8, 0), clock(9, 0), 1, "Part 3 of 3"},
	}

	for i, w := range want {
		seg := segments[i]
		if seg.Date.String() != w.date {
			t.Errorf("segment %d date = %s, want %s", i+1, seg.Date, w.date)
		}
		if seg.Start != w.start || seg.End != w.end {
			t.Errorf("segment %d window = %s-%s, want %s-%s", i+1, seg.Start, seg.End, w.start, w.end)
		}
		if seg.Hours != w.hours {
			t.Errorf("segment %d hours = %v, want %v", i+1, seg.Hours, w.hours)
		}
		if seg.Label != w.label {
			t.Errorf("segment %d label = %q, want %q", i+1, seg.Label, w.label)
		}
	}
}

func TestSplitJob_FractionalHours(t *testing.T) {
	segments, err := SplitJob(SplitRequest{
		TotalHours: 9.5,
		StartDate:  mustDate(t, "2025-06-04"), // Wednesday
		StartClock: clock(8, 0),
	})
	if err != nil {
		t.Fatalf("SplitJob failed: %v", err)
	}

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[1].End != clock(9, 30) {
		t.Errorf("remainder end = %s, want 09:30", segments[1].End)
	}
	if segments[1].Hours != 1.5 {
		t.Errorf("remainder hours = %v, want 1.5", segments[1].Hours)
	}
}

func TestSplitJob_RejectsNonPositiveHours(t *testing.T) {
	for _, hours := range []float64{0, -2} {
		if _, err := SplitJob(SplitRequest{
			TotalHours: hours,
			StartDate:  mustDate(t, "2025-06-04"),
			StartClock: clock(9, 0),
		}); err == nil {
			t.Errorf("expected error for %v hours", hours)
		}
	}
}

func TestSplitJob_FirstSegmentMustFitItsDate(t *testing.T) {
	_, err := SplitJob(SplitRequest{
		TotalHours: 10,
		StartDate:  mustDate(t, "2025-06-04"),
		StartClock: clock(20, 0), // 8h from 20:00 crosses midnight
	})
	if err == nil {
		t.Fatal("expected midnight-crossing first segment to be rejected")
	}
}
