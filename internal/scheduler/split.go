package scheduler

import (
	"fmt"

	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// DailyCapacityHours caps how much of one job fits into a single workday.
const DailyCapacityHours = 8

// ContinuationStart is the fixed start of every segment after the first.
var ContinuationStart = timeutil.NewClock(8, 0)

// SplitRequest describes the job to decompose into per-day segments.
type SplitRequest struct {
	TotalHours float64
	StartDate  timeutil.Date
	StartClock timeutil.Clock
}

// Segment is one per-day slice of a job. Segments are independent
// schedulable units; only the ordinal metadata ties siblings together.
type Segment struct {
	Date    timeutil.Date
	Start   timeutil.Clock
	End     timeutil.Clock
	Hours   float64
	Ordinal int
	Total   int
	Label   string
}

// SplitJob decomposes the requested hours into one segment per workday.
//
// A job that fits within the daily capacity yields exactly one segment at
// the requested time. Longer jobs fill the first day from the requested
// time, then continue at ContinuationStart on successive workdays, skipping
// weekends, until the remainder is consumed. Every segment carries a
// human-readable "Part N of M" label.
func SplitJob(req SplitRequest) ([]Segment, error) {
	totalMinutes := timeutil.HoursToMinutes(req.TotalHours)
	if totalMinutes <= 0 {
		return nil, fmt.Errorf("scheduler: estimated duration must be positive, got %.2f hours", req.TotalHours)
	}

	capacityMinutes := DailyCapacityHours * 60
	total := (totalMinutes + capacityMinutes - 1) / capacityMinutes

	segments := make([]Segment, 0, total)
	remaining := totalMinutes
	date := req.StartDate
	start := req.StartClock

	for ordinal := 1; remaining > 0; ordinal++ {
		length := remaining
		if length > capacityMinutes {
			length = capacityMinutes
		}
		end := start.AddMinutes(length)
		if err := ValidateWindow(start, end); err != nil {
			return nil, fmt.Errorf("scheduler: segment %d does not fit its date: %w", ordinal, err)
		}

		segments = append(segments, Segment{
			Date:    date,
			Start:   start,
			End:     end,
			Hours:   float64(length) / 60,
			Ordinal: ordinal,
			Total:   total,
			Label:   fmt.Sprintf("Part %d of %d", ordinal, total),
		})

		remaining -= length
		date = timeutil.NextWorkday(date)
		start = ContinuationStart
	}

	return segments, nil
}
