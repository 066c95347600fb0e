package ics

import (
	"context"
	"time"

	"github.com/example/fieldservice-scheduler/internal/persistence"
	"github.com/example/fieldservice-scheduler/internal/scheduler"
	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// FeedReader resolves a technician's busy blocks from their ICS
// subscription. Technicians without a configured feed yield no blocks.
type FeedReader struct {
	fetcher *Fetcher
	loc     *time.Location
}

// NewFeedReader creates a FeedReader that interprets feed events in loc.
func NewFeedReader(fetcher *Fetcher, loc *time.Location) *FeedReader {
	if fetcher == nil {
		fetcher = NewFetcher(0)
	}
	if loc == nil {
		loc = time.Local
	}
	return &FeedReader{fetcher: fetcher, loc: loc}
}

// BusyBlocks fetches and projects the technician's feed for one date.
func (r *FeedReader) BusyBlocks(ctx context.Context, technician persistence.Technician, date timeutil.Date) ([]scheduler.BusyBlock, error) {
	if technician.BusyCalendarURL == nil || *technician.BusyCalendarURL == "" {
		return nil, nil
	}

	body, err := r.fetcher.Fetch(ctx, *technician.BusyCalendarURL)
	if err != nil {
		return nil, err
	}
	return BusyBlocks(body, *technician.BusyCalendarURL, date, r.loc)
}
