// Package ics projects a technician's external ICS calendar feed into
// per-date busy blocks for conflict detection. The projection is ephemeral:
// nothing here is persisted.
package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/fieldservice-scheduler/internal/calendar"
	"github.com/example/fieldservice-scheduler/internal/scheduler"
	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// Fetcher retrieves ICS feed bodies over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose requests are bounded by timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads a single ICS feed. Busy feeds are advisory input to
// conflict checking, so callers typically treat a fetch failure as "no
// external blocks" rather than failing the operation.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("ics: feed URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: feed returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// BusyBlocks parses an ICS payload and returns the busy blocks that touch
// the given local date. Events created by this system's own invites are
// excluded, so a committed appointment never collides with itself. Events
// are interpreted in loc; all-day events occupy the whole day.
func BusyBlocks(body []byte, source string, date timeutil.Date, loc *time.Location) ([]scheduler.BusyBlock, error) {
	if len(body) == 0 {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parsing feed: %w", err)
	}

	dayStart := date.Time(loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	blocks := make([]scheduler.BusyBlock, 0)
	for _, event := range cal.Events() {
		subject := ""
		if p := event.GetProperty(ical.ComponentPropertySummary); p != nil {
			subject = p.Value
		}
		if calendar.IsOwnInvite(subject) {
			continue
		}

		if isAllDay(event) {
			if start, err := event.GetAllDayStartAt(); err == nil && sameDate(start, date, loc) {
				blocks = append(blocks, scheduler.BusyBlock{
					Source:  source,
					Subject: subject,
					Start:   timeutil.Clock(0),
					End:     timeutil.Clock(timeutil.MinutesPerDay),
				})
			}
			continue
		}

		start, err := event.GetStartAt()
		if err != nil {
			continue
		}
		end, err := event.GetEndAt()
		if err != nil || !end.After(start) {
			continue
		}

		start = start.In(loc)
		end = end.In(loc)
		if !start.Before(dayEnd) || !end.After(dayStart) {
			continue
		}

		blocks = append(blocks, scheduler.BusyBlock{
			Source:  source,
			Subject: subject,
			Start:   clampToDate(start, dayStart),
			End:     clampEndToDate(end, dayStart, dayEnd),
		})
	}
	return blocks, nil
}

// isAllDay detects VALUE=DATE starts, the usual encoding for all-day
// events; a DTSTART without a time component is treated the same way.
func isAllDay(event *ical.VEvent) bool {
	prop := event.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil {
		return false
	}
	if params := prop.ICalParameters; params != nil {
		if values, ok := params["VALUE"]; ok && len(values) > 0 && strings.EqualFold(values[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(prop.Value, "T")
}

func sameDate(t time.Time, date timeutil.Date, loc *time.Location) bool {
	return timeutil.DateOf(t.In(loc)) == date
}

// clampToDate converts an instant to a clock value on the target date,
// flooring events that began on an earlier day to midnight.
func clampToDate(t, dayStart time.Time) timeutil.Clock {
	if !t.After(dayStart) {
		return timeutil.Clock(0)
	}
	return timeutil.Clock(int(t.Sub(dayStart).Minutes()))
}

func clampEndToDate(t, dayStart, dayEnd time.Time) timeutil.Clock {
	if !t.Before(dayEnd) {
		return timeutil.Clock(timeutil.MinutesPerDay)
	}
	return timeutil.Clock(int(t.Sub(dayStart).Minutes()))
}
