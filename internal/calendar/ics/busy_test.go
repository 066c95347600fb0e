package ics

import (
	"testing"
	"time"

	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

const sampleFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:dentist@example.com
SUMMARY:Dentist
DTSTART:20250604T100000Z
DTEND:20250604T110000Z
END:VEVENT
BEGIN:VEVENT
UID:own-invite@example.com
SUMMARY:[PENDING] Service: UPS battery swap
DTSTART:20250604T130000Z
DTEND:20250604T150000Z
END:VEVENT
BEGIN:VEVENT
UID:otherday@example.com
SUMMARY:Offsite
DTSTART:20250610T090000Z
DTEND:20250610T170000Z
END:VEVENT
BEGIN:VEVENT
UID:training@example.com
SUMMARY:Training day
DTSTART;VALUE=DATE:20250604
DTEND;VALUE=DATE:20250605
END:VEVENT
END:VCALENDAR
`

func mustDate(t *testing.T, value string) timeutil.Date {
	t.Helper()
	d, err := timeutil.ParseDate(value)
	if err != nil {
		t.Fatalf("ParseDate(%q) failed: %v", value, err)
	}
	return d
}

func TestBusyBlocks_ProjectsSingleDate(t *testing.T) {
	blocks, err := BusyBlocks([]byte(sampleFeed), "external", mustDate(t, "2025-06-04"), time.UTC)
	if err != nil {
		t.Fatalf("BusyBlocks failed: %v", err)
	}

	if len(blocks) != 2 {
		t.Fatalf("Expected 2 blocks (timed event + all-day), got %d: %+v", len(blocks), blocks)
	}

	var foundDentist, foundAllDay bool
	for _, block := range blocks {
		switch block.Subject {
		case "Dentist":
			foundDentist = true
			if block.Start.String() != "10:00" || block.End.String() != "11:00" {
				t.Errorf("Expected Dentist 10:00-11:00, got %s-%s", block.Start, block.End)
			}
		case "Training day":
			foundAllDay = true
			if block.Start != 0 || block.End != timeutil.MinutesPerDay {
				t.Errorf("Expected all-day event to span the whole day, got %s-%s", block.Start, block.End)
			}
		}
	}
	if !foundDentist {
		t.Error("Expected the timed external event to be projected")
	}
	if !foundAllDay {
		t.Error("Expected the all-day event to be projected")
	}
}

func TestBusyBlocks_ExcludesOwnInvites(t *testing.T) {
	blocks, err := BusyBlocks([]byte(sampleFeed), "external", mustDate(t, "2025-06-04"), time.UTC)
	if err != nil {
		t.Fatalf("BusyBlocks failed: %v", err)
	}
	for _, block := range blocks {
		if block.Subject == "[PENDING] Service: UPS battery swap" {
			t.Error("Self-generated invite must be excluded from busy blocks")
		}
	}
}

func TestBusyBlocks_ClampsMultiDayEvent(t *testing.T) {
	feed := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:overnight@example.com
SUMMARY:Overnight maintenance window
DTSTART:20250603T220000Z
DTEND:20250604T060000Z
END:VEVENT
END:VCALENDAR
`
	blocks, err := BusyBlocks([]byte(feed), "external", mustDate(t, "2025-06-04"), time.UTC)
	if err != nil {
		t.Fatalf("BusyBlocks failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("Expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Start != 0 || blocks[0].End.String() != "06:00" {
		t.Errorf("Expected event clamped to 00:00-06:00, got %s-%s", blocks[0].Start, blocks[0].End)
	}
}

func TestBusyBlocks_EmptyBody(t *testing.T) {
	blocks, err := BusyBlocks(nil, "external", mustDate(t, "2025-06-04"), time.UTC)
	if err != nil {
		t.Fatalf("Expected empty body to be treated as no blocks, got %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("Expected no blocks, got %d", len(blocks))
	}
}
