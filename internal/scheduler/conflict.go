// Package scheduler holds the pure scheduling rules of the engine: buffer
// aware conflict detection and multi-day job splitting. It has no knowledge
// of persistence or calendars; callers project their state into the types
// defined here.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// BufferMinutes is the mandatory idle margin required on both sides of every
// appointment.
const BufferMinutes = 30

// StatusCancelled marks appointments that never participate in conflict
// detection.
const StatusCancelled = "cancelled"

// Appointment is the projection of a stored appointment used for conflict
// testing.
type Appointment struct {
	ID           string
	TechnicianID string
	Date         timeutil.Date
	Start        timeutil.Clock
	End          timeutil.Clock
	Status       string
}

// BusyBlock is an externally-sourced calendar occupancy record for a single
// technician and date. Blocks are already filtered to exclude this system's
// own invites before they reach the detector.
type BusyBlock struct {
	Source  string
	Subject string
	Start   timeutil.Clock
	End     timeutil.Clock
}

// Proposal describes a candidate time slot to test for conflicts.
type Proposal struct {
	TechnicianID string
	Date         timeutil.Date
	Start        timeutil.Clock
	End          timeutil.Clock
	// ExcludeID names an appointment to skip, used when an existing
	// appointment is being moved and must not conflict with itself.
	ExcludeID string
}

// ConflictKind distinguishes the colliding entity.
type ConflictKind string

const (
	// ConflictKindAppointment indicates collision with another stored
	// appointment of the same technician.
	ConflictKindAppointment ConflictKind = "appointment"
	// ConflictKindBusyBlock indicates collision with an external calendar
	// entry.
	ConflictKindBusyBlock ConflictKind = "busy_block"
)

// Conflict names one colliding entity and its time range.
type Conflict struct {
	Kind          ConflictKind
	AppointmentID string
	Description   string
	Start         timeutil.Clock
	End           timeutil.Clock
}

// ValidateWindow reports whether a proposed time range is usable: it must
// have positive length and must not cross local midnight. Multi-day work is
// segmented upstream, never expressed as a single spanning window.
func ValidateWindow(start, end timeutil.Clock) error {
	if !start.Valid() || !end.Valid() {
		return fmt.Errorf("scheduler: time of day out of range")
	}
	if end <= start {
		return fmt.Errorf("scheduler: end %s must be after start %s", end, start)
	}
	return nil
}

// DetectConflicts returns every buffer violation of the proposal against the
// supplied internal appointments and external busy blocks, ordered by the
// colliding range's start. An empty result means the slot is free.
//
// Internal appointments are tested buffer-against-buffer: both the proposal
// and the existing appointment are extended by BufferMinutes, so two jobs
// need a full hour between them. External blocks are tested against the
// proposal's buffer only; the external side is taken as-is.
func DetectConflicts(existing []Appointment, busy []BusyBlock, proposal Proposal) []Conflict {
	propStart, propEnd := buffered(proposal.Start, proposal.End)

	var conflicts []Conflict

	for _, appt := range existing {
		if appt.ID == proposal.ExcludeID {
			continue
		}
		if appt.Status == StatusCancelled {
			continue
		}
		if appt.TechnicianID != proposal.TechnicianID || appt.Date != proposal.Date {
			continue
		}
		otherStart, otherEnd := buffered(appt.Start, appt.End)
		if overlaps(propStart, propEnd, otherStart, otherEnd) {
			conflicts = append(conflicts, Conflict{
				Kind:          ConflictKindAppointment,
				AppointmentID: appt.ID,
				Start:         appt.Start,
				End:           appt.End,
			})
		}
	}

	for _, block := range busy {
		if overlaps(propStart, propEnd, block.Start, block.End) {
			conflicts = append(conflicts, Conflict{
				Kind:        ConflictKindBusyBlock,
				Description: busyDescription(block),
				Start:       block.Start,
				End:         block.End,
			})
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Start == conflicts[j].Start {
			return conflicts[i].End < conflicts[j].End
		}
		return conflicts[i].Start < conflicts[j].Start
	})

	return conflicts
}

func buffered(start, end timeutil.Clock) (timeutil.Clock, timeutil.Clock) {
	return start.AddMinutes(-BufferMinutes).ClampToDay(), end.AddMinutes(BufferMinutes).ClampToDay()
}

// overlaps applies the half-open interval test: a.start < b.end && b.start < a.end.
func overlaps(aStart, aEnd, bStart, bEnd timeutil.Clock) bool {
	return aStart < bEnd && bStart < aEnd
}

func busyDescription(block BusyBlock) string {
	if block.Subject == "" {
		return block.Source
	}
	if block.Source == "" {
		return block.Subject
	}
	return block.Source + ": " + block.Subject
}
