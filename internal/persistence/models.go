package persistence

import (
	"time"

	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// Technician represents a field technician as read from the roster.
// The roster is owned by an external service; this system only stores the
// projection it needs for scheduling and calendar invites.
type Technician struct {
	ID              string
	Email           string
	FullName        string
	Active          bool
	BusyCalendarURL *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Job lifecycle states. A job moves from unscheduled through triaged
// (assignable) to scheduled once it carries an active appointment.
const (
	JobStatusUnscheduled = "unscheduled"
	JobStatusTriaged     = "triaged"
	JobStatusScheduled   = "scheduled"
)

// Job represents a service ticket awaiting or holding an appointment.
// EstimatedHours is kept as the free text the ticket intake produced;
// parsing and defaulting happen in the application layer.
type Job struct {
	ID             string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  *string
	Summary        string
	EstimatedHours string
	AssignedTo     *string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Appointment represents one schedulable segment on the calendar grid.
type Appointment struct {
	ID              string
	JobID           string
	TechnicianID    string
	Date            timeutil.Date
	Start           timeutil.Clock
	End             timeutil.Clock
	Status          string
	CalendarEventID *string
	DeclinedBy      *string
	SegmentGroup    *string
	PartNumber      int
	PartTotal       int
	PartHours       float64
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ScheduleEntry is an appointment joined with the display fields the
// calendar grid renders alongside it.
type ScheduleEntry struct {
	Appointment
	TechnicianName  string
	TechnicianEmail string
	CustomerName    string
	JobSummary      string
}

// Operator represents a dispatch operator account able to drive the engine.
type Operator struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsManager    bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for an operator.
type Session struct {
	ID         string
	OperatorID string
	Token      string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	RevokedAt  *time.Time
}
