package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/fieldservice-scheduler/internal/application"
	"github.com/example/fieldservice-scheduler/internal/persistence"
	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

var (
	technicianCounter  uint64
	jobCounter         uint64
	appointmentCounter uint64
	operatorCounter    uint64
)

var referenceTime = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the canonical scheduling date used by fixtures,
// a Monday so workday arithmetic stays predictable.
func ReferenceDate() timeutil.Date {
	return timeutil.Date{Year: 2025, Month: time.June, Day: 2}
}

// MustClock parses an HH:MM string, panicking on malformed fixture input.
func MustClock(value string) timeutil.Clock {
	clock, err := timeutil.ParseClock(value)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: bad clock %q: %v", value, err))
	}
	return clock
}

// TechnicianOption mutates a generated technician fixture.
type TechnicianOption func(*persistence.Technician)

// WithBusyCalendar points the technician at an external ICS feed.
func WithBusyCalendar(url string) TechnicianOption {
	return func(t *persistence.Technician) {
		t.BusyCalendarURL = &url
	}
}

// InactiveTechnician marks the technician as off-roster.
func InactiveTechnician() TechnicianOption {
	return func(t *persistence.Technician) {
		t.Active = false
	}
}

// NewTechnician produces a deterministic technician record.
func NewTechnician(opts ...TechnicianOption) persistence.Technician {
	n := atomic.AddUint64(&technicianCounter, 1)
	technician := persistence.Technician{
		ID:        fmt.Sprintf("tech-%d", n),
		Email:     fmt.Sprintf("tech%d@example.com", n),
		FullName:  fmt.Sprintf("Technician %d", n),
		Active:    true,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&technician)
	}
	return technician
}

// JobOption mutates a generated job fixture.
type JobOption func(*persistence.Job)

// AssignedTo pre-assigns the job to a technician and marks it triaged.
func AssignedTo(technicianID string) JobOption {
	return func(j *persistence.Job) {
		j.AssignedTo = &technicianID
		j.Status = persistence.JobStatusTriaged
	}
}

// WithEstimatedHours overrides the free-text duration estimate.
func WithEstimatedHours(raw string) JobOption {
	return func(j *persistence.Job) {
		j.EstimatedHours = raw
	}
}

// NewJob produces a deterministic service job record.
func NewJob(opts ...JobOption) persistence.Job {
	n := atomic.AddUint64(&jobCounter, 1)
	job := persistence.Job{
		ID:             fmt.Sprintf("job-%d", n),
		CustomerName:   fmt.Sprintf("Customer %d", n),
		CustomerEmail:  fmt.Sprintf("customer%d@example.com", n),
		Summary:        fmt.Sprintf("Service visit %d", n),
		EstimatedHours: "2",
		Status:         persistence.JobStatusUnscheduled,
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&job)
	}
	return job
}

// AppointmentOption mutates a generated appointment fixture.
type AppointmentOption func(*persistence.Appointment)

// WithStatus overrides the appointment lifecycle state.
func WithStatus(status string) AppointmentOption {
	return func(a *persistence.Appointment) {
		a.Status = status
	}
}

// WithWindow overrides the appointment's date and time range.
func WithWindow(date timeutil.Date, start, end timeutil.Clock) AppointmentOption {
	return func(a *persistence.Appointment) {
		a.Date = date
		a.Start = start
		a.End = end
	}
}

// WithCalendarEvent attaches an upstream event identifier.
func WithCalendarEvent(eventID string) AppointmentOption {
	return func(a *persistence.Appointment) {
		a.CalendarEventID = &eventID
	}
}

// NewAppointment produces a deterministic draft appointment bound to the
// supplied job and technician.
func NewAppointment(jobID, technicianID string, opts ...AppointmentOption) persistence.Appointment {
	n := atomic.AddUint64(&appointmentCounter, 1)
	appointment := persistence.Appointment{
		ID:           fmt.Sprintf("appt-%d", n),
		JobID:        jobID,
		TechnicianID: technicianID,
		Date:         ReferenceDate(),
		Start:        MustClock("09:00"),
		End:          MustClock("11:00"),
		Status:       application.StatusDraft,
		PartNumber:   1,
		PartTotal:    1,
		PartHours:    2,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&appointment)
	}
	return appointment
}

// OperatorOption mutates a generated operator fixture.
type OperatorOption func(*persistence.Operator)

// Manager grants the operator manager privileges.
func Manager() OperatorOption {
	return func(o *persistence.Operator) {
		o.IsManager = true
	}
}

// Disabled locks the operator account.
func Disabled() OperatorOption {
	return func(o *persistence.Operator) {
		o.Disabled = true
	}
}

// NewOperator produces a deterministic operator record. The password hash is
// derived from the supplied plaintext so authentication round-trips work.
func NewOperator(password string, opts ...OperatorOption) persistence.Operator {
	n := atomic.AddUint64(&operatorCounter, 1)
	hash, err := application.CreatePasswordHash(password, application.DefaultArgon2idParams)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: hash password: %v", err))
	}
	operator := persistence.Operator{
		ID:           fmt.Sprintf("op-%d", n),
		Email:        fmt.Sprintf("operator%d@example.com", n),
		DisplayName:  fmt.Sprintf("Operator %d", n),
		PasswordHash: hash,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&operator)
	}
	return operator
}
