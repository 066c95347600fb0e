package application

import (
	"github.com/example/fieldservice-scheduler/internal/calendar"
	"github.com/example/fieldservice-scheduler/internal/persistence"
	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// Principal represents the authenticated operator invoking a service method.
type Principal struct {
	OperatorID string
	IsManager  bool
}

// Appointment lifecycle states in handshake order. Cancelled is reachable
// from any non-terminal state. A decline does not introduce a separate
// state: the appointment returns to draft with DeclinedBy set, since the
// slot still has to be filled.
const (
	StatusDraft           = "draft"
	StatusPendingTech     = "pending_tech"
	StatusTechAccepted    = "tech_accepted"
	StatusPendingCustomer = "pending_customer"
	StatusConfirmed       = "confirmed"
	StatusCancelled       = "cancelled"
)

// isActiveStatus reports whether an appointment still occupies its slot.
func isActiveStatus(status string) bool {
	return status != StatusCancelled && status != ""
}

// TechnicianInput captures caller provided technician fields.
type TechnicianInput struct {
	Email           string
	FullName        string
	Active          bool
	BusyCalendarURL *string
}

// CreateTechnicianParams wraps the data required to create a technician.
type CreateTechnicianParams struct {
	Principal Principal
	Input     TechnicianInput
}

// UpdateTechnicianParams wraps the data required to update a technician.
type UpdateTechnicianParams struct {
	Principal    Principal
	TechnicianID string
	Input        TechnicianInput
}

// JobInput captures caller provided service job fields.
type JobInput struct {
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  *string
	Summary        string
	EstimatedHours string
	AssignedTo     *string
}

// CreateJobParams wraps the data required to create a job.
type CreateJobParams struct {
	Principal Principal
	Input     JobInput
}

// UpdateJobParams wraps the data required to update a job.
type UpdateJobParams struct {
	Principal Principal
	JobID     string
	Input     JobInput
}

// ScheduleJobParams wraps the data required to place a job on the calendar.
// The splitter decides whether one or several segments result.
type ScheduleJobParams struct {
	Principal        Principal
	JobID            string
	TechnicianID     string
	Date             timeutil.Date
	Start            timeutil.Clock
	Notes            string
	OverrideConflict bool
}

// MoveAppointmentParams wraps the data required to reschedule a draft.
type MoveAppointmentParams struct {
	Principal        Principal
	AppointmentID    string
	Date             timeutil.Date
	Start            timeutil.Clock
	End              timeutil.Clock
	OverrideConflict bool
}

// CheckConflictsParams wraps the data for a standalone conflict probe.
type CheckConflictsParams struct {
	TechnicianID         string
	Date                 timeutil.Date
	Start                timeutil.Clock
	End                  timeutil.Clock
	ExcludeAppointmentID string
}

// ListScheduleParams narrows a schedule range query.
type ListScheduleParams struct {
	From             *timeutil.Date
	To               *timeutil.Date
	TechnicianID     string
	IncludeCancelled bool
}

// Warning reports a non-fatal condition that accompanied an otherwise
// successful operation, such as a best-effort cancellation that failed.
type Warning struct {
	Code    string
	Message string
}

// InboundResponse is one accept/decline signal as consumed by the bridge.
type InboundResponse = calendar.Response

// ApplyResponsesResult summarizes one inbound batch. Changed lists the
// appointment ids whose state advanced, so consumers know what to re-fetch.
type ApplyResponsesResult struct {
	Changed  []string
	Warnings []Warning
}

// AuthenticateParams captures the data required to authenticate an operator.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	Operator persistence.Operator
	Session  persistence.Session
}
