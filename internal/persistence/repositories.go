package persistence

import (
	"context"
	"time"

	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// TechnicianRepository exposes CRUD operations for the technician roster
// projection.
type TechnicianRepository interface {
	CreateTechnician(ctx context.Context, technician Technician) error
	UpdateTechnician(ctx context.Context, technician Technician) error
	GetTechnician(ctx context.Context, id string) (Technician, error)
	ListTechnicians(ctx context.Context, activeOnly bool) ([]Technician, error)
}

// JobRepository exposes CRUD operations for service jobs.
type JobRepository interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, id, status string) error
	GetJob(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	// ListUnscheduledJobs returns the backlog: jobs with no active
	// appointment, optionally narrowed to one technician's assignments.
	ListUnscheduledJobs(ctx context.Context, technicianID string) ([]Job, error)
}

// AppointmentFilter narrows appointment queries.
type AppointmentFilter struct {
	From             *timeutil.Date
	To               *timeutil.Date
	TechnicianID     string
	JobID            string
	ExcludeCancelled bool
}

// AppointmentRepository stores appointment segments.
type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, appointment Appointment) error
	UpdateAppointment(ctx context.Context, appointment Appointment) error
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
	// ListScheduleEntries is the denormalized range query backing the
	// calendar grid and sidebar views.
	ListScheduleEntries(ctx context.Context, filter AppointmentFilter) ([]ScheduleEntry, error)
	DeleteAppointment(ctx context.Context, id string) error
}

// OperatorRepository exposes operator account lookups for authentication.
type OperatorRepository interface {
	CreateOperator(ctx context.Context, operator Operator) error
	GetOperator(ctx context.Context, id string) (Operator, error)
	GetOperatorByEmail(ctx context.Context, email string) (Operator, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
