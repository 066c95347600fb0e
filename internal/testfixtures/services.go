package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/fieldservice-scheduler/internal/application"
	"github.com/example/fieldservice-scheduler/internal/calendar"
	"github.com/example/fieldservice-scheduler/internal/persistence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// AppointmentServiceDeps captures dependencies for constructing an
// appointment service. Zero id/clock fields fall back to factory defaults.
type AppointmentServiceDeps struct {
	Appointments persistence.AppointmentRepository
	Jobs         persistence.JobRepository
	Technicians  persistence.TechnicianRepository
	Messenger    calendar.Messenger
	BusyFeed     application.BusyFeed
	CallTimeout  time.Duration
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewAppointmentService builds an appointment service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewAppointmentService(deps AppointmentServiceDeps) *application.AppointmentService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAppointmentService(application.AppointmentServiceConfig{
		Appointments: deps.Appointments,
		Jobs:         deps.Jobs,
		Technicians:  deps.Technicians,
		Messenger:    deps.Messenger,
		BusyFeed:     deps.BusyFeed,
		CallTimeout:  deps.CallTimeout,
		IDGenerator:  idGen,
		Now:          now,
		Logger:       deps.Logger,
	})
}

// NewJobService builds a job service with deterministic ids and time.
func (f *ServiceFactory) NewJobService(jobs persistence.JobRepository) *application.JobService {
	return application.NewJobService(jobs, f.IDGenerator.NextFunc(), f.Clock.NowFunc())
}

// NewTechnicianService builds a technician service with deterministic ids
// and time.
func (f *ServiceFactory) NewTechnicianService(technicians persistence.TechnicianRepository) *application.TechnicianService {
	return application.NewTechnicianService(technicians, f.IDGenerator.NextFunc(), f.Clock.NowFunc())
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Operators      persistence.OperatorRepository
	Sessions       persistence.SessionRepository
	Verify         application.PasswordVerifier
	TokenGenerator func() string
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	tokenGen := deps.TokenGenerator
	if tokenGen == nil {
		tokenGen = f.IDGenerator.NextFunc()
	}
	return application.NewAuthService(
		deps.Operators,
		deps.Sessions,
		deps.Verify,
		tokenGen,
		f.Clock.NowFunc(),
		deps.SessionTTL,
		deps.Logger,
	)
}
