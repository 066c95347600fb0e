package http

import (
	"context"

	"github.com/example/fieldservice-scheduler/internal/application"
)

type contextKey string

const (
	principalContextKey     contextKey = "principal"
	appointmentIDContextKey contextKey = "appointment_id"
	jobIDContextKey         contextKey = "job_id"
	technicianIDContextKey  contextKey = "technician_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithAppointmentID injects the appointment identifier resolved from the request path.
func ContextWithAppointmentID(ctx context.Context, appointmentID string) context.Context {
	return context.WithValue(ctx, appointmentIDContextKey, appointmentID)
}

// AppointmentIDFromContext extracts an appointment identifier previously associated with the context.
func AppointmentIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(appointmentIDContextKey).(string)
	return id, ok
}

// ContextWithJobID injects the job identifier resolved from the request path.
func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDContextKey, jobID)
}

// JobIDFromContext extracts a job identifier previously associated with the context.
func JobIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(jobIDContextKey).(string)
	return id, ok
}

// ContextWithTechnicianID injects the technician identifier resolved from the request path.
func ContextWithTechnicianID(ctx context.Context, technicianID string) context.Context {
	return context.WithValue(ctx, technicianIDContextKey, technicianID)
}

// TechnicianIDFromContext extracts a technician identifier previously associated with the context.
func TechnicianIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(technicianIDContextKey).(string)
	return id, ok
}
