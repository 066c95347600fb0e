package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/fieldservice-scheduler/internal/persistence"
)

// DefaultEstimatedHours is assumed when a ticket carries no usable
// duration estimate.
const DefaultEstimatedHours = 2.0

// JobService orchestrates validation and persistence for service jobs.
type JobService struct {
	jobs        persistence.JobRepository
	idGenerator func() string
	now         func() time.Time
}

// NewJobService wires dependencies for job operations.
func NewJobService(jobs persistence.JobRepository, idGenerator func() string, now func() time.Time) *JobService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &JobService{jobs: jobs, idGenerator: idGenerator, now: now}
}

// CreateJob validates input and persists a new ticket. An assigned
// technician moves the job straight to triaged.
func (s *JobService) CreateJob(ctx context.Context, params CreateJobParams) (persistence.Job, error) {
	if s == nil {
		return persistence.Job{}, fmt.Errorf("JobService is nil")
	}

	normalized := normalizeJobInput(params.Input)
	if vErr := validateJobInput(normalized); vErr.HasErrors() {
		return persistence.Job{}, vErr
	}

	status := persistence.JobStatusUnscheduled
	if normalized.AssignedTo != nil {
		status = persistence.JobStatusTriaged
	}

	now := s.now()
	job := persistence.Job{
		ID:             s.idGenerator(),
		CustomerName:   normalized.CustomerName,
		CustomerEmail:  normalized.CustomerEmail,
		CustomerPhone:  normalized.CustomerPhone,
		Summary:        normalized.Summary,
		EstimatedHours: normalized.EstimatedHours,
		AssignedTo:     normalized.AssignedTo,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if s.jobs == nil {
		return job, nil
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return persistence.Job{}, mapRepoError(err)
	}
	return job, nil
}

// UpdateJob validates input and updates ticket fields. Scheduling status is
// owned by the appointment flow and never changed here.
func (s *JobService) UpdateJob(ctx context.Context, params UpdateJobParams) (persistence.Job, error) {
	if s == nil {
		return persistence.Job{}, fmt.Errorf("JobService is nil")
	}
	if s.jobs == nil {
		return persistence.Job{}, fmt.Errorf("job repository not configured")
	}

	existing, err := s.jobs.GetJob(ctx, params.JobID)
	if err != nil {
		return persistence.Job{}, mapRepoError(err)
	}

	normalized := normalizeJobInput(params.Input)
	if vErr := validateJobInput(normalized); vErr.HasErrors() {
		return persistence.Job{}, vErr
	}

	updated := existing
	updated.CustomerName = normalized.CustomerName
	updated.CustomerEmail = normalized.CustomerEmail
	updated.CustomerPhone = normalized.CustomerPhone
	updated.Summary = normalized.Summary
	updated.EstimatedHours = normalized.EstimatedHours
	updated.AssignedTo = normalized.AssignedTo
	updated.UpdatedAt = s.now()

	// Assigning a technician promotes an unscheduled ticket to triaged;
	// clearing the assignment demotes a triaged ticket back.
	if updated.Status == persistence.JobStatusUnscheduled && updated.AssignedTo != nil {
		updated.Status = persistence.JobStatusTriaged
	}
	if updated.Status == persistence.JobStatusTriaged && updated.AssignedTo == nil {
		updated.Status = persistence.JobStatusUnscheduled
	}

	if err := s.jobs.UpdateJob(ctx, updated); err != nil {
		return persistence.Job{}, mapRepoError(err)
	}
	return updated, nil
}

// GetJob fetches a single ticket.
func (s *JobService) GetJob(ctx context.Context, id string) (persistence.Job, error) {
	if s == nil || s.jobs == nil {
		return persistence.Job{}, fmt.Errorf("job repository not configured")
	}
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return persistence.Job{}, mapRepoError(err)
	}
	return job, nil
}

// ListJobs enumerates all tickets.
func (s *JobService) ListJobs(ctx context.Context) ([]persistence.Job, error) {
	if s == nil || s.jobs == nil {
		return nil, fmt.Errorf("job repository not configured")
	}
	jobs, err := s.jobs.ListJobs(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return jobs, nil
}

// ListBacklog returns jobs with no active appointment, optionally narrowed
// to one technician's assignments.
func (s *JobService) ListBacklog(ctx context.Context, technicianID string) ([]persistence.Job, error) {
	if s == nil || s.jobs == nil {
		return nil, fmt.Errorf("job repository not configured")
	}
	jobs, err := s.jobs.ListUnscheduledJobs(ctx, technicianID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return jobs, nil
}

func normalizeJobInput(input JobInput) JobInput {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerEmail = strings.TrimSpace(strings.ToLower(input.CustomerEmail))
	input.Summary = strings.TrimSpace(input.Summary)
	input.EstimatedHours = strings.TrimSpace(input.EstimatedHours)
	if input.CustomerPhone != nil {
		trimmed := strings.TrimSpace(*input.CustomerPhone)
		if trimmed == "" {
			input.CustomerPhone = nil
		} else {
			input.CustomerPhone = &trimmed
		}
	}
	if input.AssignedTo != nil && strings.TrimSpace(*input.AssignedTo) == "" {
		input.AssignedTo = nil
	}
	return input
}

func validateJobInput(input JobInput) *ValidationError {
	vErr := &ValidationError{}

	if input.CustomerName == "" {
		vErr.add("customer_name", "customer name is required")
	}
	if input.CustomerEmail == "" {
		vErr.add("customer_email", "customer email is required")
	}
	if input.Summary == "" {
		vErr.add("summary", "summary is required")
	}

	return vErr
}

// ParseEstimatedHours interprets ticket duration text leniently. Intake
// produces values like "4", "2.5", "3h" or "3 hours"; anything unusable
// falls back to DefaultEstimatedHours rather than blocking scheduling.
func ParseEstimatedHours(raw string) float64 {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	trimmed = strings.TrimSuffix(trimmed, "hours")
	trimmed = strings.TrimSuffix(trimmed, "hour")
	trimmed = strings.TrimSuffix(trimmed, "hrs")
	trimmed = strings.TrimSuffix(trimmed, "hr")
	trimmed = strings.TrimSuffix(trimmed, "h")
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.ReplaceAll(trimmed, ",", ".")

	hours, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || hours <= 0 {
		return DefaultEstimatedHours
	}
	return hours
}
