package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/fieldservice-scheduler/internal/persistence"
)

// JobRepository implements persistence.JobRepository using SQLite.
type JobRepository struct {
	pool *ConnectionPool
}

// NewJobRepository creates a new SQLite job repository.
func NewJobRepository(pool *ConnectionPool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, customer_name, customer_email, customer_phone, summary, estimated_hours, assigned_to, status, created_at, updated_at`

// CreateJob inserts a new job row.
func (r *JobRepository) CreateJob(ctx context.Context, job persistence.Job) error {
	if job.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	if job.Status == "" {
		job.Status = persistence.JobStatusUnscheduled
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		job.ID,
		job.CustomerName,
		job.CustomerEmail,
		nullString(job.CustomerPhone),
		job.Summary,
		job.EstimatedHours,
		nullString(job.AssignedTo),
		job.Status,
		job.CreatedAt.Format(time.RFC3339),
		job.UpdatedAt.Format(time.RFC3339),
	)
	return mapError(err)
}

// UpdateJob updates an existing job row.
func (r *JobRepository) UpdateJob(ctx context.Context, job persistence.Job) error {
	if job.ID == "" {
		return persistence.ErrNotFound
	}

	query := `
		UPDATE jobs
		SET customer_name = ?, customer_email = ?, customer_phone = ?, summary = ?,
			estimated_hours = ?, assigned_to = ?, status = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.pool.db.ExecContext(ctx, query,
		job.CustomerName,
		job.CustomerEmail,
		nullString(job.CustomerPhone),
		job.Summary,
		job.EstimatedHours,
		nullString(job.AssignedTo),
		job.Status,
		timestampOrNow(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// UpdateJobStatus changes only the lifecycle status of a job.
func (r *JobRepository) UpdateJobStatus(ctx context.Context, id, status string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (persistence.Job, error) {
	if id == "" {
		return persistence.Job{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobs returns all jobs ordered by creation time.
func (r *JobRepository) ListJobs(ctx context.Context) ([]persistence.Job, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListUnscheduledJobs returns the backlog: jobs that currently hold no
// non-cancelled appointment, optionally narrowed to one technician.
func (r *JobRepository) ListUnscheduledJobs(ctx context.Context, technicianID string) ([]persistence.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs j
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.job_id = j.id AND a.schedule_status != 'cancelled'
		)
	`
	args := []any{}
	if technicianID != "" {
		query += " AND (j.assigned_to = ? OR j.assigned_to IS NULL)"
		args = append(args, technicianID)
	}
	query += " ORDER BY j.created_at ASC, j.id ASC"

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]persistence.Job, error) {
	var jobs []persistence.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return jobs, nil
}

func scanJob(row rowScanner) (persistence.Job, error) {
	var job persistence.Job
	var phone, assignedTo sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&job.ID,
		&job.CustomerName,
		&job.CustomerEmail,
		&phone,
		&job.Summary,
		&job.EstimatedHours,
		&assignedTo,
		&job.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Job{}, mapError(err)
	}

	job.CustomerPhone = fromNullString(phone)
	job.AssignedTo = fromNullString(assignedTo)
	if job.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Job{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Job{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return job, nil
}

// timestampOrNow serializes a caller-supplied timestamp, falling back to the
// wall clock when none was stamped.
func timestampOrNow(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.Format(time.RFC3339)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
