package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/fieldservice-scheduler/internal/persistence"
	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// AppointmentRepository implements persistence.AppointmentRepository using SQLite.
//
// Calendar dates persist as local YYYY-MM-DD text and times of day as
// 24-hour HH:MM text. Both forms sort lexicographically in chronological
// order, so range filters work as plain string comparisons.
type AppointmentRepository struct {
	pool *ConnectionPool
}

// NewAppointmentRepository creates a new SQLite appointment repository.
func NewAppointmentRepository(pool *ConnectionPool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

const appointmentColumns = `id, job_id, technician_id, scheduled_date, scheduled_time_start, scheduled_time_end,
	schedule_status, calendar_event_id, declined_by, segment_group, part_number, part_total, part_hours, notes,
	created_at, updated_at`

// CreateAppointment inserts a new appointment row.
func (r *AppointmentRepository) CreateAppointment(ctx context.Context, appointment persistence.Appointment) error {
	if appointment.ID == "" {
		return persistence.ErrConstraintViolation
	}

	// Callers stamp creation metadata with their injected clock; fill it in
	// only when absent so the returned value matches the stored row.
	now := time.Now().UTC()
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = now
	}
	if appointment.UpdatedAt.IsZero() {
		appointment.UpdatedAt = now
	}

	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.JobID,
		appointment.TechnicianID,
		appointment.Date.String(),
		appointment.Start.String(),
		appointment.End.String(),
		appointment.Status,
		nullString(appointment.CalendarEventID),
		nullString(appointment.DeclinedBy),
		nullString(appointment.SegmentGroup),
		appointment.PartNumber,
		appointment.PartTotal,
		appointment.PartHours,
		appointment.Notes,
		appointment.CreatedAt.Format(time.RFC3339),
		appointment.UpdatedAt.Format(time.RFC3339),
	)
	return mapError(err)
}

// UpdateAppointment updates an existing appointment row. Creation metadata
// is never overwritten.
func (r *AppointmentRepository) UpdateAppointment(ctx context.Context, appointment persistence.Appointment) error {
	if appointment.ID == "" {
		return persistence.ErrNotFound
	}

	query := `
		UPDATE appointments
		SET technician_id = ?, scheduled_date = ?, scheduled_time_start = ?, scheduled_time_end = ?,
			schedule_status = ?, calendar_event_id = ?, declined_by = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.pool.db.ExecContext(ctx, query,
		appointment.TechnicianID,
		appointment.Date.String(),
		appointment.Start.String(),
		appointment.End.String(),
		appointment.Status,
		nullString(appointment.CalendarEventID),
		nullString(appointment.DeclinedBy),
		appointment.Notes,
		timestampOrNow(appointment.UpdatedAt),
		appointment.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetAppointment retrieves an appointment by ID.
func (r *AppointmentRepository) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	if id == "" {
		return persistence.Appointment{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	return scanAppointment(row)
}

// ListAppointments returns appointments matching the filter ordered by
// date then start time.
func (r *AppointmentRepository) ListAppointments(ctx context.Context, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	query, args := buildAppointmentQuery(`SELECT `+appointmentColumns+` FROM appointments`, "", filter)

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var appointments []persistence.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return appointments, nil
}

// ListScheduleEntries returns appointments joined with technician and job
// display fields for the calendar grid.
func (r *AppointmentRepository) ListScheduleEntries(ctx context.Context, filter persistence.AppointmentFilter) ([]persistence.ScheduleEntry, error) {
	base := `
		SELECT a.id, a.job_id, a.technician_id, a.scheduled_date, a.scheduled_time_start, a.scheduled_time_end,
			a.schedule_status, a.calendar_event_id, a.declined_by, a.segment_group, a.part_number, a.part_total,
			a.part_hours, a.notes, a.created_at, a.updated_at,
			t.full_name, t.email, j.customer_name, j.summary
		FROM appointments a
		JOIN technicians t ON t.id = a.technician_id
		JOIN jobs j ON j.id = a.job_id
	`
	query, args := buildAppointmentQuery(base, "a.", filter)

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []persistence.ScheduleEntry
	for rows.Next() {
		var entry persistence.ScheduleEntry
		var eventID, declinedBy, segmentGroup sql.NullString
		var dateStr, startStr, endStr, createdAt, updatedAt string

		err := rows.Scan(
			&entry.ID, &entry.JobID, &entry.TechnicianID,
			&dateStr, &startStr, &endStr,
			&entry.Status, &eventID, &declinedBy, &segmentGroup,
			&entry.PartNumber, &entry.PartTotal, &entry.PartHours, &entry.Notes,
			&createdAt, &updatedAt,
			&entry.TechnicianName, &entry.TechnicianEmail, &entry.CustomerName, &entry.JobSummary,
		)
		if err != nil {
			return nil, mapError(err)
		}

		if err := fillAppointmentTimes(&entry.Appointment, dateStr, startStr, endStr, createdAt, updatedAt); err != nil {
			return nil, err
		}
		entry.CalendarEventID = fromNullString(eventID)
		entry.DeclinedBy = fromNullString(declinedBy)
		entry.SegmentGroup = fromNullString(segmentGroup)

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// DeleteAppointment removes an appointment row by ID.
func (r *AppointmentRepository) DeleteAppointment(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

func buildAppointmentQuery(base, prefix string, filter persistence.AppointmentFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.From != nil {
		conditions = append(conditions, prefix+"scheduled_date >= ?")
		args = append(args, filter.From.String())
	}
	if filter.To != nil {
		conditions = append(conditions, prefix+"scheduled_date <= ?")
		args = append(args, filter.To.String())
	}
	if filter.TechnicianID != "" {
		conditions = append(conditions, prefix+"technician_id = ?")
		args = append(args, filter.TechnicianID)
	}
	if filter.JobID != "" {
		conditions = append(conditions, prefix+"job_id = ?")
		args = append(args, filter.JobID)
	}
	if filter.ExcludeCancelled {
		conditions = append(conditions, prefix+"schedule_status != 'cancelled'")
	}

	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %sscheduled_date ASC, %sscheduled_time_start ASC, %sid ASC", prefix, prefix, prefix)
	return query, args
}

func scanAppointment(row rowScanner) (persistence.Appointment, error) {
	var appointment persistence.Appointment
	var eventID, declinedBy, segmentGroup sql.NullString
	var dateStr, startStr, endStr, createdAt, updatedAt string

	err := row.Scan(
		&appointment.ID,
		&appointment.JobID,
		&appointment.TechnicianID,
		&dateStr,
		&startStr,
		&endStr,
		&appointment.Status,
		&eventID,
		&declinedBy,
		&segmentGroup,
		&appointment.PartNumber,
		&appointment.PartTotal,
		&appointment.PartHours,
		&appointment.Notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Appointment{}, mapError(err)
	}

	if err := fillAppointmentTimes(&appointment, dateStr, startStr, endStr, createdAt, updatedAt); err != nil {
		return persistence.Appointment{}, err
	}
	appointment.CalendarEventID = fromNullString(eventID)
	appointment.DeclinedBy = fromNullString(declinedBy)
	appointment.SegmentGroup = fromNullString(segmentGroup)
	return appointment, nil
}

func fillAppointmentTimes(appointment *persistence.Appointment, dateStr, startStr, endStr, createdAt, updatedAt string) error {
	var err error
	if appointment.Date, err = timeutil.ParseDate(dateStr); err != nil {
		return fmt.Errorf("failed to parse scheduled_date: %w", err)
	}
	if appointment.Start, err = timeutil.ParseClock(startStr); err != nil {
		return fmt.Errorf("failed to parse scheduled_time_start: %w", err)
	}
	if appointment.End, err = timeutil.ParseClock(endStr); err != nil {
		return fmt.Errorf("failed to parse scheduled_time_end: %w", err)
	}
	if appointment.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return fmt.Errorf("failed to parse created_at: %w", err)
	}
	if appointment.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return nil
}
