package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/fieldservice-scheduler/internal/persistence"
)

// TechnicianRepository implements persistence.TechnicianRepository using SQLite.
type TechnicianRepository struct {
	pool *ConnectionPool
}

// NewTechnicianRepository creates a new SQLite technician repository.
func NewTechnicianRepository(pool *ConnectionPool) *TechnicianRepository {
	return &TechnicianRepository{pool: pool}
}

// CreateTechnician inserts a new technician row.
func (r *TechnicianRepository) CreateTechnician(ctx context.Context, technician persistence.Technician) error {
	if technician.ID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO technicians (id, email, full_name, active, busy_calendar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.pool.db.ExecContext(ctx, query,
		technician.ID,
		technician.Email,
		technician.FullName,
		boolToInt(technician.Active),
		nullString(technician.BusyCalendarURL),
		timestampOrNow(technician.CreatedAt),
		timestampOrNow(technician.UpdatedAt),
	)
	return mapError(err)
}

// UpdateTechnician updates an existing technician row.
func (r *TechnicianRepository) UpdateTechnician(ctx context.Context, technician persistence.Technician) error {
	if technician.ID == "" {
		return persistence.ErrNotFound
	}

	query := `
		UPDATE technicians
		SET email = ?, full_name = ?, active = ?, busy_calendar_url = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.pool.db.ExecContext(ctx, query,
		technician.Email,
		technician.FullName,
		boolToInt(technician.Active),
		nullString(technician.BusyCalendarURL),
		timestampOrNow(technician.UpdatedAt),
		technician.ID,
	)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetTechnician retrieves a technician by ID.
func (r *TechnicianRepository) GetTechnician(ctx context.Context, id string) (persistence.Technician, error) {
	if id == "" {
		return persistence.Technician{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, email, full_name, active, busy_calendar_url, created_at, updated_at
		FROM technicians
		WHERE id = ?
	`

	return scanTechnician(r.pool.db.QueryRowContext(ctx, query, id))
}

// ListTechnicians returns the roster ordered by full name.
func (r *TechnicianRepository) ListTechnicians(ctx context.Context, activeOnly bool) ([]persistence.Technician, error) {
	query := `
		SELECT id, email, full_name, active, busy_calendar_url, created_at, updated_at
		FROM technicians
	`
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY full_name ASC, id ASC"

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var technicians []persistence.Technician
	for rows.Next() {
		technician, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		technicians = append(technicians, technician)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return technicians, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTechnician(row rowScanner) (persistence.Technician, error) {
	var technician persistence.Technician
	var active int
	var busyURL sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&technician.ID,
		&technician.Email,
		&technician.FullName,
		&active,
		&busyURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Technician{}, mapError(err)
	}

	technician.Active = active != 0
	if busyURL.Valid {
		technician.BusyCalendarURL = &busyURL.String
	}
	if technician.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Technician{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if technician.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Technician{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return technician, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
