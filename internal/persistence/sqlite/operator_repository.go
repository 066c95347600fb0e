package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/fieldservice-scheduler/internal/persistence"
)

// OperatorRepository implements persistence.OperatorRepository using SQLite.
type OperatorRepository struct {
	pool *ConnectionPool
}

// NewOperatorRepository creates a new SQLite operator repository.
func NewOperatorRepository(pool *ConnectionPool) *OperatorRepository {
	return &OperatorRepository{pool: pool}
}

const operatorColumns = `id, email, display_name, password_hash, is_manager, disabled, created_at, updated_at`

// CreateOperator inserts a new operator account.
func (r *OperatorRepository) CreateOperator(ctx context.Context, operator persistence.Operator) error {
	if operator.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO operators (`+operatorColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		operator.ID,
		strings.ToLower(operator.Email),
		operator.DisplayName,
		operator.PasswordHash,
		boolToInt(operator.IsManager),
		boolToInt(operator.Disabled),
		timestampOrNow(operator.CreatedAt),
		timestampOrNow(operator.UpdatedAt),
	)
	return mapError(err)
}

// GetOperator retrieves an operator by ID.
func (r *OperatorRepository) GetOperator(ctx context.Context, id string) (persistence.Operator, error) {
	if id == "" {
		return persistence.Operator{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = ?`, id)
	return scanOperator(row)
}

// GetOperatorByEmail retrieves an operator by email address.
func (r *OperatorRepository) GetOperatorByEmail(ctx context.Context, email string) (persistence.Operator, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE email = ?`, strings.ToLower(email))
	return scanOperator(row)
}

func scanOperator(row rowScanner) (persistence.Operator, error) {
	var operator persistence.Operator
	var isManager, disabled int
	var createdAt, updatedAt string

	err := row.Scan(
		&operator.ID,
		&operator.Email,
		&operator.DisplayName,
		&operator.PasswordHash,
		&isManager,
		&disabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Operator{}, mapError(err)
	}

	operator.IsManager = isManager != 0
	operator.Disabled = disabled != 0
	if operator.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Operator{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if operator.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Operator{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return operator, nil
}

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool *ConnectionPool
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, operator_id, token, expires_at, revoked_at, created_at, updated_at`

// CreateSession inserts a new session row.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.OperatorID,
		session.Token,
		session.ExpiresAt.UTC().Format(time.RFC3339),
		nullTime(session.RevokedAt),
		session.CreatedAt.Format(time.RFC3339),
		session.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return session, nil
}

// GetSession retrieves a session by token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, token)
	return scanSession(row)
}

// RevokeSession stamps the session revoked and returns the updated row.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE token = ? AND revoked_at IS NULL`,
		revokedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		token,
	)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	if err := requireAffected(result); err != nil {
		return persistence.Session{}, err
	}
	return r.GetSession(ctx, token)
}

// DeleteExpiredSessions removes sessions that expired before the reference
// time.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.pool.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`,
		reference.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var session persistence.Session
	var revokedAt sql.NullString
	var expiresAt, createdAt, updatedAt string

	err := row.Scan(
		&session.ID,
		&session.OperatorID,
		&session.Token,
		&expiresAt,
		&revokedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}

	if session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	if revokedAt.Valid {
		t, err := time.Parse(time.RFC3339, revokedAt.String)
		if err != nil {
			return persistence.Session{}, fmt.Errorf("failed to parse revoked_at: %w", err)
		}
		session.RevokedAt = &t
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return session, nil
}

func nullTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: value.UTC().Format(time.RFC3339), Valid: true}
}
