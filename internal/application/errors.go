package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/fieldservice-scheduler/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a create collides with an existing resource.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when authentication input does not match a known operator.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a disabled operator attempts to authenticate.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a session token is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session token has been revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrConcurrentCommit is returned when a commit is already in flight for
	// the same appointment. The caller must not retry until the first commit
	// settles.
	ErrConcurrentCommit = errors.New("application: commit already in progress")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// ConflictError carries the conflicts found while placing an appointment.
// It is non-fatal by design: callers may re-submit with an explicit
// override, so conflicts are reported rather than swallowed.
type ConflictError struct {
	Conflicts []scheduler.Conflict
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil || len(c.Conflicts) == 0 {
		return "scheduling conflict"
	}
	parts := make([]string, 0, len(c.Conflicts))
	for _, conflict := range c.Conflicts {
		label := conflict.AppointmentID
		if label == "" {
			label = conflict.Description
		}
		parts = append(parts, fmt.Sprintf("%s (%s-%s)", label, conflict.Start, conflict.End))
	}
	return "scheduling conflict with " + strings.Join(parts, ", ")
}

// ExternalError wraps a failed calendar-facing call. Timeout reports
// whether the remote system never answered, in which case the operation
// may or may not have happened on the remote side.
type ExternalError struct {
	Op      string
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *ExternalError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("calendar %s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("calendar %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As checks.
func (e *ExternalError) Unwrap() error {
	return e.Err
}

// SplitIncompleteError reports a multi-day split that failed after some
// segments were already persisted. The created segments are valid
// standalone drafts; the operator decides whether to complete or delete
// the remainder.
type SplitIncompleteError struct {
	Created []string
	Total   int
	Err     error
}

// Error implements the error interface.
func (e *SplitIncompleteError) Error() string {
	return fmt.Sprintf("split stopped after %d of %d segments: %v", len(e.Created), e.Total, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As checks.
func (e *SplitIncompleteError) Unwrap() error {
	return e.Err
}
