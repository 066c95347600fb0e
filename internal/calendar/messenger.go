// Package calendar defines the boundary to the external calendar and
// notification system. The scheduling engine never talks to a calendar
// protocol directly; it sends invites and cancellations through the
// Messenger interface and receives accept/decline signals as Response
// values.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// Subject prefixes reserved for invites created by this system. The busy
// block reader uses them to exclude self-generated events so a committed
// appointment never conflicts with its own invite.
const (
	SubjectPrefixPendingTech      = "[PENDING]"
	SubjectPrefixAwaitingCustomer = "[AWAITING CUSTOMER]"
	SubjectPrefixService          = "Service:"
)

// IsOwnInvite reports whether an event subject matches this system's
// invite-naming convention.
func IsOwnInvite(subject string) bool {
	trimmed := strings.TrimSpace(subject)
	return strings.HasPrefix(trimmed, SubjectPrefixPendingTech) ||
		strings.HasPrefix(trimmed, SubjectPrefixAwaitingCustomer) ||
		strings.HasPrefix(trimmed, SubjectPrefixService)
}

// RecipientRole identifies which party an invite is addressed to.
type RecipientRole string

const (
	RoleTechnician RecipientRole = "technician"
	RoleCustomer   RecipientRole = "customer"
)

// Invite carries everything the remote calendar needs to create an event.
type Invite struct {
	RecipientEmail string
	Subject        string
	Date           timeutil.Date
	Start          timeutil.Clock
	End            timeutil.Clock
	Metadata       map[string]string
}

// Availability is the result of a remote availability probe.
type Availability struct {
	Available bool
	Conflicts []BusyInterval
}

// BusyInterval is one occupied range reported by the remote calendar.
type BusyInterval struct {
	Subject string
	Start   timeutil.Clock
	End     timeutil.Clock
}

// ErrTimeout indicates the remote calendar did not answer within the
// configured deadline. Callers must treat it differently from a rejection:
// the remote operation may or may not have happened.
var ErrTimeout = errors.New("calendar: operation timed out")

// RejectionError indicates the remote calendar answered and refused the
// operation. Unlike a timeout, the operation definitely did not happen.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("calendar: request rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("calendar: request rejected (status %d): %s", e.StatusCode, e.Message)
}

// IsRejection reports whether err is a definitive remote refusal.
func IsRejection(err error) bool {
	var rejection *RejectionError
	return errors.As(err, &rejection)
}

// Messenger is the narrow outbound interface to the calendar system.
// SendInvite returns an opaque event id on success. All methods run under
// the caller's context deadline and return ErrTimeout when it elapses.
type Messenger interface {
	SendInvite(ctx context.Context, invite Invite) (string, error)
	SendCancellation(ctx context.Context, eventID string, metadata map[string]string) error
	CheckAvailability(ctx context.Context, email string, date timeutil.Date, start, end timeutil.Clock, bufferMinutes int) (Availability, error)
}
