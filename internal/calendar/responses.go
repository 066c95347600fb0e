package calendar

import "context"

// Decision is the outcome a recipient reported for an invite.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionDeclined Decision = "declined"
)

// Response is one externally-observed accept/decline signal, keyed by the
// appointment the invite belongs to. Responses are delivered in batches,
// either pushed through the webhook endpoint or pulled by the poller.
type Response struct {
	AppointmentID string        `json:"appointment_id"`
	Role          RecipientRole `json:"role"`
	Decision      Decision      `json:"decision"`
}

// Valid reports whether the response names a known role and decision.
// Unknown values are skipped rather than failing the whole batch, since a
// batch may mix signals for several appointments.
func (r Response) Valid() bool {
	if r.AppointmentID == "" {
		return false
	}
	if r.Role != RoleTechnician && r.Role != RoleCustomer {
		return false
	}
	return r.Decision == DecisionAccepted || r.Decision == DecisionDeclined
}

// ResponseSource supplies pending accept/decline signals. The HTTP
// messenger implements it against the remote calendar's response feed;
// tests substitute a canned source.
type ResponseSource interface {
	FetchResponses(ctx context.Context) ([]Response, error)
}
