package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// HTTPMessenger talks JSON to the calendar gateway. It implements both
// Messenger (outbound invites and cancellations) and ResponseSource (the
// inbound response feed consumed by the poller).
type HTTPMessenger struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPMessenger creates a messenger for the gateway at baseURL. The
// timeout bounds every remote call so a hung gateway cannot strand a
// per-appointment commit lock.
func NewHTTPMessenger(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPMessenger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPMessenger{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type inviteRequest struct {
	RecipientEmail string            `json:"recipient_email"`
	Subject        string            `json:"subject"`
	Date           string            `json:"date"`
	StartTime      string            `json:"start_time"`
	EndTime        string            `json:"end_time"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type inviteResponse struct {
	EventID string `json:"event_id"`
}

// SendInvite posts an invite and returns the gateway-assigned event id.
func (m *HTTPMessenger) SendInvite(ctx context.Context, invite Invite) (string, error) {
	if invite.RecipientEmail == "" {
		return "", &RejectionError{StatusCode: http.StatusBadRequest, Message: "recipient email is empty"}
	}

	payload := inviteRequest{
		RecipientEmail: invite.RecipientEmail,
		Subject:        invite.Subject,
		Date:           invite.Date.String(),
		StartTime:      invite.Start.String(),
		EndTime:        invite.End.String(),
		Metadata:       invite.Metadata,
	}

	var result inviteResponse
	if err := m.post(ctx, "/invites", payload, &result); err != nil {
		return "", err
	}
	if result.EventID == "" {
		return "", &RejectionError{StatusCode: http.StatusOK, Message: "gateway returned no event id"}
	}

	m.logger.InfoContext(ctx, "calendar invite sent",
		slog.String("event_id", result.EventID),
		slog.String("date", invite.Date.String()))
	return result.EventID, nil
}

type cancellationRequest struct {
	EventID  string            `json:"event_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SendCancellation asks the gateway to cancel a previously created event.
func (m *HTTPMessenger) SendCancellation(ctx context.Context, eventID string, metadata map[string]string) error {
	if eventID == "" {
		return &RejectionError{StatusCode: http.StatusBadRequest, Message: "event id is empty"}
	}

	err := m.post(ctx, "/cancellations", cancellationRequest{EventID: eventID, Metadata: metadata}, nil)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "calendar cancellation sent", slog.String("event_id", eventID))
	return nil
}

type availabilityRequest struct {
	Email         string `json:"email"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	BufferMinutes int    `json:"buffer_minutes"`
}

type availabilityResponse struct {
	Available bool `json:"available"`
	Conflicts []struct {
		Subject   string `json:"subject"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	} `json:"conflicts"`
}

// CheckAvailability probes the gateway for the recipient's free/busy state
// in the given window.
func (m *HTTPMessenger) CheckAvailability(ctx context.Context, email string, date timeutil.Date, start, end timeutil.Clock, bufferMinutes int) (Availability, error) {
	payload := availabilityRequest{
		Email:         email,
		Date:          date.String(),
		StartTime:     start.String(),
		EndTime:       end.String(),
		BufferMinutes: bufferMinutes,
	}

	var result availabilityResponse
	if err := m.post(ctx, "/availability", payload, &result); err != nil {
		return Availability{}, err
	}

	availability := Availability{Available: result.Available}
	for _, c := range result.Conflicts {
		interval := BusyInterval{Subject: c.Subject}
		if clock, err := timeutil.ParseClock(c.StartTime); err == nil {
			interval.Start = clock
		}
		if clock, err := timeutil.ParseClock(c.EndTime); err == nil {
			interval.End = clock
		}
		availability.Conflicts = append(availability.Conflicts, interval)
	}
	return availability, nil
}

// FetchResponses drains the gateway's pending accept/decline feed. Invalid
// entries are logged and skipped so one malformed signal cannot block the
// rest of the batch.
func (m *HTTPMessenger) FetchResponses(ctx context.Context) ([]Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/responses", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rejectionFromResponse(resp)
	}

	var batch []Response
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("calendar: decoding response feed: %w", err)
	}

	valid := batch[:0]
	for _, r := range batch {
		if !r.Valid() {
			m.logger.WarnContext(ctx, "skipping malformed calendar response",
				slog.String("appointment_id", r.AppointmentID),
				slog.String("role", string(r.Role)),
				slog.String("decision", string(r.Decision)))
			continue
		}
		valid = append(valid, r)
	}
	return valid, nil
}

func (m *HTTPMessenger) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("calendar: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rejectionFromResponse(resp)
	}

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("calendar: decoding response: %w", err)
	}
	return nil
}

// classifyTransportError separates "the gateway never answered" from every
// other transport failure. Timeouts matter because the caller must assume
// the remote operation may have happened.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("calendar: request failed: %w", err)
}

func rejectionFromResponse(resp *http.Response) error {
	message := ""
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			message = body.Error
		}
	}
	return &RejectionError{StatusCode: resp.StatusCode, Message: message}
}
