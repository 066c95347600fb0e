package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

func testInvite(t *testing.T) Invite {
	t.Helper()
	date, err := timeutil.ParseDate("2025-06-04")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	return Invite{
		RecipientEmail: "tech@example.com",
		Subject:        "[PENDING] Service: UPS battery swap",
		Date:           date,
		Start:          timeutil.NewClock(9, 0),
		End:            timeutil.NewClock(11, 0),
	}
}

func TestHTTPMessenger_SendInvite(t *testing.T) {
	var received inviteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invites" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(inviteResponse{EventID: "evt-1"})
	}))
	defer server.Close()

	messenger := NewHTTPMessenger(server.URL, time.Second, nil)
	eventID, err := messenger.SendInvite(context.Background(), testInvite(t))
	if err != nil {
		t.Fatalf("SendInvite failed: %v", err)
	}
	if eventID != "evt-1" {
		t.Errorf("Expected event id evt-1, got %q", eventID)
	}
	if received.Date != "2025-06-04" || received.StartTime != "09:00" || received.EndTime != "11:00" {
		t.Errorf("Expected local date/time serialization, got %+v", received)
	}
}

func TestHTTPMessenger_RejectionIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "recipient mailbox full"})
	}))
	defer server.Close()

	messenger := NewHTTPMessenger(server.URL, time.Second, nil)
	_, err := messenger.SendInvite(context.Background(), testInvite(t))
	if err == nil {
		t.Fatal("Expected an error for a rejected invite")
	}

	var rejection *RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("Expected RejectionError, got %T: %v", err, err)
	}
	if rejection.StatusCode != http.StatusConflict || rejection.Message != "recipient mailbox full" {
		t.Errorf("Expected status and message to carry through, got %+v", rejection)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("A rejection must not be classified as a timeout")
	}
}

func TestHTTPMessenger_TimeoutIsDistinguishable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The unread request body keeps the server from noticing the client
		// disconnect, so waiting solely on r.Context() would block Close forever.
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	messenger := NewHTTPMessenger(server.URL, 50*time.Millisecond, nil)
	_, err := messenger.SendInvite(context.Background(), testInvite(t))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
}

func TestHTTPMessenger_FetchResponsesSkipsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Response{
			{AppointmentID: "appt1", Role: RoleTechnician, Decision: DecisionAccepted},
			{AppointmentID: "", Role: RoleTechnician, Decision: DecisionAccepted},
			{AppointmentID: "appt2", Role: "intruder", Decision: DecisionAccepted},
			{AppointmentID: "appt3", Role: RoleCustomer, Decision: DecisionDeclined},
		})
	}))
	defer server.Close()

	messenger := NewHTTPMessenger(server.URL, time.Second, nil)
	responses, err := messenger.FetchResponses(context.Background())
	if err != nil {
		t.Fatalf("FetchResponses failed: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("Expected 2 valid responses, got %d: %+v", len(responses), responses)
	}
	if responses[0].AppointmentID != "appt1" || responses[1].AppointmentID != "appt3" {
		t.Errorf("Expected appt1 and appt3 to survive filtering, got %+v", responses)
	}
}

func TestIsOwnInvite(t *testing.T) {
	cases := []struct {
		subject string
		own     bool
	}{
		{"[PENDING] Service: battery swap", true},
		{"[AWAITING CUSTOMER] Service: battery swap", true},
		{"Service: rack relocation", true},
		{"  Service: leading whitespace", true},
		{"Dentist", false},
		{"Pending review", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsOwnInvite(tc.subject); got != tc.own {
			t.Errorf("IsOwnInvite(%q) = %v, want %v", tc.subject, got, tc.own)
		}
	}
}
