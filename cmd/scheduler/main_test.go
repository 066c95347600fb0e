package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/fieldservice-scheduler/internal/application"
	"github.com/example/fieldservice-scheduler/internal/calendar"
)

type stubResponseSource struct {
	responses []calendar.Response
	err       error
	calls     int
}

func (s *stubResponseSource) FetchResponses(ctx context.Context) ([]calendar.Response, error) {
	s.calls++
	return s.responses, s.err
}

type stubResponseApplier struct {
	result  application.ApplyResponsesResult
	err     error
	applied [][]application.InboundResponse
}

func (s *stubResponseApplier) ApplyResponses(ctx context.Context, responses []application.InboundResponse) (application.ApplyResponsesResult, error) {
	s.applied = append(s.applied, responses)
	return s.result, s.err
}

func TestResponsePoller_AppliesFetchedBatch(t *testing.T) {
	source := &stubResponseSource{responses: []calendar.Response{
		{AppointmentID: "apt-1", Role: calendar.RoleTechnician, Decision: calendar.DecisionAccepted},
		{AppointmentID: "apt-2", Role: calendar.RoleCustomer, Decision: calendar.DecisionDeclined},
	}}
	applier := &stubResponseApplier{result: application.ApplyResponsesResult{Changed: []string{"apt-1", "apt-2"}}}

	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{Level: slog.LevelInfo}))

	poller := newResponsePoller(source, applier, logger)
	poller.poll(context.Background())

	if len(applier.applied) != 1 {
		t.Fatalf("expected one applied batch, got %d", len(applier.applied))
	}
	if len(applier.applied[0]) != 2 {
		t.Fatalf("expected batch of 2 responses, got %d", len(applier.applied[0]))
	}
	if applier.applied[0][0].AppointmentID != "apt-1" {
		t.Errorf("expected first response for apt-1, got %s", applier.applied[0][0].AppointmentID)
	}
	if !strings.Contains(logOutput.String(), "applied calendar responses") {
		t.Error("expected success log entry")
	}
}

func TestResponsePoller_SkipsEmptyBatch(t *testing.T) {
	source := &stubResponseSource{}
	applier := &stubResponseApplier{}

	poller := newResponsePoller(source, applier, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
	poller.poll(context.Background())

	if source.calls != 1 {
		t.Fatalf("expected one fetch, got %d", source.calls)
	}
	if len(applier.applied) != 0 {
		t.Errorf("expected no apply call for empty batch, got %d", len(applier.applied))
	}
}

func TestResponsePoller_LogsFetchFailure(t *testing.T) {
	source := &stubResponseSource{err: errors.New("gateway unreachable")}
	applier := &stubResponseApplier{}

	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{Level: slog.LevelInfo}))

	poller := newResponsePoller(source, applier, logger)
	poller.poll(context.Background())

	if len(applier.applied) != 0 {
		t.Error("expected no apply call after fetch failure")
	}
	if !strings.Contains(logOutput.String(), "failed to fetch calendar responses") {
		t.Error("expected fetch failure log entry")
	}
}

func TestResponsePoller_LogsApplyFailure(t *testing.T) {
	source := &stubResponseSource{responses: []calendar.Response{
		{AppointmentID: "apt-1", Role: calendar.RoleTechnician, Decision: calendar.DecisionAccepted},
	}}
	applier := &stubResponseApplier{err: errors.New("storage unavailable")}

	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{Level: slog.LevelInfo}))

	poller := newResponsePoller(source, applier, logger)
	poller.poll(context.Background())

	if !strings.Contains(logOutput.String(), "failed to apply calendar responses") {
		t.Error("expected apply failure log entry")
	}
}

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{name: "login", method: "POST", path: "/sessions", want: true},
		{name: "login with trailing slash", method: "POST", path: "/sessions/", want: true},
		{name: "response webhook", method: "POST", path: "/calendar/responses", want: true},
		{name: "logout requires session", method: "DELETE", path: "/sessions/current", want: false},
		{name: "schedule requires session", method: "GET", path: "/schedule", want: false},
		{name: "jobs require session", method: "POST", path: "/jobs", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if got := isPublicRoute(req); got != tt.want {
				t.Errorf("isPublicRoute(%s %s) = %v, want %v", tt.method, tt.path, got, tt.want)
			}
		})
	}
}

func TestRandomHex(t *testing.T) {
	token := randomHex(32)
	if len(token) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(token))
	}
	if token == randomHex(32) {
		t.Error("expected distinct tokens across calls")
	}

	fallback := randomHex(0)
	if len(fallback) != 32 {
		t.Errorf("expected default 16-byte token, got %d characters", len(fallback))
	}
}
