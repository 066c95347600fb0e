package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/fieldservice-scheduler/internal/persistence"
)

type operatorRepoStub struct {
	operators map[string]persistence.Operator
}

func newOperatorRepoStub(operators ...persistence.Operator) *operatorRepoStub {
	stub := &operatorRepoStub{operators: make(map[string]persistence.Operator)}
	for _, operator := range operators {
		stub.operators[operator.ID] = operator
	}
	return stub
}

func (s *operatorRepoStub) CreateOperator(ctx context.Context, operator persistence.Operator) error {
	s.operators[operator.ID] = operator
	return nil
}

func (s *operatorRepoStub) GetOperator(ctx context.Context, id string) (persistence.Operator, error) {
	operator, ok := s.operators[id]
	if !ok {
		return persistence.Operator{}, persistence.ErrNotFound
	}
	return operator, nil
}

func (s *operatorRepoStub) GetOperatorByEmail(ctx context.Context, email string) (persistence.Operator, error) {
	for _, operator := range s.operators {
		if operator.Email == email {
			return operator, nil
		}
	}
	return persistence.Operator{}, persistence.ErrNotFound
}

type sessionRepoStub struct {
	sessions map[string]persistence.Session
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{sessions: make(map[string]persistence.Session)}
}

func (s *sessionRepoStub) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.sessions[session.Token] = session
	return session, nil
}

func (s *sessionRepoStub) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *sessionRepoStub) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return session, nil
}

func (s *sessionRepoStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func passEqualsVerifier(hashedPassword, password string) error {
	if hashedPassword == password {
		return nil
	}
	return ErrInvalidCredentials
}

func newAuthFixture(t *testing.T, operators ...persistence.Operator) (*AuthService, *sessionRepoStub) {
	t.Helper()
	sessions := newSessionRepoStub()
	counter := 0
	svc := NewAuthService(newOperatorRepoStub(operators...), sessions, passEqualsVerifier,
		func() string { counter++; return "token-" + string(rune('0'+counter)) },
		fixedNow(t), time.Hour, nil)
	return svc, sessions
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	svc, _ := newAuthFixture(t, persistence.Operator{
		ID: "op-1", Email: "dispatch@example.com", PasswordHash: "secret", IsManager: true,
	})

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "Dispatch@Example.com",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if result.Operator.ID != "op-1" {
		t.Errorf("Expected operator op-1, got %s", result.Operator.ID)
	}
	if result.Operator.PasswordHash != "" {
		t.Error("Password hash must not leak out of Authenticate")
	}
	if result.Session.Token == "" {
		t.Error("Expected a session token")
	}

	if _, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email: "dispatch@example.com", Password: "wrong",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email: "nobody@example.com", Password: "secret",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthService_DisabledAccount(t *testing.T) {
	t.Parallel()

	svc, _ := newAuthFixture(t, persistence.Operator{
		ID: "op-1", Email: "dispatch@example.com", PasswordHash: "secret", Disabled: true,
	})

	if _, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email: "dispatch@example.com", Password: "secret",
	}); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("Expected ErrAccountDisabled, got %v", err)
	}
}

func TestAuthService_ValidateSessionLifecycle(t *testing.T) {
	t.Parallel()

	svc, _ := newAuthFixture(t, persistence.Operator{
		ID: "op-1", Email: "dispatch@example.com", PasswordHash: "secret", IsManager: true,
	})

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email: "dispatch@example.com", Password: "secret",
	})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	principal, err := svc.ValidateSession(context.Background(), result.Session.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if principal.OperatorID != "op-1" || !principal.IsManager {
		t.Errorf("Expected manager principal op-1, got %+v", principal)
	}

	if err := svc.RevokeSession(context.Background(), result.Session.Token); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := svc.ValidateSession(context.Background(), result.Session.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("Expected ErrSessionRevoked, got %v", err)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := CreatePasswordHash("hunter2", DefaultArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if err := VerifyPassword(hash, "hunter2"); err != nil {
		t.Errorf("Expected password to verify, got %v", err)
	}
	if err := VerifyPassword(hash, "hunter3"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if err := VerifyPassword("not-a-hash", "hunter2"); !errors.Is(err, ErrInvalidPasswordHash) {
		t.Errorf("Expected ErrInvalidPasswordHash, got %v", err)
	}
}
