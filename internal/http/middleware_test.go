package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/fieldservice-scheduler/internal/application"
)

type fakeSessionValidator struct {
	principal application.Principal
	err       error
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	return f.principal, f.err
}

func TestSessionMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid session tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name           string
			cookieToken    *http.Cookie
			headerToken    string
			lookupError    error
			expectedStatus int
		}{
			{
				name:           "missing credentials",
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "expired session",
				cookieToken:    &http.Cookie{Name: "session_token", Value: "expired-token"},
				lookupError:    application.ErrSessionExpired,
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "revoked session",
				headerToken:    "Bearer revoked-token",
				lookupError:    application.ErrSessionRevoked,
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "unknown session",
				cookieToken:    &http.Cookie{Name: "session_token", Value: "unknown-token"},
				lookupError:    application.ErrNotFound,
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "disabled account",
				headerToken:    "Bearer disabled-token",
				lookupError:    application.ErrAccountDisabled,
				expectedStatus: http.StatusForbidden,
			},
			{
				name:           "repository failure",
				cookieToken:    &http.Cookie{Name: "session_token", Value: "transient-error"},
				lookupError:    errors.New("storage unavailable"),
				expectedStatus: http.StatusInternalServerError,
			},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				if tc.cookieToken != nil {
					req.AddCookie(tc.cookieToken)
				}
				if tc.headerToken != "" {
					req.Header.Set("Authorization", tc.headerToken)
				}

				recorder := httptest.NewRecorder()

				handler := RequireSession(fakeSessionValidator{err: tc.lookupError}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))
				handler.ServeHTTP(recorder, req)

				if recorder.Code != tc.expectedStatus {
					t.Fatalf("expected %d, got %d: %s", tc.expectedStatus, recorder.Code, recorder.Body.String())
				}
			})
		}
	})

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{OperatorID: "op-123", IsManager: true}

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "valid-token"})
		recorder := httptest.NewRecorder()

		var captured application.Principal
		var ok bool
		handler := RequireSession(fakeSessionValidator{principal: principal}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured, ok = PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if !ok || captured != principal {
			t.Fatalf("expected principal %+v in context, got %+v", principal, captured)
		}
	})

	t.Run("prefers the bearer header over the cookie", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "cookie-token"})

		if got := extractTokenFromRequest(req); got != "header-token" {
			t.Fatalf("expected header token, got %q", got)
		}
	})
}
