package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/example/fieldservice-scheduler/internal/application"
)

// SessionValidator resolves a bearer token to the operator principal behind
// it. The auth service implements it; middleware tests substitute fakes.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (application.Principal, error)
}

// RequireSession rejects requests without a valid operator session and
// injects the resolved principal into the request context.
func RequireSession(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractTokenFromRequest(r)
			if token == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
				return
			}

			principal, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				status, message := sessionRejection(err)
				responder.writeJSON(r.Context(), w, status, errorResponse{Message: message})
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionRejection maps a session validation failure to the response the
// operator console shows. Unknown tokens read the same as expired ones so
// probing cannot distinguish them.
func sessionRejection(err error) (int, string) {
	switch {
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		return http.StatusUnauthorized, "セッションが無効です。再度ログインしてください。"
	case errors.Is(err, application.ErrAccountDisabled):
		return http.StatusForbidden, "このアカウントは無効化されています。"
	case errors.Is(err, application.ErrNotFound):
		return http.StatusUnauthorized, "セッションが見つかりません。再度ログインしてください。"
	default:
		return http.StatusInternalServerError, "セッション検証中にエラーが発生しました。"
	}
}

// RequestLogger assigns each request a sequential id, attaches a correlated
// logger to the context, and logs start/completion with the elapsed time.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", counter.Add(1),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}
