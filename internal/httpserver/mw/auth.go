package mw

import (
	"context"
	"net/http"
	"strings"
	"time"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
)

type ctxKey int

const userKey ctxKey = 0

// SessionStore resolves a session token to the user behind it.
type SessionStore interface {
	UserBySession(ctx context.Context, token string, now time.Time) (*domain.User, error)
}

// SessionCookie is the cookie dashboards authenticate with; API callers may
// use an Authorization bearer token instead.
const SessionCookie = "session"

// RequireUser rejects requests without a valid session and stores the
// resolved user on the request context.
func RequireUser(sessions SessionStore, loggerClient logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			user, err := sessions.UserBySession(r.Context(), token, time.Now())
			if err != nil {
				if domain.KindOf(err) != domain.KindUnauthenticated {
					loggerClient.Error("session lookup failed", logger.Error(err))
				}
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication required"}`))
}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated user set by RequireUser.
func UserFrom(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok
}
