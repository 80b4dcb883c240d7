// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/store"
)

type contextKey string

// IdentityContextKey holds the verified Identity in request contexts.
const IdentityContextKey contextKey = "identity"

// Verifier is the token check the middleware depends on.
type Verifier interface {
	Verify(token, expectedSubject string) (Identity, error)
}

// Middleware guards HTTP handlers with bearer token authentication.
type Middleware struct {
	verifier       Verifier
	sessions       store.Sessions
	requireSession bool
	now            func() time.Time
}

// NewMiddleware creates the guard. When requireSession is set every token's
// jti must name a stored session, whose last_active_on is refreshed.
func NewMiddleware(verifier Verifier, sessions store.Sessions, requireSession bool) *Middleware {
	return &Middleware{
		verifier:       verifier,
		sessions:       sessions,
		requireSession: requireSession,
		now:            time.Now,
	}
}

// Authenticate rejects requests without a valid bearer token with 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			writeUnauthorized(w, "Unauthorized: "+err.Error())
			return
		}

		id, err := m.Check(r.Context(), token, r.Header.Get("Origin"))
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			writeUnauthorized(w, "Unauthorized: invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// Check verifies token against subject and, when required, the session.
func (m *Middleware) Check(ctx context.Context, token, subject string) (Identity, error) {
	id, err := m.verifier.Verify(token, subject)
	if err != nil {
		return Identity{}, err
	}
	if !m.requireSession || m.sessions == nil {
		return id, nil
	}

	if _, err := m.sessions.TouchSession(ctx, id.JTI, m.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, ErrSessionNotFound
		}
		return Identity{}, err
	}
	return id, nil
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}

// ContextWithIdentity stores id in ctx.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, id)
}

// IdentityFromContext returns the identity set by Authenticate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(Identity)
	return id, ok
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="castline"`)
	http.Error(w, message, http.StatusUnauthorized)
}
