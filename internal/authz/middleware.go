// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package authz

import (
	"net/http"

	"github.com/tomtom215/castline/internal/auth"
	"github.com/tomtom215/castline/internal/logging"
)

// Middleware enforces policy on HTTP routes. It must run after
// auth.Middleware.Authenticate.
type Middleware struct {
	enforcer *Enforcer
}

// NewMiddleware creates a new authorization middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// Require returns chi-style middleware allowing only callers permitted to
// perform action on object.
func (m *Middleware) Require(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "Forbidden: no authentication context", http.StatusForbidden)
				return
			}

			allowed, err := m.enforcer.EnforceWithRoles(id.ProfileID, id.Roles, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).
					Str("object", object).
					Str("action", action).
					Msg("Authorization error")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				logging.Ctx(r.Context()).Debug().
					Str("profile_id", id.ProfileID).
					Str("object", object).
					Str("action", action).
					Msg("Authorization denied")
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Allowed reports whether id may perform action on object.
func (m *Middleware) Allowed(id auth.Identity, object, action string) (bool, error) {
	return m.enforcer.EnforceWithRoles(id.ProfileID, id.Roles, object, action)
}
