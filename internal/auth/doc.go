// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package auth verifies the bearer tokens issued by the platform's login service
and guards HTTP routes with them.

Tokens are HS256 JWTs. A token is accepted only when its issuer matches the
configured issuer and its subject matches the expected subject, which callers
set to the request Origin header. The verified claims become an Identity.

Key Components:

  - TokenVerifier: signature, algorithm, expiry, issuer and subject checks
  - TokenIssuer: signs tokens in the same format (tests and tooling)
  - Middleware: Authorization header guard with session lookup by jti

Usage:

	verifier, err := auth.NewTokenVerifier(&cfg.Security)
	guard := auth.NewMiddleware(verifier, st, cfg.Security.RequireSession)
	r.With(guard.Authenticate).Get("/api/v1/...", handler)

	id, ok := auth.IdentityFromContext(r.Context())
*/
package auth
