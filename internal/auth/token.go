// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/castline/internal/config"
)

// RoleAdmin is the role that may dispatch notifications over HTTP.
const RoleAdmin = "ADMIN"

var (
	// ErrMissingToken is returned when no token was presented.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrSubjectMismatch is returned when the token subject differs from
	// the expected subject.
	ErrSubjectMismatch = errors.New("auth: subject mismatch")
	// ErrSessionNotFound is returned when the token's session does not exist.
	ErrSessionNotFound = errors.New("auth: session not found")
)

// Claims are the JWT claims issued by the login service.
type Claims struct {
	ProfileID string   `json:"profile_id"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Sitename  string   `json:"sitename,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller.
type Identity struct {
	ProfileID string
	Email     string
	Roles     []string
	JTI       string
}

// HasRole reports whether the identity carries role.
func (id Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsAdmin reports whether the identity carries RoleAdmin.
func (id Identity) IsAdmin() bool {
	return id.HasRole(RoleAdmin)
}

// TokenVerifier validates tokens against a shared secret and issuer.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a verifier from the security configuration.
func NewTokenVerifier(cfg *config.SecurityConfig) (*TokenVerifier, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &TokenVerifier{secret: []byte(cfg.JWTSecret), issuer: cfg.JWTIssuer}, nil
}

// Verify checks the token and returns the caller identity. expectedSubject
// must equal the token's sub claim.
func (v *TokenVerifier) Verify(tokenString, expectedSubject string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject != expectedSubject {
		return Identity{}, ErrSubjectMismatch
	}
	if claims.ProfileID == "" {
		return Identity{}, fmt.Errorf("%w: missing profile_id", ErrInvalidToken)
	}

	return Identity{
		ProfileID: claims.ProfileID,
		Email:     claims.Email,
		Roles:     claims.Roles,
		JTI:       claims.ID,
	}, nil
}

// TokenIssuer signs tokens in the login service's format.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer from the security configuration.
func NewTokenIssuer(cfg *config.SecurityConfig) (*TokenIssuer, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(cfg.JWTSecret), issuer: cfg.JWTIssuer, ttl: ttl}, nil
}

// Issue signs a token for id with the given subject. A jti is generated when
// id.JTI is empty; the returned Identity carries it.
func (i *TokenIssuer) Issue(id Identity, subject string) (string, Identity, error) {
	if id.JTI == "" {
		id.JTI = uuid.NewString()
	}
	now := time.Now()
	claims := &Claims{
		ProfileID: id.ProfileID,
		Email:     id.Email,
		Roles:     id.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			ID:        id.JTI,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, id, nil
}
