// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Package apperrors defines the error kinds shared by the delivery core.
//
// Every error returned across a component boundary (dispatcher, relay,
// synchronizer, gateway) is an *Error carrying a Kind. Callers branch with
// errors.Is against the kind sentinels:
//
//	if errors.Is(err, apperrors.ErrPermission) {
//	    // 403
//	}
//
// Delivery errors never cross a component boundary; they are logged where
// they happen and counted in metrics.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindPermission     Kind = "permission"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindDelivery       Kind = "delivery"
	KindPersistence    Kind = "persistence"
)

// Kind sentinels for errors.Is.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrPermission     = &Error{Kind: KindPermission}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrDelivery       = &Error{Kind: KindDelivery}
	ErrPersistence    = &Error{Kind: KindPersistence}
)

// Error is a classified error.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "chat.send"
	Message string // safe to show to clients
	Err     error  // underlying cause, not shown to clients
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of Op and Message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// New returns an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: string(kind), Err: err}
}

// Validation returns a KindValidation error.
func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, fmt.Sprintf(format, args...))
}

// Permission returns a KindPermission error.
func Permission(op, format string, args ...any) *Error {
	return New(KindPermission, op, fmt.Sprintf(format, args...))
}

// NotFound returns a KindNotFound error.
func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, fmt.Sprintf(format, args...))
}

// Persistence wraps a store failure.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Message: "store unavailable", Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PublicMessage returns the client-safe message of err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
