// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := Permission("chat.send", "profile blocked")
	wrapped := fmt.Errorf("handler: %w", err)

	if !errors.Is(wrapped, ErrPermission) {
		t.Error("wrapped permission error should match ErrPermission")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("permission error should not match ErrNotFound")
	}
	if errors.Is(wrapped, Permission("other.op", "different")) {
		t.Error("only bare sentinels should match by kind")
	}
}

func TestPersistenceUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Persistence("notify.dispatch", cause)

	if !errors.Is(err, cause) {
		t.Error("Persistence error should unwrap to its cause")
	}
	if !errors.Is(err, ErrPersistence) {
		t.Error("Persistence error should match ErrPersistence")
	}
	if PublicMessage(err) != "store unavailable" {
		t.Errorf("PublicMessage() = %q, cause must not leak", PublicMessage(err))
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{Validation("notify.dispatch", "profiles: at least %d required", 1), "notify.dispatch: profiles: at least 1 required"},
		{&Error{Kind: KindNotFound}, "not_found"},
		{Wrap(KindDelivery, "push.send", errors.New("410 gone")), "push.send: delivery: 410 gone"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(NotFound("x", "y")) != KindNotFound {
		t.Error("KindOf should return KindNotFound")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf on a plain error should be empty")
	}
	if PublicMessage(errors.New("secret detail")) != "internal error" {
		t.Error("plain errors must not leak their message")
	}
}
