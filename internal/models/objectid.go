// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package models

import (
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ObjectIDLength is the length of a hex encoded document id.
const ObjectIDLength = 24

var (
	objectIDCounter atomic.Uint32
	processUnique   = func() [5]byte {
		var b [5]byte
		id := uuid.New()
		copy(b[:], id[:5])
		return b
	}()
)

func init() {
	seed := uuid.New()
	objectIDCounter.Store(binary.BigEndian.Uint32(seed[:4]))
}

// NewObjectID returns a 12-byte document id as 24 lowercase hex characters:
// 4 bytes of unix seconds, 5 bytes unique to this process, 3 bytes of counter.
// Ids created later in the same process sort after earlier ones.
func NewObjectID() string {
	return newObjectIDAt(time.Now())
}

func newObjectIDAt(t time.Time) string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(t.Unix())) //nolint:gosec // seconds fit until 2106
	copy(b[4:9], processUnique[:])
	c := objectIDCounter.Add(1)
	b[9] = byte(c >> 16)
	b[10] = byte(c >> 8)
	b[11] = byte(c)
	return hex.EncodeToString(b[:])
}

// IsObjectID reports whether s is 24 lowercase hex characters, the same
// rule the validator's mongodb tag applies.
func IsObjectID(s string) bool {
	if len(s) != ObjectIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
