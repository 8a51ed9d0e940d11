// Package botid generates the identifiers the State Store Gateway hands out
// on admission: the meeting_id primary key and the session_uid capability
// token workers use to authenticate callbacks.
package botid

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"
)

// sessionUIDBytes is 16 bytes of CSPRNG output: 128 bits, more entropy than
// a v4 UUID.
const sessionUIDBytes = 16

// encoding renders session UIDs as unpadded base32, which is URL-safe and
// case-insensitive without the ambiguous-character trimming base58 needs.
var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewMeetingID returns a fresh primary key for a Meeting row.
func NewMeetingID() string {
	return uuid.NewString()
}

// NewSessionUID returns a fresh, unguessable capability token that the
// worker must present on every callback. It is never derived
// from the meeting_id: leaking one must not leak the other.
func NewSessionUID() (string, error) {
	buf := make([]byte, sessionUIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session uid: %w", err)
	}
	return encoding.EncodeToString(buf), nil
}
