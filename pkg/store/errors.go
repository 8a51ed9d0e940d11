package store

import "errors"

// Sentinel errors returned by the State Store Gateway. Callers use
// errors.Is to branch on these; they are stable across implementations.
var (
	// ErrLimitExceeded is returned by Reserve when the user is already at
	// their max_concurrent_bots.
	ErrLimitExceeded = errors.New("user concurrency limit exceeded")

	// ErrConflict is returned by SetContainer when the Meeting already has a
	// container id, and by Reserve when the user already has a non-terminal
	// Meeting for the same platform and native_meeting_id.
	ErrConflict = errors.New("state conflict")

	// ErrNotFound is returned when the requested meeting_id or session_uid
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIllegalTransition is returned by AdvanceStatus when a requested
	// from → to is not an edge of the lifecycle DAG, or when the row is in
	// neither a from status nor the target.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrAlreadySet is returned by UpsertSession when a MeetingSession
	// already exists for the session_uid, signaling a duplicate "started"
	// callback to be treated as a no-op by the caller rather than an error.
	ErrAlreadySet = errors.New("session already recorded")

	// ErrUnavailable wraps infrastructure failures (connection refused,
	// context deadline) distinct from business-rule rejections.
	ErrUnavailable = errors.New("store unavailable")

	// ErrUnknownUser marks a user_id with no row in users. Reserve does not
	// return it: it creates an unknown user implicitly with a cap of 1.
	ErrUnknownUser = errors.New("unknown user")
)

// IsUnavailable reports whether err is a transient infrastructure failure
// the caller may retry, as opposed to a business-rule rejection.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
