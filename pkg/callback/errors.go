package callback

import "errors"

// ErrUnauthorized is returned when a callback's bearer token does not match
// a known session_uid.
var ErrUnauthorized = errors.New("unauthorized callback")

// ErrIllegalStatus is returned by Service.Status when the worker reports a
// status other than the one intermediate transition it legitimately owns,
// active -> stopping.
var ErrIllegalStatus = errors.New("status value not permitted in worker callback")
