package lifecycle

import "errors"

// ErrOrchestratorFailed wraps a Container Orchestrator Adapter failure
// surfaced through StartBot, distinct from store-layer errors so pkg/api
// can map it to 502 rather than 503/500.
var ErrOrchestratorFailed = errors.New("orchestrator operation failed")

// ErrIllegalState is returned by ReconfigureBot when the Meeting is not in
// {starting, active}, the only phases a worker can legitimately accept a
// Reconfigure command in.
var ErrIllegalState = errors.New("meeting not in a reconfigurable state")
