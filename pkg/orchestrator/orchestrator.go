// Package orchestrator defines the container orchestrator adapter: the
// boundary between the Lifecycle Coordinator and whatever actually runs bot
// worker containers.
package orchestrator

import (
	"context"
	"time"
)

// Spec describes the worker container to create. The worker contract
// bootstraps entirely from environment variables.
type Spec struct {
	Image           string
	SessionUID      string
	MeetingID       string
	CallbackBaseURL string
	Platform        string
	NativeMeetingID string
	MeetingURL      string
	Env             map[string]string
}

// ExitResult is what WaitExit reports once a container stops on its own.
type ExitResult struct {
	ExitCode int64
	Err      error
}

// Orchestrator creates, starts, stops, and inspects bot worker containers.
// Every method is deadline-propagated via ctx.
type Orchestrator interface {
	// Create provisions (but does not start) a container for spec and
	// returns its container id.
	Create(ctx context.Context, spec Spec) (containerID string, err error)

	// Start runs a previously created container.
	Start(ctx context.Context, containerID string) error

	// Stop gracefully stops a container, forcing it after grace elapses.
	Stop(ctx context.Context, containerID string, grace time.Duration) error

	// Inspect reports whether containerID is currently running.
	Inspect(ctx context.Context, containerID string) (running bool, err error)

	// WaitExit blocks until containerID exits or ctx is cancelled.
	WaitExit(ctx context.Context, containerID string) (ExitResult, error)
}
