// Package cluster is a thin container orchestrator backend for a clustered
// scheduler, selected by ORCH_KIND=cluster.
//
// No cluster scheduler is wired yet, so this backend satisfies the
// Orchestrator interface boundary without a live client underneath — every
// method returns a clear "not implemented" error rather than silently
// no-opping. Wiring a real scheduler client (e.g. a Kubernetes client-go
// Job backend) slots in behind this seam without touching pkg/lifecycle.
package cluster

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/botlifecycle/pkg/orchestrator"
)

// ErrNotImplemented is returned by every Backend method.
var ErrNotImplemented = errors.New("cluster orchestrator backend not implemented")

// Backend is a placeholder Orchestrator satisfying the interface for
// ORCH_KIND=cluster deployments that have not yet wired a real scheduler.
type Backend struct{}

// New returns a Backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Create(ctx context.Context, spec orchestrator.Spec) (string, error) {
	return "", ErrNotImplemented
}

func (b *Backend) Start(ctx context.Context, containerID string) error {
	return ErrNotImplemented
}

func (b *Backend) Stop(ctx context.Context, containerID string, grace time.Duration) error {
	return ErrNotImplemented
}

func (b *Backend) Inspect(ctx context.Context, containerID string) (bool, error) {
	return false, ErrNotImplemented
}

func (b *Backend) WaitExit(ctx context.Context, containerID string) (orchestrator.ExitResult, error) {
	return orchestrator.ExitResult{}, ErrNotImplemented
}
