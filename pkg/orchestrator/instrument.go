package orchestrator

import (
	"context"
	"time"

	"github.com/codeready-toolchain/botlifecycle/pkg/metrics"
)

// Instrumented wraps another Orchestrator, recording per-operation latency.
type Instrumented struct {
	next Orchestrator
}

// Instrument wraps orch with latency recording.
func Instrument(orch Orchestrator) *Instrumented {
	return &Instrumented{next: orch}
}

func observe(op string, start time.Time) {
	metrics.OrchestratorOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (i *Instrumented) Create(ctx context.Context, spec Spec) (string, error) {
	defer observe("create", time.Now())
	return i.next.Create(ctx, spec)
}

func (i *Instrumented) Start(ctx context.Context, containerID string) error {
	defer observe("start", time.Now())
	return i.next.Start(ctx, containerID)
}

func (i *Instrumented) Stop(ctx context.Context, containerID string, grace time.Duration) error {
	defer observe("stop", time.Now())
	return i.next.Stop(ctx, containerID, grace)
}

func (i *Instrumented) Inspect(ctx context.Context, containerID string) (bool, error) {
	defer observe("inspect", time.Now())
	return i.next.Inspect(ctx, containerID)
}

func (i *Instrumented) WaitExit(ctx context.Context, containerID string) (ExitResult, error) {
	defer observe("wait_exit", time.Now())
	return i.next.WaitExit(ctx, containerID)
}
