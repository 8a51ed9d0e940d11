// Package reaper implements the periodic sweep that fails meetings stuck
// past their phase's staleness threshold and releases their containers.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/botlifecycle/pkg/config"
	"github.com/codeready-toolchain/botlifecycle/pkg/metrics"
	"github.com/codeready-toolchain/botlifecycle/pkg/models"
	"github.com/codeready-toolchain/botlifecycle/pkg/orchestrator"
	"github.com/codeready-toolchain/botlifecycle/pkg/retry"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
)

// retryStore runs a store call under the transient-failure policy: three
// attempts with capped exponential backoff for Unavailable, immediate
// return otherwise.
func retryStore(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.DoIf(ctx, retry.DefaultConfig(), 3, store.IsUnavailable, fn)
}

// phase pairs a status with the threshold configured for it.
type phase struct {
	status    models.Status
	threshold func(cfg config.ReaperConfig) time.Duration
	reason    string
}

var phases = []phase{
	{models.StatusReserved, func(c config.ReaperConfig) time.Duration { return c.ReserveStale }, "startup_timeout"},
	{models.StatusStarting, func(c config.ReaperConfig) time.Duration { return c.StartingStale }, "join_timeout"},
	{models.StatusActive, func(c config.ReaperConfig) time.Duration { return c.HeartbeatStale }, "heartbeat_lost"},
	{models.StatusStopping, func(c config.ReaperConfig) time.Duration { return c.StoppingStale }, "shutdown_timeout"},
}

// Reaper runs the periodic stale-meeting sweep plus a one-shot startup sweep
// for rows orphaned by this instance's own prior crash.
type Reaper struct {
	store        *store.Store
	orchestrator orchestrator.Orchestrator
	cfg          config.ReaperConfig
	instanceID   string

	mu            sync.Mutex
	lastScan      time.Time
	meetingsRecov int
}

// New builds a Reaper.
func New(st *store.Store, orch orchestrator.Orchestrator, cfg config.ReaperConfig, instanceID string) *Reaper {
	return &Reaper{store: st, orchestrator: orch, cfg: cfg, instanceID: instanceID}
}

// Run blocks, ticking every cfg.TickInterval, until ctx is cancelled. It
// performs the startup sweep once before entering the loop.
func (r *Reaper) Run(ctx context.Context) {
	if err := r.sweepStartupOrphans(ctx); err != nil {
		slog.Error("reaper startup sweep failed", "error", err)
	}

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				slog.Error("reaper sweep failed", "error", err)
			}
		}
	}
}

// Sweep scans every phase for rows past their staleness threshold and fails
// them, best-effort stopping any associated container.
func (r *Reaper) Sweep(ctx context.Context) error {
	now := time.Now()
	recovered := 0

	for _, p := range phases {
		threshold := now.Add(-p.threshold(r.cfg))
		var stale []*models.Meeting
		err := retryStore(ctx, func(ctx context.Context) error {
			var scanErr error
			stale, scanErr = r.store.ScanStale(ctx, p.status, threshold)
			return scanErr
		})
		if err != nil {
			return fmt.Errorf("scan stale %s: %w", p.status, err)
		}
		for _, m := range stale {
			r.recover(ctx, m, p.reason)
			metrics.ReaperRecoveredTotal.WithLabelValues(string(p.status)).Inc()
			recovered++
		}
	}
	metrics.ReaperSweepsTotal.Inc()

	if counts, err := r.store.StatusCounts(ctx); err == nil {
		for _, status := range []models.Status{models.StatusReserved, models.StatusStarting, models.StatusActive, models.StatusStopping} {
			metrics.ActiveMeetings.WithLabelValues(string(status)).Set(float64(counts[status]))
		}
	}

	r.mu.Lock()
	r.lastScan = now
	r.meetingsRecov += recovered
	r.mu.Unlock()

	if recovered > 0 {
		slog.Warn("reaper recovered stale meetings", "count", recovered)
	}
	return nil
}

// sweepStartupOrphans runs once at startup: meetings left non-terminal by
// a process that previously crashed under this same instance id are failed
// immediately instead of waiting out their staleness thresholds.
func (r *Reaper) sweepStartupOrphans(ctx context.Context) error {
	var orphans []*models.Meeting
	err := retryStore(ctx, func(ctx context.Context) error {
		var scanErr error
		orphans, scanErr = r.store.StartupOrphans(ctx, r.instanceID)
		return scanErr
	})
	if err != nil {
		return fmt.Errorf("scan startup orphans: %w", err)
	}
	for _, m := range orphans {
		r.recover(ctx, m, fmt.Sprintf("orphaned: instance %s restarted while meeting was %s", r.instanceID, m.Status))
	}
	if len(orphans) > 0 {
		slog.Warn("reaper recovered startup orphans", "count", len(orphans), "instance_id", r.instanceID)
	}
	return nil
}

func (r *Reaper) recover(ctx context.Context, m *models.Meeting, reason string) {
	log := slog.With("meeting_id", m.MeetingID, "from_status", m.Status)

	if m.BotContainerID != nil && r.orchestrator != nil {
		if err := r.orchestrator.Stop(ctx, *m.BotContainerID, 0); err != nil {
			log.Warn("best-effort container stop failed during recovery", "error", err)
		}
	}

	from := models.TransitionsInto(models.StatusFailed)
	now := time.Now()
	opts := store.AdvanceOptions{EndTime: &now, FailureReason: reason}
	err := retryStore(ctx, func(ctx context.Context) error {
		return r.store.AdvanceStatus(ctx, m.MeetingID, from, models.StatusFailed, opts)
	})
	if err != nil {
		log.Error("failed to mark stale meeting as failed", "error", err)
		return
	}
	log.Warn("meeting marked failed by reaper", "reason", reason)
}

// Stats reports the reaper's last-scan bookkeeping for /health.
type Stats struct {
	LastScan          time.Time
	MeetingsRecovered int
}

// Health returns the current Stats.
func (r *Reaper) Health() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{LastScan: r.lastScan, MeetingsRecovered: r.meetingsRecov}
}
