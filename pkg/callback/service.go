// Package callback implements the domain logic behind the callback ingress:
// the worker-facing operations a running bot reports through over its
// lifetime.
package callback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/botlifecycle/pkg/metrics"
	"github.com/codeready-toolchain/botlifecycle/pkg/models"
	"github.com/codeready-toolchain/botlifecycle/pkg/retry"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
)

// recordOutcome increments the callback counter for kind, labeling the
// outcome "ok" or "error".
func recordOutcome(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.CallbacksTotal.WithLabelValues(kind, outcome).Inc()
}

// retryStore runs a store call under the transient-failure policy: three
// attempts with capped exponential backoff for Unavailable, immediate
// return for business-rule rejections.
func retryStore(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.DoIf(ctx, retry.DefaultConfig(), 3, store.IsUnavailable, fn)
}

// Service implements the worker callback operations. Every method treats
// ErrIllegalTransition on a target state the row already satisfies as
// success, since a worker may legitimately retry a callback after a network
// hiccup.
type Service struct {
	store *store.Store
}

// New builds a Service backed by st.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

// AuthorizeSessionUID resolves sessionUID to its meeting_id, the
// authentication step every callback handler runs before dispatch.
func (s *Service) AuthorizeSessionUID(ctx context.Context, sessionUID string) (string, error) {
	var meetingID string
	err := retryStore(ctx, func(ctx context.Context) error {
		var lookupErr error
		meetingID, lookupErr = s.store.SessionByUID(ctx, sessionUID)
		return lookupErr
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	return meetingID, nil
}

// Started is the worker's first liveness signal: it creates the
// MeetingSession and advances reserved -> starting, stamping start_time. A
// worker that retries this call after a network hiccup finds the Meeting
// already past reserved and the transition is a no-op, not an error.
func (s *Service) Started(ctx context.Context, meetingID, sessionUID string, startTime time.Time) (err error) {
	defer func() { recordOutcome("started", err) }()
	if err := retryStore(ctx, func(ctx context.Context) error {
		return s.store.UpsertSession(ctx, sessionUID, meetingID, startTime)
	}); err != nil && !errors.Is(err, store.ErrAlreadySet) {
		return err
	}

	from := models.TransitionsInto(models.StatusStarting)
	err = retryStore(ctx, func(ctx context.Context) error {
		return s.store.AdvanceStatus(ctx, meetingID, from, models.StatusStarting, store.AdvanceOptions{StartTime: &startTime})
	})
	if errors.Is(err, store.ErrIllegalTransition) {
		// Already starting/active/stopping: a legitimate retry.
		return nil
	}
	if err != nil {
		return fmt.Errorf("record worker started: %w", err)
	}
	return nil
}

// Joined transitions starting -> active once the worker has actually joined
// the call, then folds in any pending_config left by a Reconfigure that
// raced the worker's startup.
func (s *Service) Joined(ctx context.Context, meetingID string) (err error) {
	defer func() { recordOutcome("joined", err) }()
	from := models.TransitionsInto(models.StatusActive)
	err = retryStore(ctx, func(ctx context.Context) error {
		return s.store.AdvanceStatus(ctx, meetingID, from, models.StatusActive, store.AdvanceOptions{})
	})
	if err != nil && !errors.Is(err, store.ErrIllegalTransition) {
		return fmt.Errorf("record worker joined: %w", err)
	}
	return retryStore(ctx, func(ctx context.Context) error {
		return s.store.FoldPendingConfig(ctx, meetingID)
	})
}

// Heartbeat refreshes last_heartbeat_at, the liveness signal the reaper
// relies on for the active phase.
func (s *Service) Heartbeat(ctx context.Context, meetingID string) (err error) {
	defer func() { recordOutcome("heartbeat", err) }()
	return retryStore(ctx, func(ctx context.Context) error {
		return s.store.Touch(ctx, meetingID)
	})
}

// Status advances the single intermediate transition a worker legitimately
// owns outside Started/Joined/Exited: active -> stopping, reported once it
// has received Leave and begun its own graceful shutdown. Any other
// requested status is rejected with ErrIllegalStatus.
func (s *Service) Status(ctx context.Context, meetingID, newStatus string) (err error) {
	defer func() { recordOutcome("status", err) }()
	if models.Status(newStatus) != models.StatusStopping {
		return fmt.Errorf("%w: %q", ErrIllegalStatus, newStatus)
	}

	from := models.TransitionsInto(models.StatusStopping)
	err = retryStore(ctx, func(ctx context.Context) error {
		return s.store.AdvanceStatus(ctx, meetingID, from, models.StatusStopping, store.AdvanceOptions{})
	})
	if err != nil && !errors.Is(err, store.ErrIllegalTransition) {
		return fmt.Errorf("record worker status: %w", err)
	}
	return retryStore(ctx, func(ctx context.Context) error {
		return s.store.FoldPendingConfig(ctx, meetingID)
	})
}

// Exited records the worker's terminal report: completed on a clean leave,
// failed with reason otherwise. end_time is always stamped on the
// transition; a duplicate exited callback for an already-terminal Meeting
// is a no-op.
func (s *Service) Exited(ctx context.Context, meetingID string, clean bool, reason string) (err error) {
	defer func() { recordOutcome("exited", err) }()

	var m *models.Meeting
	if err = retryStore(ctx, func(ctx context.Context) error {
		var readErr error
		m, readErr = s.store.Read(ctx, meetingID)
		return readErr
	}); err != nil {
		return err
	}
	switch {
	case m.Status.Terminal():
		// Duplicate exited callback.
		return nil
	case m.Status == models.StatusReserved:
		// The worker contract requires started before exited; a container
		// dying this early is the reaper's to judge.
		return nil
	}

	to := models.StatusFailed
	if clean {
		to = models.StatusCompleted
		reason = ""
		if m.Status == models.StatusStarting {
			// A clean exit before joining still never completed the
			// attempt, and starting has no edge into completed.
			to = models.StatusFailed
			reason = "exited before joining"
		}
	}

	now := time.Now()
	from := models.TransitionsInto(to)
	err = retryStore(ctx, func(ctx context.Context) error {
		return s.store.AdvanceStatus(ctx, meetingID, from, to, store.AdvanceOptions{EndTime: &now, FailureReason: reason})
	})
	if errors.Is(err, store.ErrIllegalTransition) {
		// Lost the race to another writer that already advanced the row.
		return nil
	}
	if err != nil {
		return fmt.Errorf("record worker exit: %w", err)
	}
	return nil
}
