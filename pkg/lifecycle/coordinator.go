// Package lifecycle implements the lifecycle coordinator: the
// orchestration logic that turns an admitted Meeting into a running worker
// container and back down again.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/botlifecycle/pkg/admission"
	"github.com/codeready-toolchain/botlifecycle/pkg/bus"
	"github.com/codeready-toolchain/botlifecycle/pkg/models"
	"github.com/codeready-toolchain/botlifecycle/pkg/orchestrator"
	"github.com/codeready-toolchain/botlifecycle/pkg/retry"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
)

// StopGrace bounds how long Stop waits for a worker to leave cleanly before
// the orchestrator force-kills the container.
const StopGrace = 15 * time.Second

// retryStore runs a store call under the transient-failure policy: three
// attempts with capped exponential backoff for Unavailable, immediate
// return for business-rule rejections.
func retryStore(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.DoIf(ctx, retry.DefaultConfig(), 3, store.IsUnavailable, fn)
}

// Coordinator drives a Meeting from admission through worker teardown.
type Coordinator struct {
	store        *store.Store
	admission    *admission.Controller
	orchestrator orchestrator.Orchestrator
	bus          bus.Bus
	instanceID   string
	botImage     string
	startTimeout time.Duration
}

// New builds a Coordinator. instanceID identifies this BLM process for
// owner_instance_id bookkeeping.
func New(st *store.Store, adm *admission.Controller, orch orchestrator.Orchestrator, cmdBus bus.Bus, instanceID, botImage string, startTimeout time.Duration) *Coordinator {
	return &Coordinator{
		store:        st,
		admission:    adm,
		orchestrator: orch,
		bus:          cmdBus,
		instanceID:   instanceID,
		botImage:     botImage,
		startTimeout: startTimeout,
	}
}

// StartBot admits req, provisions a worker container, and starts it. On any
// failure after admission, it runs compensating logic: advance the Meeting
// to failed and best-effort stop any container that was created.
func (c *Coordinator) StartBot(ctx context.Context, req admission.Request, callbackBaseURL string) (*models.Meeting, error) {
	ctx, cancel := context.WithTimeout(ctx, c.startTimeout)
	defer cancel()

	meeting, err := c.admission.Admit(ctx, req)
	if err != nil {
		return nil, err
	}
	log := slog.With("meeting_id", meeting.MeetingID, "session_uid", meeting.SessionUID)
	log.Info("bot admitted", "step", "admit")

	containerID, err := c.orchestrator.Create(ctx, orchestrator.Spec{
		Image:           c.botImage,
		SessionUID:      meeting.SessionUID,
		MeetingID:       meeting.MeetingID,
		CallbackBaseURL: callbackBaseURL,
		Platform:        string(meeting.Platform),
		NativeMeetingID: meeting.NativeMeetingID,
		MeetingURL:      meeting.MeetingURL,
	})
	if err != nil {
		log.Error("container create failed", "step", "create", "error", err)
		c.fail(ctx, meeting.MeetingID, "container create failed: "+err.Error())
		return nil, fmt.Errorf("%w: create worker container: %v", ErrOrchestratorFailed, err)
	}
	log.Info("container created", "step", "create", "container_id", containerID)

	err = retryStore(ctx, func(ctx context.Context) error {
		return c.store.SetContainer(ctx, meeting.MeetingID, containerID, c.instanceID)
	})
	if err != nil {
		log.Error("set container failed", "step", "set_container", "error", err)
		c.compensateContainer(ctx, containerID)
		c.fail(ctx, meeting.MeetingID, "set container failed: "+err.Error())
		return nil, fmt.Errorf("record container assignment: %w", err)
	}

	if err := c.orchestrator.Start(ctx, containerID); err != nil {
		log.Error("container start failed", "step", "start", "error", err)
		c.compensateContainer(ctx, containerID)
		c.fail(ctx, meeting.MeetingID, "container start failed: "+err.Error())
		return nil, fmt.Errorf("%w: start worker container: %v", ErrOrchestratorFailed, err)
	}
	log.Info("container started", "step", "start")

	return c.readMeeting(ctx, meeting.MeetingID)
}

// readMeeting is Read under the transient-failure retry policy.
func (c *Coordinator) readMeeting(ctx context.Context, meetingID string) (*models.Meeting, error) {
	var m *models.Meeting
	err := retryStore(ctx, func(ctx context.Context) error {
		var readErr error
		m, readErr = c.store.Read(ctx, meetingID)
		return readErr
	})
	return m, err
}

// StopBot asks a running worker to leave via the Command Bus. It never
// writes status itself: the worker's own "status" callback reports
// active -> stopping, and Exited or the reaper eventually reaches a
// terminal state. Calling StopBot on an already-terminal Meeting is an
// idempotent no-op.
func (c *Coordinator) StopBot(ctx context.Context, meetingID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.startTimeout)
	defer cancel()

	meeting, err := c.readMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if meeting.Status.Terminal() {
		return nil
	}

	// A failed publish sent nothing, so retrying cannot double-deliver.
	err = retry.Do(ctx, retry.DefaultConfig(), 3, func(ctx context.Context) error {
		return c.bus.Publish(ctx, meeting.SessionUID, bus.NewLeaveCommand())
	})
	if err != nil {
		slog.Warn("leave command publish failed, relying on reaper", "meeting_id", meetingID, "error", err)
	}
	return nil
}

// ReconfigureBot publishes a Reconfigure command and stashes the requested
// change as pending_config, folded in by the worker's next callback.
func (c *Coordinator) ReconfigureBot(ctx context.Context, meetingID string, language, task *string) error {
	meeting, err := c.readMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if meeting.Status != models.StatusStarting && meeting.Status != models.StatusActive {
		return ErrIllegalState
	}

	cfg := meeting.Config
	if language != nil {
		cfg.Language = language
	}
	if task != nil {
		cfg.Task = models.Task(*task)
	}
	err = retryStore(ctx, func(ctx context.Context) error {
		return c.store.SetPendingConfig(ctx, meetingID, cfg)
	})
	if err != nil {
		return err
	}

	return retry.Do(ctx, retry.DefaultConfig(), 3, func(ctx context.Context) error {
		return c.bus.Publish(ctx, meeting.SessionUID, bus.NewReconfigureCommand(language, task))
	})
}

// GetMeeting reads a single Meeting by id.
func (c *Coordinator) GetMeeting(ctx context.Context, meetingID string) (*models.Meeting, error) {
	return c.readMeeting(ctx, meetingID)
}

// ListBotsForUser lists every Meeting belonging to userID.
func (c *Coordinator) ListBotsForUser(ctx context.Context, userID string) ([]*models.Meeting, error) {
	return c.store.List(ctx, userID)
}

// GetActiveCount reports how many non-terminal meetings userID currently has.
func (c *Coordinator) GetActiveCount(ctx context.Context, userID string) (int, error) {
	return c.store.ActiveCount(ctx, userID)
}

// fail is the coordinator's one narrow exception to the rule that only
// worker callbacks and the reaper write status: a provisioning failure is
// compensated with reserved -> failed directly at the call site, since the
// Meeting never left reserved. It must never be reached once a worker could
// plausibly have started, so the from-set is exactly {reserved}.
func (c *Coordinator) fail(ctx context.Context, meetingID, reason string) {
	from := []models.Status{models.StatusReserved}
	now := time.Now()
	opts := store.AdvanceOptions{EndTime: &now, FailureReason: reason}
	err := retryStore(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return c.store.AdvanceStatus(ctx, meetingID, from, models.StatusFailed, opts)
	})
	if err != nil {
		slog.Error("compensating fail transition did not apply", "meeting_id", meetingID, "error", err)
	}
}

func (c *Coordinator) compensateContainer(ctx context.Context, containerID string) {
	if err := c.orchestrator.Stop(context.WithoutCancel(ctx), containerID, StopGrace); err != nil {
		slog.Error("compensating container stop failed", "container_id", containerID, "error", err)
	}
}
