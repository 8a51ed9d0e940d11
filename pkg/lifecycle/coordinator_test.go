package lifecycle_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/botlifecycle/pkg/admission"
	"github.com/codeready-toolchain/botlifecycle/pkg/bus"
	"github.com/codeready-toolchain/botlifecycle/pkg/lifecycle"
	"github.com/codeready-toolchain/botlifecycle/pkg/models"
	"github.com/codeready-toolchain/botlifecycle/pkg/orchestrator"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
	"github.com/codeready-toolchain/botlifecycle/test/util"
)

// fakeOrchestrator is an in-memory Orchestrator used to exercise the
// Coordinator's wiring without a real container runtime.
type fakeOrchestrator struct {
	mu         sync.Mutex
	nextID     int
	running    map[string]bool
	failCreate bool
	failStart  bool
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{running: make(map[string]bool)}
}

func (f *fakeOrchestrator) Create(ctx context.Context, spec orchestrator.Spec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", assert.AnError
	}
	f.nextID++
	id := spec.SessionUID
	f.running[id] = false
	return id, nil
}

func (f *fakeOrchestrator) Start(ctx context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStart {
		return assert.AnError
	}
	f.running[containerID] = true
	return nil
}

func (f *fakeOrchestrator) Stop(ctx context.Context, containerID string, grace time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[containerID] = false
	return nil
}

func (f *fakeOrchestrator) Inspect(ctx context.Context, containerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[containerID], nil
}

func (f *fakeOrchestrator) WaitExit(ctx context.Context, containerID string) (orchestrator.ExitResult, error) {
	return orchestrator.ExitResult{}, nil
}

func TestStartBotProvisionsAndActivatesContainer(t *testing.T) {
	st, db := util.SetupTestStore(t)
	adm := admission.New(st, nil)
	orch := newFakeOrchestrator()
	cmdBus := bus.NewPostgresBus(db)
	coord := lifecycle.New(st, adm, orch, cmdBus, "instance-1", "bot-worker:latest", 30*time.Second)

	cfg, err := json.Marshal(map[string]string{"bot_name": "Notetaker"})
	require.NoError(t, err)

	meeting, err := coord.StartBot(t.Context(), admission.Request{
		UserID:          "user-1",
		Platform:        "zoom",
		NativeMeetingID: "123456",
		MeetingURL:      "https://zoom.us/j/123456",
		RequestID:       "req-1",
		Config:          cfg,
	}, "https://blm.internal")
	require.NoError(t, err)
	// Status stays reserved: only the worker's own "started" callback
	// advances it past reserved.
	assert.Equal(t, models.StatusReserved, meeting.Status)
	require.NotNil(t, meeting.BotContainerID)

	running, err := orch.Inspect(t.Context(), *meeting.BotContainerID)
	require.NoError(t, err)
	assert.True(t, running)
}

func TestStartBotCompensatesOnStartFailure(t *testing.T) {
	st, db := util.SetupTestStore(t)
	adm := admission.New(st, nil)
	orch := newFakeOrchestrator()
	orch.failStart = true
	cmdBus := bus.NewPostgresBus(db)
	coord := lifecycle.New(st, adm, orch, cmdBus, "instance-1", "bot-worker:latest", 30*time.Second)

	_, err := coord.StartBot(t.Context(), admission.Request{
		UserID:          "user-2",
		Platform:        "zoom",
		NativeMeetingID: "654321",
		MeetingURL:      "https://zoom.us/j/654321",
		RequestID:       "req-2",
	}, "https://blm.internal")
	require.Error(t, err)

	meetings, err := coord.ListBotsForUser(t.Context(), "user-2")
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, models.StatusFailed, meetings[0].Status)
}

func TestStopBotPublishesLeaveWithoutWritingStatus(t *testing.T) {
	st, db := util.SetupTestStore(t)
	adm := admission.New(st, nil)
	orch := newFakeOrchestrator()
	cmdBus := bus.NewPostgresBus(db)
	coord := lifecycle.New(st, adm, orch, cmdBus, "instance-1", "bot-worker:latest", 30*time.Second)

	meeting, err := coord.StartBot(t.Context(), admission.Request{
		UserID:          "user-3",
		Platform:        "zoom",
		NativeMeetingID: "111",
		MeetingURL:      "https://zoom.us/j/111",
		RequestID:       "req-3",
	}, "https://blm.internal")
	require.NoError(t, err)

	require.NoError(t, coord.StopBot(t.Context(), meeting.MeetingID))

	// StopBot never advances status itself: the Meeting is still
	// wherever it was (reserved, since no worker callback arrived here).
	updated, err := coord.GetMeeting(t.Context(), meeting.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, updated.Status)
}

func TestStopBotOnTerminalMeetingIsIdempotent(t *testing.T) {
	st, db := util.SetupTestStore(t)
	adm := admission.New(st, nil)
	orch := newFakeOrchestrator()
	cmdBus := bus.NewPostgresBus(db)
	coord := lifecycle.New(st, adm, orch, cmdBus, "instance-1", "bot-worker:latest", 30*time.Second)

	meeting, err := coord.StartBot(t.Context(), admission.Request{
		UserID:          "user-4",
		Platform:        "zoom",
		NativeMeetingID: "222",
		MeetingURL:      "https://zoom.us/j/222",
		RequestID:       "req-4",
	}, "https://blm.internal")
	require.NoError(t, err)

	require.NoError(t, st.AdvanceStatus(t.Context(), meeting.MeetingID,
		[]models.Status{models.StatusReserved}, models.StatusStarting, store.AdvanceOptions{}))
	require.NoError(t, st.AdvanceStatus(t.Context(), meeting.MeetingID,
		[]models.Status{models.StatusStarting}, models.StatusActive, store.AdvanceOptions{}))
	require.NoError(t, st.AdvanceStatus(t.Context(), meeting.MeetingID,
		[]models.Status{models.StatusActive}, models.StatusCompleted, store.AdvanceOptions{}))

	require.NoError(t, coord.StopBot(t.Context(), meeting.MeetingID))

	updated, err := coord.GetMeeting(t.Context(), meeting.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
}
