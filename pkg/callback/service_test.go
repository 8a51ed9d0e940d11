package callback_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/botlifecycle/pkg/callback"
	"github.com/codeready-toolchain/botlifecycle/pkg/models"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
	"github.com/codeready-toolchain/botlifecycle/test/util"
)

func reserveAndAssignContainer(t *testing.T, st *store.Store, userID string) *models.Meeting {
	t.Helper()
	m, err := st.Reserve(t.Context(), store.ReserveInput{
		UserID:          userID,
		Platform:        models.PlatformZoom,
		NativeMeetingID: "123",
		MeetingURL:      "https://zoom.us/j/123",
		Config:          models.BotConfig{Task: models.TaskTranscribe, BotName: "Bot"},
		RequestID:       "req-1",
	})
	require.NoError(t, err)
	require.NoError(t, st.SetContainer(t.Context(), m.MeetingID, "container-1", "instance-1"))
	return m
}

// reserveAndStart takes a fresh reservation all the way through the worker's
// "started" callback, landing the Meeting in starting with its
// MeetingSession recorded.
func reserveAndStart(t *testing.T, st *store.Store, svc *callback.Service, userID string) *models.Meeting {
	t.Helper()
	m := reserveAndAssignContainer(t, st, userID)
	require.NoError(t, svc.Started(t.Context(), m.MeetingID, m.SessionUID, time.Now()))
	updated, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	return updated
}

func TestStartedTransitionsToStartingAndIsIdempotent(t *testing.T) {
	st, _ := util.SetupTestStore(t)
	svc := callback.New(st)
	m := reserveAndAssignContainer(t, st, "user-0")

	require.NoError(t, svc.Started(t.Context(), m.MeetingID, m.SessionUID, time.Now()))
	updated, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarting, updated.Status)
	require.NotNil(t, updated.StartTime)

	// A repeat "started" callback (worker retried after a network hiccup)
	// is a no-op, not an error.
	require.NoError(t, svc.Started(t.Context(), m.MeetingID, m.SessionUID, time.Now()))
}

func TestJoinedTransitionsToActiveAndIsIdempotent(t *testing.T) {
	st, _ := util.SetupTestStore(t)
	svc := callback.New(st)
	m := reserveAndStart(t, st, svc, "user-1")

	require.NoError(t, svc.Joined(t.Context(), m.MeetingID))
	updated, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, updated.Status)

	// A repeat "joined" callback is a no-op, not an error.
	require.NoError(t, svc.Joined(t.Context(), m.MeetingID))
}

func TestStatusAcceptsActiveToStoppingOnly(t *testing.T) {
	st, _ := util.SetupTestStore(t)
	svc := callback.New(st)
	m := reserveAndStart(t, st, svc, "user-5")
	require.NoError(t, svc.Joined(t.Context(), m.MeetingID))

	require.NoError(t, svc.Status(t.Context(), m.MeetingID, "stopping"))
	updated, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopping, updated.Status)

	err = svc.Status(t.Context(), m.MeetingID, "completed")
	require.ErrorIs(t, err, callback.ErrIllegalStatus)
}

func TestExitedCleanMarksCompleted(t *testing.T) {
	st, _ := util.SetupTestStore(t)
	svc := callback.New(st)
	m := reserveAndStart(t, st, svc, "user-2")
	require.NoError(t, svc.Joined(t.Context(), m.MeetingID))

	require.NoError(t, svc.Exited(t.Context(), m.MeetingID, true, ""))
	updated, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	require.NotNil(t, updated.EndTime)

	// Duplicate exited callback leaves the row unchanged.
	require.NoError(t, svc.Exited(t.Context(), m.MeetingID, false, "should not apply"))
	again, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, again.Status)
	assert.Nil(t, again.FailureReason)
}

func TestExitedCleanBeforeJoiningMarksFailed(t *testing.T) {
	st, _ := util.SetupTestStore(t)
	svc := callback.New(st)
	m := reserveAndStart(t, st, svc, "user-early")

	// A zero exit code before the worker ever joined cannot count as a
	// completed attempt.
	require.NoError(t, svc.Exited(t.Context(), m.MeetingID, true, ""))
	updated, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, updated.Status)
	require.NotNil(t, updated.FailureReason)
	assert.Equal(t, "exited before joining", *updated.FailureReason)
}

func TestExitedUncleanMarksFailedWithReason(t *testing.T) {
	st, _ := util.SetupTestStore(t)
	svc := callback.New(st)
	m := reserveAndStart(t, st, svc, "user-3")

	require.NoError(t, svc.Exited(t.Context(), m.MeetingID, false, "platform kicked bot"))
	updated, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, updated.Status)
	require.NotNil(t, updated.FailureReason)
	assert.Equal(t, "platform kicked bot", *updated.FailureReason)
	require.NotNil(t, updated.EndTime)
}

func TestAuthorizeSessionUIDRejectsUnknownToken(t *testing.T) {
	st, _ := util.SetupTestStore(t)
	svc := callback.New(st)

	_, err := svc.AuthorizeSessionUID(t.Context(), "not-a-real-token")
	require.ErrorIs(t, err, callback.ErrUnauthorized)
}

func TestHeartbeatRefreshesLastHeartbeat(t *testing.T) {
	st, _ := util.SetupTestStore(t)
	svc := callback.New(st)
	m := reserveAndStart(t, st, svc, "user-4")

	require.NoError(t, svc.Heartbeat(t.Context(), m.MeetingID))
	updated, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastHeartbeatAt)
}
