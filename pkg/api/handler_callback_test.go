package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/botlifecycle/pkg/models"
)

func TestCallbackLifecycleEndToEnd(t *testing.T) {
	s, st := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/bots", map[string]any{
		"user_id":           "user-e2e",
		"platform":          "zoom",
		"native_meeting_id": "e2e",
		"meeting_url":       "https://zoom.us/j/e2e",
		"bot_name":          "Rec",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	meeting, err := st.List(t.Context(), "user-e2e")
	require.NoError(t, err)
	require.Len(t, meeting, 1)
	sessionUID := meeting[0].SessionUID
	require.NotNil(t, meeting[0].BotContainerID)

	rec = doJSON(t, s, http.MethodPost, "/callback/started", map[string]any{"session_uid": sessionUID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/callback/joined", map[string]any{"session_uid": sessionUID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/callback/heartbeat", map[string]any{"session_uid": sessionUID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPatch, "/callback/status", map[string]any{"session_uid": sessionUID, "status": "stopping"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/callback/exited", map[string]any{"session_uid": sessionUID, "exit_code": 0})
	assert.Equal(t, http.StatusOK, rec.Code)

	updated, err := st.Read(t.Context(), meeting[0].MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
}

func TestCallbackWithUnknownSessionUIDReturns401(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/callback/heartbeat", map[string]any{"session_uid": "not-a-real-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
