package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopBotAcceptsReservedMeeting(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/bots", map[string]any{
		"user_id":           "user-stop",
		"platform":          "zoom",
		"native_meeting_id": "stop-1",
		"meeting_url":       "https://zoom.us/j/stop-1",
		"bot_name":          "Rec",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/bots/zoom/stop-1?user_id=user-stop", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestStopBotUnknownMeetingReturns404(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodDelete, "/bots/zoom/does-not-exist?user_id=user-none", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMeetingsFiltersByStatus(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/bots", map[string]any{
		"user_id":           "user-list",
		"platform":          "zoom",
		"native_meeting_id": "list-1",
		"meeting_url":       "https://zoom.us/j/list-1",
		"bot_name":          "Rec",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/meetings?user_id=user-list&filter=reserved", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/meetings?user_id=user-list&filter=active", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", trimNewline(rec.Body.String()))
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
