package admission

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testController() *Controller {
	return New(nil, map[string][]string{
		"zoom": {"zoom.us", "*.zoom.us"},
	})
}

func TestAdmitRejectsUnknownPlatform(t *testing.T) {
	c := testController()
	_, err := c.Admit(t.Context(), Request{
		Platform:   "webex",
		MeetingURL: "https://zoom.us/j/123",
	})
	require.ErrorIs(t, err, ErrInvalidPlatform)
}

func TestAdmitRejectsDisallowedHost(t *testing.T) {
	c := testController()
	_, err := c.Admit(t.Context(), Request{
		UserID:     "u1",
		Platform:   "zoom",
		MeetingURL: "https://evil.example.com/j/123",
	})
	require.ErrorIs(t, err, ErrInvalidMeetingURL)
}

func TestValidateURLAllowsMissingMeetingURL(t *testing.T) {
	c := testController()
	require.NoError(t, c.validateURL("zoom", ""))
}

func TestAdmitAllowsWildcardSubdomain(t *testing.T) {
	c := testController()
	err := c.validateURL("zoom", "https://us02web.zoom.us/j/123")
	require.NoError(t, err)
}

func TestParseConfigRejectsUnknownField(t *testing.T) {
	c := testController()
	raw := json.RawMessage(`{"language": "en", "unexpected_field": true}`)
	_, err := c.parseConfig(raw)
	require.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestParseConfigDefaultsTaskAndBotName(t *testing.T) {
	c := testController()
	cfg, err := c.parseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "transcribe", string(cfg.Task))
	assert.Equal(t, "Bot", cfg.BotName)
}

func TestParseConfigRejectsOverlongBotName(t *testing.T) {
	c := testController()
	longName := ""
	for i := 0; i < 65; i++ {
		longName += "x"
	}
	raw, err := json.Marshal(map[string]string{"bot_name": longName})
	require.NoError(t, err)
	_, err = c.parseConfig(raw)
	require.ErrorIs(t, err, ErrInvalidBotName)
}

func TestValidBotName(t *testing.T) {
	assert.True(t, validBotName("Meeting Notetaker"))
	assert.False(t, validBotName(""))
}
