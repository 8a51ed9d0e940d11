package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/botlifecycle/pkg/admission"
)

// startBotHandler handles POST /bots -> start_bot.
func (s *Server) startBotHandler(c *gin.Context) {
	var req StartBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := req.toAdmissionConfig()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config"})
		return
	}

	meeting, err := s.coord.StartBot(c.Request.Context(), admission.Request{
		UserID:          req.UserID,
		Platform:        req.Platform,
		NativeMeetingID: req.NativeMeetingID,
		MeetingURL:      req.MeetingURL,
		RequestID:       req.RequestID,
		Config:          cfg,
	}, s.callbackBase(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMeetingResponse(meeting))
}

// stopBotHandler handles DELETE /bots/{platform}/{native_meeting_id} -> stop_bot.
func (s *Server) stopBotHandler(c *gin.Context) {
	meetingID, ok := s.lookupNonTerminalMeeting(c)
	if !ok {
		return
	}

	if err := s.coord.StopBot(c.Request.Context(), meetingID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// reconfigureBotHandler handles PATCH /bots/{platform}/{native_meeting_id}/config -> reconfigure_bot.
func (s *Server) reconfigureBotHandler(c *gin.Context) {
	var req ReconfigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meetingID, ok := s.lookupNonTerminalMeeting(c)
	if !ok {
		return
	}

	if err := s.coord.ReconfigureBot(c.Request.Context(), meetingID, req.Language, req.Task); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// lookupNonTerminalMeeting resolves the {platform}/{native_meeting_id} path
// params used by the bot-scoped routes to the single non-terminal Meeting
// they identify, writing the error response itself and returning ok=false
// when none is found. The State Store Gateway has no direct
// "by platform+native id" lookup, so this scans the caller-supplied user's
// meetings; user_id travels as a query param on these routes.
func (s *Server) lookupNonTerminalMeeting(c *gin.Context) (meetingID string, ok bool) {
	userID := c.Query("user_id")
	platform := c.Param("platform")
	nativeMeetingID := c.Param("native_meeting_id")

	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return "", false
	}

	meetings, err := s.coord.ListBotsForUser(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return "", false
	}

	for _, m := range meetings {
		if string(m.Platform) == platform && m.NativeMeetingID == nativeMeetingID && !m.Status.Terminal() {
			return m.MeetingID, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "no non-terminal meeting found"})
	return "", false
}

// callbackBase prefers the configured CALLBACK_BASE_URL; deriving from the
// inbound request host is a dev-mode fallback only, since the address a
// client dialed is not necessarily one a worker container can reach.
func (s *Server) callbackBase(c *gin.Context) string {
	if s.callbackBaseURL != "" {
		return s.callbackBaseURL
	}
	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host
}
