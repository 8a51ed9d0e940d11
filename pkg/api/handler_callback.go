// handler_callback.go implements the internal endpoints workers call over
// their lifetime. Every handler runs behind callbackAuth, which
// has already resolved the request's session_uid to a meeting_id.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) startedHandler(c *gin.Context) {
	var req startedCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meetingID := meetingIDFromContext(c)
	if err := s.callbacks.Started(c.Request.Context(), meetingID, req.SessionUID, time.Now()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) joinedHandler(c *gin.Context) {
	var req joinedCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meetingID := meetingIDFromContext(c)
	if err := s.callbacks.Joined(c.Request.Context(), meetingID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) heartbeatHandler(c *gin.Context) {
	var req heartbeatCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meetingID := meetingIDFromContext(c)
	if err := s.callbacks.Heartbeat(c.Request.Context(), meetingID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) statusHandler(c *gin.Context) {
	var req statusCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meetingID := meetingIDFromContext(c)
	if err := s.callbacks.Status(c.Request.Context(), meetingID, req.Status); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) exitedHandler(c *gin.Context) {
	var req exitedCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meetingID := meetingIDFromContext(c)
	clean := req.ExitCode == 0
	if err := s.callbacks.Exited(c.Request.Context(), meetingID, clean, req.Reason); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
