package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listMeetingsHandler handles GET /meetings?user_id=...&filter=...: a
// read-only projection of a user's Meetings, optionally restricted to one
// status value via filter.
func (s *Server) listMeetingsHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}
	filter := c.Query("filter")

	meetings, err := s.coord.ListBotsForUser(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	out := make([]*MeetingResponse, 0, len(meetings))
	for _, m := range meetings {
		if filter != "" && string(m.Status) != filter {
			continue
		}
		out = append(out, toMeetingResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

// getMeetingHandler handles GET /meetings/{id}.
func (s *Server) getMeetingHandler(c *gin.Context) {
	meeting, err := s.coord.GetMeeting(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMeetingResponse(meeting))
}
