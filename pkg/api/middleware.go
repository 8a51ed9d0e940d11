package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// securityHeaders sets standard security response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// requestLogger writes one line per request (method, path, status, and
// latency) to gin's default writer once the handler chain completes.
func requestLogger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		return p.TimeStamp.Format("2006-01-02T15:04:05Z07:00") + " " +
			p.Method + " " + p.Path + " " + http.StatusText(p.StatusCode) + " " + p.Latency.String() + "\n"
	})
}

// rateLimit throttles every request to the /bots routes (start, stop, and
// reconfigure) through one shared limiter.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.botLimiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// contextMeetingID is the gin context key callbackAuth stashes the
// session_uid-derived meeting_id under for downstream handlers.
const contextMeetingID = "blm.meeting_id"

// callbackAuth resolves the session_uid presented in the callback body to a
// meeting_id before the handler runs, rejecting unknown tokens with 401
//. Binding here peeks the body without consuming it,
// so the handler can still bind its full, endpoint-specific request struct.
func (s *Server) callbackAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var env callbackEnvelope
		if err := c.ShouldBindBodyWith(&env, binding.JSON); err != nil || env.SessionUID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "session_uid is required"})
			return
		}

		meetingID, err := s.callbacks.AuthorizeSessionUID(c.Request.Context(), env.SessionUID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(contextMeetingID, meetingID)
		c.Next()
	}
}

// meetingIDFromContext returns the meeting_id callbackAuth resolved for the
// current request.
func meetingIDFromContext(c *gin.Context) string {
	v, _ := c.Get(contextMeetingID)
	id, _ := v.(string)
	return id
}
