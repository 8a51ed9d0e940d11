// Package api provides the HTTP surface for the Bot Lifecycle Manager: the
// external REST API and the internal worker callback ingress,
// both served from one gin.Engine.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/codeready-toolchain/botlifecycle/pkg/callback"
	"github.com/codeready-toolchain/botlifecycle/pkg/lifecycle"
	"github.com/codeready-toolchain/botlifecycle/pkg/reaper"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
	"github.com/codeready-toolchain/botlifecycle/pkg/version"
)

// Server is the BLM's HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	store           *store.Store
	coord           *lifecycle.Coordinator
	callbacks       *callback.Service
	reaper          *reaper.Reaper
	orchKind        string
	callbackBaseURL string
	botLimiter      *rate.Limiter
}

// NewServer builds a Server wiring coord and callbacks into a fresh
// gin.Engine: dependencies in, routes registered, ready to Start.
func NewServer(st *store.Store, coord *lifecycle.Coordinator, callbacks *callback.Service, rpr *reaper.Reaper, orchKind, callbackBaseURL string) *Server {
	e := gin.New()
	e.Use(gin.Recovery())

	s := &Server{
		engine:          e,
		store:           st,
		coord:           coord,
		callbacks:       callbacks,
		reaper:          rpr,
		orchKind:        orchKind,
		callbackBaseURL: callbackBaseURL,
		// One /bots request per second, bursting to 5.
		botLimiter: rate.NewLimiter(rate.Limit(1), 5),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.Use(securityHeaders())
	s.engine.Use(requestLogger())

	s.engine.GET("/health", s.healthHandler)

	bots := s.engine.Group("/bots")
	bots.Use(s.rateLimit())
	bots.POST("", s.startBotHandler)
	bots.DELETE("/:platform/:native_meeting_id", s.stopBotHandler)
	bots.PATCH("/:platform/:native_meeting_id/config", s.reconfigureBotHandler)

	s.engine.GET("/meetings", s.listMeetingsHandler)
	s.engine.GET("/meetings/:id", s.getMeetingHandler)

	cb := s.engine.Group("/callback")
	cb.Use(s.callbackAuth())
	cb.POST("/started", s.startedHandler)
	cb.POST("/joined", s.joinedHandler)
	cb.POST("/heartbeat", s.heartbeatHandler)
	cb.POST("/exited", s.exitedHandler)
	cb.PATCH("/status", s.statusHandler)
}

// Engine exposes the underlying router, e.g. for metrics registration by
// the entrypoint (GET /metrics via promhttp.Handler()).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the HTTP server on addr, blocking until it stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// StartWithListener runs the HTTP server on a pre-created listener, used by
// tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests before closing, honoring
// ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	storeHealth, err := s.store.Health(reqCtx)
	status := "healthy"
	code := http.StatusOK
	if err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	resp := &HealthResponse{
		Status:       status,
		Version:      version.Full(),
		Orchestrator: s.orchKind,
		Store: StoreHealth{
			Reachable: storeHealth.Reachable,
			OpenConns: storeHealth.OpenConns,
			InUse:     storeHealth.InUse,
			Idle:      storeHealth.Idle,
		},
	}
	if s.reaper != nil {
		stats := s.reaper.Health()
		resp.Reaper = ReaperHealth{LastScan: stats.LastScan, MeetingsRecovered: stats.MeetingsRecovered}
	}
	c.JSON(code, resp)
}
