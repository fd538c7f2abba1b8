// Package web provides an HTTP status server for the garage-opener daemon.
package web

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sweeney/garage-opener/internal/status"
)

// Trigger accepts remote button presses.
type Trigger interface {
	// RequestTrigger returns false while a previous request is still pending.
	RequestTrigger() bool
}

// Options configures the trigger endpoint.
type Options struct {
	TriggerRate  rate.Limit
	TriggerBurst int
}

// Server serves the status page and the trigger endpoint over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	trigger    Trigger
}

// New creates a Server that reads state from the given tracker. A nil
// trigger disables POST /api/trigger.
func New(addr string, tracker *status.Tracker, trigger Trigger, opts Options) *Server {
	s := &Server{tracker: tracker, trigger: trigger}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleIndex)
	r.GET("/index.html", s.handleIndex)
	r.GET("/index.json", s.handleJSON)

	api := r.Group("/api")
	{
		limiter := NewClientLimiter(opts.TriggerRate, opts.TriggerBurst)
		api.POST("/trigger", RateLimit(limiter), s.handleTrigger)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderHTML(c.Writer, snap, s.trigger != nil); err != nil {
		log.Printf("http: render index: %v", err)
	}
}

func (s *Server) handleJSON(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Data(http.StatusOK, "application/json", status.FormatJSON(snap))
}

func (s *Server) handleTrigger(c *gin.Context) {
	if s.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trigger disabled"})
		return
	}
	if !s.trigger.RequestTrigger() {
		c.JSON(http.StatusConflict, gin.H{"error": "trigger pending"})
		return
	}
	log.Printf("http: remote trigger from %s", c.ClientIP())
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
