// Package server exposes the decision engine over HTTP: POST /check for
// decisions, GET /health for liveness, GET/PUT /keywords for blocklist
// management, and POST /config/reload for hot reconfiguration.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/crimson-sun/warden/internal/audit"
	"github.com/crimson-sun/warden/internal/config"
	"github.com/crimson-sun/warden/internal/engine"
	"github.com/crimson-sun/warden/internal/engine/screen"
	"github.com/crimson-sun/warden/internal/model"
	"github.com/crimson-sun/warden/internal/server/ratelimit"
)

const shutdownGrace = 10 * time.Second

// checkPayload is the request body of POST /check.
type checkPayload struct {
	Text     string            `json:"text"`
	Client   string            `json:"client"`
	Metadata map[string]string `json:"metadata"`
}

// Option configures a Server.
type Option func(*Server)

// WithReloader installs the function invoked by POST /config/reload to
// produce a fresh configuration.
func WithReloader(f func() (config.Config, error)) Option {
	return func(s *Server) { s.reload = f }
}

// Server wires the engine, audit recorder, and rate limiter behind a gin
// router.
type Server struct {
	eng     *engine.Engine
	rec     *audit.Recorder
	limiter *ratelimit.Limiter
	reload  func() (config.Config, error)
	http    *http.Server
	started time.Time
}

// New creates a Server listening on addr.
func New(addr string, eng *engine.Engine, rec *audit.Recorder, limiter *ratelimit.Limiter, opts ...Option) *Server {
	s := &Server{
		eng:     eng,
		rec:     rec,
		limiter: limiter,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/check", s.handleCheck)
	router.GET("/health", s.handleHealth)
	router.GET("/keywords", s.handleGetKeywords)
	router.PUT("/keywords", s.handlePutKeywords)
	router.POST("/config/reload", s.handleReload)

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleCheck(c *gin.Context) {
	requestID := uuid.NewString()

	if !s.limiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "rate limit exceeded",
			"request_id": requestID,
		})
		return
	}

	var payload checkPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "request body must be JSON with a 'text' field",
			"request_id": requestID,
		})
		return
	}

	client := payload.Client
	if client == "" {
		client = c.ClientIP()
	}
	req := model.CheckRequest{
		ID:       requestID,
		Text:     payload.Text,
		Client:   client,
		Metadata: payload.Metadata,
		Received: time.Now(),
	}

	decision, err := s.eng.Check(c.Request.Context(), req)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      verr.Reason,
				"request_id": requestID,
			})
			return
		}
		slog.Error("check failed", "request_id", requestID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "internal server error",
			"request_id": requestID,
		})
		return
	}

	if s.rec != nil {
		if err := s.rec.Record(c.Request.Context(), req, decision); err != nil {
			// Audit trouble never fails the caller's request.
			slog.Warn("audit record failed", "request_id", requestID, "error", err)
		}
	}

	c.JSON(http.StatusOK, decision)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"classifiers":    s.eng.ClassifierCount(),
		"screen_enabled": s.eng.ScreenEnabled(),
		"uptime_s":       int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleGetKeywords(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Blocklist())
}

func (s *Server) handlePutKeywords(c *gin.Context) {
	var bl screen.Blocklist
	if err := c.ShouldBindJSON(&bl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with 'keywords' and 'regex_patterns' lists"})
		return
	}

	if err := s.eng.UpdateBlocklist(bl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slog.Info("blocklist updated", "keywords", len(bl.Keywords), "patterns", len(bl.Patterns))
	c.JSON(http.StatusOK, gin.H{
		"message":              "blocklist updated",
		"keywords_count":       len(bl.Keywords),
		"regex_patterns_count": len(bl.Patterns),
	})
}

func (s *Server) handleReload(c *gin.Context) {
	if s.reload == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reload not configured"})
		return
	}

	cfg, err := s.reload()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.eng.Reload(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "configuration reloaded",
		"classifiers": s.eng.ClassifierCount(),
	})
}
