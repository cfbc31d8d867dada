// Package api exposes missions, session logs and artifacts over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dyluth/warren/internal/mission"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DefaultContextLimit is used by the context endpoint when no limit is given.
const DefaultContextLimit = 10

// Pinger reports store health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	// Health is optional. When nil, /healthz always answers ok.
	Health Pinger
	Logger logrus.FieldLogger
}

// Server serves the HTTP API on top of a mission Hub.
type Server struct {
	hub    *mission.Hub
	health Pinger
	logger logrus.FieldLogger
	engine *gin.Engine
}

// MissionRequest is the body of POST /v1/sessions/:session/missions.
type MissionRequest struct {
	Objective string `json:"objective" binding:"required"`
}

// MissionResponse reports a finished mission.
type MissionResponse struct {
	MissionID  string `json:"mission_id"`
	SessionID  string `json:"session_id"`
	Result     string `json:"result"`
	Hops       int    `json:"hops"`
	DurationMs int64  `json:"duration_ms"`
}

// ErrorResponse is returned for every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
	Error  string `json:"error,omitempty"`
}

// New builds the router. Call gin.SetMode before New to pick the gin mode.
func New(hub *mission.Hub, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		hub:    hub,
		health: opts.Health,
		logger: logger.WithField("component", "api"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", s.healthz)

	sessions := r.Group("/v1/sessions/:session", validSession)
	sessions.POST("/missions", s.runMission)
	sessions.GET("/entries", s.listEntries)
	sessions.GET("/context", s.recentContext)
	sessions.GET("/artifacts/:key", s.getArtifact)
	sessions.PUT("/artifacts/:key", s.putArtifact)

	s.engine = r
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP API stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("Request handled")
	}
}

func validSession(c *gin.Context) {
	if err := blackboard.ValidateSessionID(c.Param("session")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.Next()
}

func (s *Server) healthz(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.health.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Store:  "disconnected",
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Store: "connected"})
}

func (s *Server) runMission(c *gin.Context) {
	var req MissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	out, err := s.hub.Run(c.Request.Context(), c.Param("session"), req.Objective)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, MissionResponse{
		MissionID:  out.MissionID,
		SessionID:  out.SessionID,
		Result:     out.Result,
		Hops:       out.Hops,
		DurationMs: out.Duration.Milliseconds(),
	})
}

func (s *Server) listEntries(c *gin.Context) {
	limit, ok := queryLimit(c, 0)
	if !ok {
		return
	}
	board, ok := s.board(c)
	if !ok {
		return
	}

	entries := board.Entries()
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) recentContext(c *gin.Context) {
	limit, ok := queryLimit(c, DefaultContextLimit)
	if !ok {
		return
	}
	board, ok := s.board(c)
	if !ok {
		return
	}
	c.String(http.StatusOK, board.RecentContext(limit))
}

func (s *Server) getArtifact(c *gin.Context) {
	board, ok := s.board(c)
	if !ok {
		return
	}

	key := c.Param("key")
	raw, found := board.GetArtifact(key)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("artifact %q not found", key)})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (s *Server) putArtifact(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "artifact value must be valid JSON"})
		return
	}

	if err := s.hub.SetArtifact(c.Request.Context(), c.Param("session"), c.Param("key"), json.RawMessage(body)); err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) board(c *gin.Context) (*blackboard.Blackboard, bool) {
	board, err := s.hub.Board(c.Request.Context(), c.Param("session"))
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return nil, false
	}
	return board, true
}

// statusFor maps a Hub error to a status: 503 when the request context ended
// first, 500 otherwise.
func statusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// queryLimit parses ?limit=N. Missing means def; negative or malformed is a
// 400.
func queryLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid limit %q", raw)})
		return 0, false
	}
	return n, true
}
