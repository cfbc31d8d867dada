// Package mission runs objectives against per-session agent teams.
//
// The Hub owns one Blackboard per session id. Missions on the same session
// are serialized; missions on different sessions run concurrently.
package mission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/warren/internal/agent"
	"github.com/dyluth/warren/internal/completion"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/gateway"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/sirupsen/logrus"
)

// Outcome describes a finished mission.
type Outcome struct {
	MissionID string
	SessionID string
	Result    string
	Hops      int
	Duration  time.Duration
}

// Options configures a Hub.
type Options struct {
	Config  *config.WarrenConfig
	Store   blackboard.Store
	LLM     completion.Service
	Gateway gateway.Invoker
	Logger  logrus.FieldLogger
}

// Hub routes missions to session teams.
type Hub struct {
	cfg     *config.WarrenConfig
	store   blackboard.Store
	llm     completion.Service
	gateway gateway.Invoker
	logger  logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the per-id state cached for the Hub lifetime. ready is closed
// once board and team are set or err is recorded.
type session struct {
	ready chan struct{}
	err   error

	board *blackboard.Blackboard
	team  *agent.Orchestrator

	// lock is a one-slot semaphore so acquisition can honour ctx.
	lock chan struct{}
}

// NewHub creates a Hub. Config, Store and LLM are required.
func NewHub(opts Options) (*Hub, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.LLM == nil {
		return nil, fmt.Errorf("completion service cannot be nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Hub{
		cfg:      opts.Config,
		store:    opts.Store,
		llm:      opts.LLM,
		gateway:  opts.Gateway,
		logger:   logger.WithField("component", "mission"),
		sessions: make(map[string]*session),
	}, nil
}

// Run executes one mission on sessionID. The error is non-nil only when the
// session cannot be opened or ctx ends while waiting for the session lock;
// every other failure is reported in Outcome.Result.
func (h *Hub) Run(ctx context.Context, sessionID, objective string) (Outcome, error) {
	s, err := h.acquire(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	defer s.release()

	m := s.team.Run(ctx, objective)

	h.logger.WithFields(logrus.Fields{
		"session":    sessionID,
		"mission_id": m.ID,
		"hops":       m.Hops,
		"duration":   m.Duration,
	}).Info("Mission finished")

	return Outcome{
		MissionID: m.ID,
		SessionID: sessionID,
		Result:    m.Result,
		Hops:      m.Hops,
		Duration:  m.Duration,
	}, nil
}

// Board returns the blackboard of sessionID, opening it if needed.
func (h *Hub) Board(ctx context.Context, sessionID string) (*blackboard.Blackboard, error) {
	s, err := h.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.board, nil
}

// SetArtifact stores value under key on sessionID. The write waits for any
// running mission on the session, so it never lands between that mission's
// blackboard writes.
func (h *Hub) SetArtifact(ctx context.Context, sessionID, key string, value any) error {
	s, err := h.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer s.release()

	return s.board.SetArtifact(ctx, key, value)
}

// Sessions lists the sessions known to the store, when it can enumerate them.
func (h *Hub) Sessions(ctx context.Context) ([]string, error) {
	lister, ok := h.store.(blackboard.Lister)
	if !ok {
		return nil, fmt.Errorf("store does not support listing sessions")
	}
	return lister.ListSessions(ctx)
}

// acquire opens sessionID and takes its mission lock.
func (h *Hub) acquire(ctx context.Context, sessionID string) (*session, error) {
	s, err := h.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	select {
	case s.lock <- struct{}{}:
		return s, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for session %s: %w", sessionID, ctx.Err())
	}
}

func (s *session) release() { <-s.lock }

func (h *Hub) session(ctx context.Context, sessionID string) (*session, error) {
	if err := blackboard.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if !ok {
		s = &session{ready: make(chan struct{}), lock: make(chan struct{}, 1)}
		h.sessions[sessionID] = s
	}
	h.mu.Unlock()

	if ok {
		select {
		case <-s.ready:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for session %s: %w", sessionID, ctx.Err())
		}
		if s.err != nil {
			return nil, s.err
		}
		return s, nil
	}

	// Store I/O happens outside h.mu.
	h.open(ctx, sessionID, s)
	if s.err != nil {
		return nil, s.err
	}
	return s, nil
}

// open loads the board of s and builds its team. On failure s is dropped from
// the cache so a later call retries.
func (h *Hub) open(ctx context.Context, sessionID string, s *session) {
	defer close(s.ready)

	logger := h.logger.WithField("session", sessionID)

	board, err := blackboard.Open(ctx, h.store, sessionID, blackboard.WithLogger(logger))
	if err != nil {
		s.err = err
		h.mu.Lock()
		if h.sessions[sessionID] == s {
			delete(h.sessions, sessionID)
		}
		h.mu.Unlock()
		return
	}

	s.board = board
	s.team = BuildTeam(h.cfg, agent.Deps{
		Board:   board,
		LLM:     h.llm,
		Gateway: h.gateway,
		Logger:  logger,
	})

	logger.WithField("entries", board.Len()).Debug("Session opened")
}
