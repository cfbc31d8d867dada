package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/warren/internal/completion"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/gateway"
	"github.com/dyluth/warren/internal/mission"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/toolserver"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/sirupsen/logrus"
)

// DefaultSession is used when --session is not given.
const DefaultSession = "default"

// stack holds everything a mission needs, plus the cleanups to run on exit.
type stack struct {
	cfg     *config.WarrenConfig
	store   blackboard.Store
	gateway *gateway.MCPGateway
	hub     *mission.Hub
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func loadConfig() (*config.WarrenConfig, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Fix %s and try again", configPath)},
		)
	}
	return cfg, nil
}

// openStore builds the configured session store. The cleanup is always non-nil.
func openStore(ctx context.Context, cfg *config.WarrenConfig) (blackboard.Store, func(), error) {
	if cfg.Store.Backend != config.BackendRedis {
		return blackboard.NewFileStore(cfg.Store.Dir), func() {}, nil
	}

	store, err := blackboard.NewRedisStoreFromURL(cfg.Store.RedisURL)
	if err != nil {
		return nil, func() {}, printer.Error(
			"invalid Redis URL",
			err.Error(),
			[]string{fmt.Sprintf("Use the form redis://host:port/db in store.redis_url or %s", config.EnvRedisURL)},
		)
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, func() {}, printer.ErrorWithContext(
			"Redis connection failed",
			"Could not reach the session store.",
			map[string]string{"url": cfg.Store.RedisURL, "error": err.Error()},
			[]string{
				"Check that Redis is running and reachable",
				fmt.Sprintf("Unset %s to fall back to the file store", config.EnvRedisURL),
			},
		)
	}

	return store, func() { store.Close() }, nil
}

func newCompletion(ctx context.Context, cfg *config.WarrenConfig) (completion.Service, error) {
	switch cfg.LLM.Provider {
	case config.ProviderScript:
		script, err := completion.LoadScript(cfg.LLM.Script)
		if err != nil {
			return nil, printer.Error("failed to load completion script", err.Error(), nil)
		}
		return script, nil
	default:
		llm, err := completion.NewGemini(ctx, completion.GeminiOptions{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Logger:      logrus.StandardLogger(),
		})
		if err != nil {
			return nil, printer.Error(
				"completion backend unavailable",
				err.Error(),
				[]string{fmt.Sprintf("Export %s, or set llm.provider: script in %s", config.EnvGeminiAPIKey, configPath)},
			)
		}
		return llm, nil
	}
}

// newGateway connects agents to the tool server. In-process runs the server
// inside this binary; stdio spawns it (by default `warren tools serve`).
func newGateway(cfg *config.WarrenConfig) (*gateway.MCPGateway, func(), error) {
	logger := logrus.StandardLogger()

	if cfg.Tools.Transport == config.TransportStdio {
		command := cfg.Tools.Command
		if len(command) == 0 {
			self, err := os.Executable()
			if err != nil {
				return nil, func() {}, fmt.Errorf("failed to locate warren binary: %w", err)
			}
			command = []string{self, "tools", "serve", "--config", configPath, "--log-level", "error"}
		}
		gw := gateway.NewMCPGateway(gateway.StdioDialer(command[0], command[1:], os.Environ()), logger)
		return gw, func() { gw.Close() }, nil
	}

	srv, cleanup, err := toolserver.New(toolserver.Options{
		Python:        cfg.Tools.Python,
		PythonTimeout: cfg.Tools.PythonTimeout,
		Logger:        logger,
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to start tool server: %w", err)
	}
	gw := gateway.NewMCPGateway(gateway.InProcessDialer(srv), logger)
	return gw, func() {
		gw.Close()
		cleanup()
	}, nil
}

// newStack wires config, store, completion backend, tools and the mission hub.
func newStack(ctx context.Context) (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &stack{cfg: cfg}

	store, closeStore, err := openStore(ctx, cfg)
	s.closers = append(s.closers, closeStore)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.store = store

	llm, err := newCompletion(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	gw, closeGateway, err := newGateway(cfg)
	s.closers = append(s.closers, closeGateway)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.gateway = gw

	hub, err := mission.NewHub(mission.Options{
		Config:  cfg,
		Store:   store,
		LLM:     llm,
		Gateway: gw,
		Logger:  logrus.StandardLogger(),
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.hub = hub

	return s, nil
}

// openSession opens one session's blackboard without starting any agents.
func openSession(ctx context.Context, sessionID string) (*blackboard.Blackboard, blackboard.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	board, err := blackboard.Open(ctx, store, sessionID, blackboard.WithLogger(logrus.StandardLogger()))
	if err != nil {
		closeStore()
		return nil, nil, nil, printer.Error(
			fmt.Sprintf("cannot open session '%s'", sessionID),
			err.Error(),
			[]string{"Session ids are letters, digits, '.', '_' and '-', starting with a letter or digit"},
		)
	}

	return board, store, closeStore, nil
}
