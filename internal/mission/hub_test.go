package mission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/warren/internal/agent"
	"github.com/dyluth/warren/internal/completion"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/gateway"
	"github.com/dyluth/warren/internal/testutil"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoLLM answers every request directly with the task it was given.
var echoLLM = completion.ServiceFunc(func(ctx context.Context, req completion.Request) (string, error) {
	return "answer: " + req.Input, nil
})

func newHub(t *testing.T, llm completion.Service, gw gateway.Invoker) (*Hub, blackboard.Store) {
	t.Helper()
	store := blackboard.NewFileStore(t.TempDir())
	hub, err := NewHub(Options{
		Config:  config.Default(),
		Store:   store,
		LLM:     llm,
		Gateway: gw,
	})
	require.NoError(t, err)
	return hub, store
}

func TestNewHub_RequiresDependencies(t *testing.T) {
	_, err := NewHub(Options{Store: blackboard.NewFileStore(t.TempDir()), LLM: echoLLM})
	assert.Error(t, err)

	_, err = NewHub(Options{Config: config.Default(), LLM: echoLLM})
	assert.Error(t, err)

	_, err = NewHub(Options{Config: config.Default(), Store: blackboard.NewFileStore(t.TempDir())})
	assert.Error(t, err)
}

func TestHub_RunDelegatesThroughTools(t *testing.T) {
	gw := testutil.ToolGateway(t)

	llm := completion.NewScript(map[string][]string{
		"Orchestrator": {"```json\n{\"delegate_to\": \"SQLAnalyst\", \"message\": \"count the sales\"}\n```"},
		"SQLAnalyst":   {"```json\n{\"tool\": \"query_sales_db\", \"parameters\": {\"sql_query\": \"SELECT count(*) AS n FROM sales_data\"}}\n```"},
	})
	hub, _ := newHub(t, llm, gw)

	out, err := hub.Run(context.Background(), "sales", "How many sales were made?")
	require.NoError(t, err)
	assert.Equal(t, "Mission Result: Columns: n\n4", out.Result)
	assert.Equal(t, "sales", out.SessionID)
	assert.Equal(t, 1, out.Hops)
	assert.NotEmpty(t, out.MissionID)

	board, err := hub.Board(context.Background(), "sales")
	require.NoError(t, err)
	assert.Equal(t, 4, board.Len())
}

func TestHub_InvalidSession(t *testing.T) {
	hub, _ := newHub(t, echoLLM, nil)

	_, err := hub.Run(context.Background(), "../etc", "hi")
	assert.Error(t, err)

	_, err = hub.Board(context.Background(), "")
	assert.Error(t, err)
}

func TestHub_SessionsAreIsolatedAndPersisted(t *testing.T) {
	hub, store := newHub(t, echoLLM, nil)
	ctx := context.Background()

	_, err := hub.Run(ctx, "alpha", "first")
	require.NoError(t, err)
	_, err = hub.Run(ctx, "beta", "second")
	require.NoError(t, err)
	_, err = hub.Run(ctx, "alpha", "third")
	require.NoError(t, err)

	alpha, err := hub.Board(ctx, "alpha")
	require.NoError(t, err)
	beta, err := hub.Board(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, 4, alpha.Len())
	assert.Equal(t, 2, beta.Len())

	sessions, err := hub.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, sessions)

	// A fresh hub on the same store sees the history.
	again, err := NewHub(Options{Config: config.Default(), Store: store, LLM: echoLLM})
	require.NoError(t, err)
	reloaded, err := again.Board(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, alpha.Entries(), reloaded.Entries())
}

func TestHub_ConcurrentSessionsNeverInterleave(t *testing.T) {
	hub, _ := newHub(t, echoLLM, nil)
	ctx := context.Background()

	const sessions = 8
	const missions = 5

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for j := 0; j < missions; j++ {
				out, err := hub.Run(ctx, id, fmt.Sprintf("%s-objective-%d", id, j))
				assert.NoError(t, err)
				assert.Equal(t, fmt.Sprintf("answer: %s-objective-%d", id, j), out.Result)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("s%d", i)
		board, err := hub.Board(ctx, id)
		require.NoError(t, err)

		entries := board.Entries()
		require.Len(t, entries, missions*2)
		for j := 0; j < missions; j++ {
			objective := fmt.Sprintf("%s-objective-%d", id, j)
			assert.Equal(t, objective, entries[2*j].Content)
			assert.Equal(t, blackboard.KindText, entries[2*j].Kind)
			assert.Equal(t, "answer: "+objective, entries[2*j+1].Content)
			assert.Equal(t, blackboard.KindThought, entries[2*j+1].Kind)
		}
	}
}

func TestHub_SameSessionSerializes(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	llm := completion.ServiceFunc(func(ctx context.Context, req completion.Request) (string, error) {
		if strings.HasPrefix(req.Input, "slow") {
			started <- struct{}{}
			<-release
		}
		return "done: " + req.Input, nil
	})
	hub, _ := newHub(t, llm, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := hub.Run(context.Background(), "shared", "slow mission")
		errCh <- err
	}()
	<-started

	// Same session: waits for the lock and gives up with the context.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := hub.Run(ctx, "shared", "fast mission")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// Other sessions are not blocked.
	out, err := hub.Run(context.Background(), "other", "fast mission")
	require.NoError(t, err)
	assert.Equal(t, "done: fast mission", out.Result)

	close(release)
	require.NoError(t, <-errCh)

	board, err := hub.Board(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, 2, board.Len())
}

func TestBuildTeam(t *testing.T) {
	cfg := config.Default()
	cfg.Orchestrator.Name = "Manager"
	cfg.Agents["Calculator"] = config.Agent{Role: config.RoleCustom, Description: "Does arithmetic.", Tools: []string{"add"}}
	cfg.Agents["SQLAnalyst"] = config.Agent{Role: config.RoleAnalyst, Prompt: "Only write SQLite."}
	require.NoError(t, cfg.Validate())

	board, err := blackboard.Open(context.Background(), blackboard.NewFileStore(t.TempDir()), "team")
	require.NoError(t, err)

	team := BuildTeam(cfg, agent.Deps{Board: board, LLM: echoLLM})
	assert.Equal(t, "Manager", team.Name())
	assert.Equal(t, []string{"Calculator", "DataScientist", "SQLAnalyst"}, team.Subordinates())
	assert.Contains(t, team.Prompt(), "1. Calculator: Does arithmetic.")
	assert.Contains(t, team.Prompt(), "3. SQLAnalyst: Can query the sales database with SQL.")

	spec := roleSpec(cfg, "SQLAnalyst")
	assert.Equal(t, "Only write SQLite.", spec.Prompt)
	assert.Equal(t, []string{"query_sales_db"}, spec.Tools)
	assert.Equal(t, "Manager", spec.ReportTo)
	assert.Equal(t, 10, spec.ContextLimit)
}

func TestHub_RedisStorePersistsAcrossHubs(t *testing.T) {
	store, _ := testutil.RedisStore(t)
	ctx := context.Background()

	newRedisHub := func() *Hub {
		hub, err := NewHub(Options{Config: config.Default(), Store: store, LLM: echoLLM})
		require.NoError(t, err)
		return hub
	}

	out, err := newRedisHub().Run(ctx, "shared", "remember me")
	require.NoError(t, err)
	assert.Equal(t, "answer: remember me", out.Result)

	board, err := newRedisHub().Board(ctx, "shared")
	require.NoError(t, err)
	require.Equal(t, 2, board.Len())
	assert.Equal(t, "remember me", board.Entries()[0].Content)

	sessions, err := newRedisHub().Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, sessions)
}

// gatedStore blocks Load of one session until release is closed.
type gatedStore struct {
	blackboard.Store
	gated   string
	loading chan struct{}
	release chan struct{}
}

func (g *gatedStore) Load(ctx context.Context, sessionID string) (*blackboard.Session, error) {
	if sessionID == g.gated {
		g.loading <- struct{}{}
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.Store.Load(ctx, sessionID)
}

func TestHub_SlowOpenDoesNotBlockOtherSessions(t *testing.T) {
	store := &gatedStore{
		Store:   blackboard.NewFileStore(t.TempDir()),
		gated:   "slow",
		loading: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	hub, err := NewHub(Options{Config: config.Default(), Store: store, LLM: echoLLM})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = hub.Run(ctx, "fast", "first")
	require.NoError(t, err)

	slowDone := make(chan error, 1)
	go func() {
		_, err := hub.Run(ctx, "slow", "waits on the store")
		slowDone <- err
	}()
	<-store.loading

	runCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	out, err := hub.Run(runCtx, "fast", "second")
	require.NoError(t, err)
	assert.Equal(t, "answer: second", out.Result)

	_, err = hub.Board(runCtx, "fresh")
	require.NoError(t, err)

	close(store.release)
	require.NoError(t, <-slowDone)

	board, err := hub.Board(ctx, "slow")
	require.NoError(t, err)
	assert.Equal(t, 2, board.Len())
}

// failingStore fails every Load until healed.
type failingStore struct {
	blackboard.Store
	mu     sync.Mutex
	broken bool
}

func (f *failingStore) Load(ctx context.Context, sessionID string) (*blackboard.Session, error) {
	f.mu.Lock()
	broken := f.broken
	f.mu.Unlock()
	if broken {
		return nil, errors.New("store unavailable")
	}
	return f.Store.Load(ctx, sessionID)
}

func TestHub_FailedOpenIsRetried(t *testing.T) {
	store := &failingStore{Store: blackboard.NewFileStore(t.TempDir()), broken: true}
	hub, err := NewHub(Options{Config: config.Default(), Store: store, LLM: echoLLM})
	require.NoError(t, err)

	_, err = hub.Run(context.Background(), "alpha", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")

	store.mu.Lock()
	store.broken = false
	store.mu.Unlock()

	out, err := hub.Run(context.Background(), "alpha", "hi")
	require.NoError(t, err)
	assert.Equal(t, "answer: hi", out.Result)
}

func TestHub_SetArtifactWaitsForRunningMission(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	llm := completion.ServiceFunc(func(ctx context.Context, req completion.Request) (string, error) {
		started <- struct{}{}
		<-release
		return "done", nil
	})
	hub, _ := newHub(t, llm, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := hub.Run(context.Background(), "shared", "slow mission")
		errCh <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := hub.SetArtifact(ctx, "shared", "report", map[string]int{"total": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	require.NoError(t, <-errCh)

	require.NoError(t, hub.SetArtifact(context.Background(), "shared", "report", map[string]int{"total": 2}))
	board, err := hub.Board(context.Background(), "shared")
	require.NoError(t, err)
	raw, ok := board.GetArtifact("report")
	require.True(t, ok)
	assert.JSONEq(t, `{"total":2}`, string(raw))
}
