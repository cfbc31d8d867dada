package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/warren/internal/completion"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/mission"
	"github.com/dyluth/warren/internal/testutil"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var echoLLM = completion.ServiceFunc(func(ctx context.Context, req completion.Request) (string, error) {
	return "answer: " + req.Input, nil
})

func newTestServer(t *testing.T, health Pinger) *Server {
	t.Helper()
	hub, err := mission.NewHub(mission.Options{
		Config: config.Default(),
		Store:  blackboard.NewFileStore(t.TempDir()),
		LLM:    echoLLM,
	})
	require.NoError(t, err)
	return New(hub, Options{Health: health})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestRunMission(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/v1/sessions/alpha/missions", `{"objective":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp MissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alpha", resp.SessionID)
	assert.Equal(t, "answer: hello", resp.Result)
	assert.NotEmpty(t, resp.MissionID)

	w = do(t, s, http.MethodGet, "/v1/sessions/alpha/entries", "")
	require.Equal(t, http.StatusOK, w.Code)

	var entries []blackboard.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "hello", entries[0].Content)
	assert.Equal(t, blackboard.KindThought, entries[1].Kind)
}

func TestRunMission_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/v1/sessions/alpha/missions", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Objective")

	w = do(t, s, http.MethodPost, "/v1/sessions/alpha/missions", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/v1/sessions/-bad/missions", `{"objective":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntriesAndContextLimit(t *testing.T) {
	s := newTestServer(t, nil)

	for _, obj := range []string{"one", "two"} {
		w := do(t, s, http.MethodPost, "/v1/sessions/beta/missions", `{"objective":"`+obj+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, s, http.MethodGet, "/v1/sessions/beta/entries?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []blackboard.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "answer: two", entries[0].Content)

	w = do(t, s, http.MethodGet, "/v1/sessions/beta/context?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[User -> Orchestrator]: two\n[Orchestrator -> Self]: answer: two\n", w.Body.String())

	w = do(t, s, http.MethodGet, "/v1/sessions/beta/context?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/v1/sessions/beta/entries?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArtifacts(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/v1/sessions/gamma/artifacts/report", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPut, "/v1/sessions/gamma/artifacts/report", `{"total": 2725}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, "/v1/sessions/gamma/artifacts/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total": 2725}`, w.Body.String())

	w = do(t, s, http.MethodPut, "/v1/sessions/gamma/artifacts/report", `[1, 2]`)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodGet, "/v1/sessions/gamma/artifacts/report", "")
	assert.JSONEq(t, `[1, 2]`, w.Body.String())

	w = do(t, s, http.MethodPut, "/v1/sessions/gamma/artifacts/report", `{broken`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutArtifact_WaitsForMission(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	llm := completion.ServiceFunc(func(ctx context.Context, req completion.Request) (string, error) {
		started <- struct{}{}
		<-release
		return "done", nil
	})
	hub, err := mission.NewHub(mission.Options{
		Config: config.Default(),
		Store:  blackboard.NewFileStore(t.TempDir()),
		LLM:    llm,
	})
	require.NoError(t, err)
	s := New(hub, Options{})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(t, s, http.MethodPost, "/v1/sessions/delta/missions", `{"objective":"slow"}`)
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPut, "/v1/sessions/delta/artifacts/report", strings.NewReader(`{"total": 1}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	close(release)
	assert.Equal(t, http.StatusOK, (<-done).Code)

	w = do(t, s, http.MethodPut, "/v1/sessions/delta/artifacts/report", `{"total": 2}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodGet, "/v1/sessions/delta/artifacts/report", "")
	assert.JSONEq(t, `{"total": 2}`, w.Body.String())
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	w := do(t, newTestServer(t, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	failing := pingFunc(func(ctx context.Context) error { return errors.New("connection refused") })
	w = do(t, newTestServer(t, failing), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestHealthz_Redis(t *testing.T) {
	store, mr := testutil.RedisStore(t)

	w := do(t, newTestServer(t, store), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"connected"`)

	mr.Close()
	w = do(t, newTestServer(t, store), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://client.test")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
