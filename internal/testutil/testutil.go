// Package testutil holds fixtures shared by package tests: an in-process
// tool gateway and throwaway stores.
package testutil

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/warren/internal/gateway"
	"github.com/dyluth/warren/internal/toolserver"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// ToolGateway returns a gateway connected to a fresh in-process tool server.
// Both are closed when the test ends.
func ToolGateway(t *testing.T) *gateway.MCPGateway {
	t.Helper()
	srv, cleanup, err := toolserver.New(toolserver.Options{})
	require.NoError(t, err)
	t.Cleanup(cleanup)

	g := gateway.NewMCPGateway(gateway.InProcessDialer(srv), nil)
	t.Cleanup(func() { g.Close() })
	return g
}

// RedisStore starts miniredis and returns a store connected to it.
func RedisStore(t *testing.T) (*blackboard.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store := blackboard.NewRedisStore(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { store.Close() })
	return store, mr
}

// Board opens sessionID on a file store in a temporary directory.
func Board(t *testing.T, sessionID string) *blackboard.Blackboard {
	t.Helper()
	board, err := blackboard.Open(context.Background(), blackboard.NewFileStore(t.TempDir()), sessionID)
	require.NoError(t, err)
	return board
}
