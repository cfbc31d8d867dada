package blackboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore loads nothing and rejects every save
type failingStore struct {
	mu    sync.Mutex
	saves int
}

func (f *failingStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	return nil, ErrSessionNotFound
}

func (f *failingStore) Save(ctx context.Context, s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return errors.New("disk full")
}

func openTestBoard(t *testing.T, sessionID string) (*Blackboard, *FileStore) {
	t.Helper()
	store := NewFileStore(t.TempDir())
	board, err := Open(context.Background(), store, sessionID)
	require.NoError(t, err)
	return board, store
}

func TestOpen(t *testing.T) {
	t.Run("starts empty session", func(t *testing.T) {
		board, _ := openTestBoard(t, "fresh")
		assert.Equal(t, "fresh", board.SessionID())
		assert.Equal(t, 0, board.Len())
		assert.Empty(t, board.Artifacts())
	})

	t.Run("rejects invalid session id", func(t *testing.T) {
		_, err := Open(context.Background(), NewFileStore(t.TempDir()), "no/slashes")
		assert.Error(t, err)
	})

	t.Run("rejects nil store", func(t *testing.T) {
		_, err := Open(context.Background(), nil, "x")
		assert.Error(t, err)
	})

	t.Run("surfaces unreadable snapshot", func(t *testing.T) {
		store, mr := setupRedisStore(t)
		require.NoError(t, mr.Set(SnapshotKey("broken"), "[]"))
		_, err := Open(context.Background(), store, "broken")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open session broken")
	})
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	fixed := time.UnixMilli(1_700_000_000_000)

	store := NewFileStore(t.TempDir())
	board, err := Open(ctx, store, "s1", WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	board.Append(ctx, ParticipantUser, ParticipantOrchestrator, "What were total sales?", KindText)
	board.Append(ctx, ParticipantOrchestrator, ParticipantSelf, "thinking", KindThought)

	entries := board.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "What were total sales?", entries[0].Content)
	assert.Equal(t, KindThought, entries[1].Kind)
	assert.Equal(t, fixed.UnixMilli(), entries[0].TimestampMs)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	for _, e := range entries {
		assert.NoError(t, e.Validate())
	}

	// Every append is flushed synchronously
	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, entries, loaded.Entries)
}

func TestAppend_UnknownKindFallsBackToText(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	board, err := Open(context.Background(), NewFileStore(t.TempDir()), "k", WithLogger(logger))
	require.NoError(t, err)

	board.Append(context.Background(), "a", "b", "c", Kind("rumour"))

	assert.Equal(t, KindText, board.Entries()[0].Kind)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestAppend_EntriesAreCopies(t *testing.T) {
	board, _ := openTestBoard(t, "copy")
	board.Append(context.Background(), "a", "b", "original", KindText)

	entries := board.Entries()
	entries[0].Content = "mutated"

	assert.Equal(t, "original", board.Entries()[0].Content)
}

func TestAppend_PersistenceFailureIsLoggedNotFatal(t *testing.T) {
	ctx := context.Background()
	logger, hook := logtest.NewNullLogger()
	store := &failingStore{}

	board, err := Open(ctx, store, "flaky", WithLogger(logger))
	require.NoError(t, err)

	board.Append(ctx, ParticipantUser, ParticipantOrchestrator, "still recorded", KindText)
	require.NoError(t, board.SetArtifact(ctx, "k", "v"))

	// In-memory state survives the failed writes
	require.Equal(t, 1, board.Len())
	raw, ok := board.GetArtifact("k")
	require.True(t, ok)
	assert.JSONEq(t, `"v"`, string(raw))

	assert.Equal(t, 2, store.saves)
	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "Failed to persist session") {
			warnings++
			assert.Equal(t, "flaky", e.Data["session"])
		}
	}
	assert.Equal(t, 2, warnings)

	assert.Error(t, board.Flush(ctx))
}

func TestRecentContext(t *testing.T) {
	ctx := context.Background()
	board, _ := openTestBoard(t, "ctx")

	assert.Equal(t, "", board.RecentContext(10), "empty log renders nothing")

	board.Append(ctx, ParticipantUser, ParticipantOrchestrator, "objective", KindText)
	board.Append(ctx, ParticipantOrchestrator, ParticipantSelf, "plan", KindThought)
	board.Append(ctx, "SQLAnalyst", ParticipantOrchestrator, "rows", KindData)

	t.Run("formats each entry on its own line", func(t *testing.T) {
		expected := "[User -> Orchestrator]: objective\n" +
			"[Orchestrator -> Self]: plan\n" +
			"[SQLAnalyst -> Orchestrator]: rows\n"
		assert.Equal(t, expected, board.RecentContext(10))
	})

	t.Run("keeps only the last entries", func(t *testing.T) {
		assert.Equal(t, "[SQLAnalyst -> Orchestrator]: rows\n", board.RecentContext(1))
	})

	t.Run("non-positive limit renders nothing", func(t *testing.T) {
		assert.Equal(t, "", board.RecentContext(0))
		assert.Equal(t, "", board.RecentContext(-3))
	})

	t.Run("is side-effect free", func(t *testing.T) {
		before := board.Entries()
		_ = board.RecentContext(2)
		_ = board.RecentContext(2)
		assert.Equal(t, before, board.Entries())
		assert.Equal(t, board.RecentContext(2), board.RecentContext(2))
	})
}

func TestRecentContext_LastMinLimitN(t *testing.T) {
	ctx := context.Background()

	for n := 0; n <= 7; n++ {
		board, _ := openTestBoard(t, fmt.Sprintf("n%d", n))
		for i := 0; i < n; i++ {
			board.Append(ctx, "src", "dst", fmt.Sprintf("m%d", i), KindText)
		}

		for limit := 1; limit <= 9; limit++ {
			got := board.RecentContext(limit)
			lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
			if got == "" {
				lines = nil
			}

			want := limit
			if n < limit {
				want = n
			}
			require.Len(t, lines, want, "n=%d limit=%d", n, limit)

			for j, line := range lines {
				assert.Equal(t, fmt.Sprintf("[src -> dst]: m%d", n-want+j), line)
			}
		}
	}
}

func TestArtifacts(t *testing.T) {
	ctx := context.Background()
	board, store := openTestBoard(t, "art")

	t.Run("absent key is explicit", func(t *testing.T) {
		raw, ok := board.GetArtifact("missing")
		assert.False(t, ok)
		assert.Nil(t, raw)

		var dst string
		found, err := board.DecodeArtifact("missing", &dst)
		assert.False(t, found)
		assert.NoError(t, err)
	})

	t.Run("last write wins", func(t *testing.T) {
		require.NoError(t, board.SetArtifact(ctx, "last_sql_result", "v1"))

		var got string
		found, err := board.DecodeArtifact("last_sql_result", &got)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "v1", got)

		require.NoError(t, board.SetArtifact(ctx, "last_sql_result", "v2"))
		_, err = board.DecodeArtifact("last_sql_result", &got)
		require.NoError(t, err)
		assert.Equal(t, "v2", got)
	})

	t.Run("structured values survive reload", func(t *testing.T) {
		type frame struct {
			Rows    int      `json:"rows"`
			Columns []string `json:"columns"`
		}
		require.NoError(t, board.SetArtifact(ctx, "df", frame{Rows: 4, Columns: []string{"id", "amount"}}))

		reopened, err := Open(ctx, store, "art")
		require.NoError(t, err)

		var got frame
		found, err := reopened.DecodeArtifact("df", &got)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, frame{Rows: 4, Columns: []string{"id", "amount"}}, got)
	})

	t.Run("rejects unencodable value", func(t *testing.T) {
		err := board.SetArtifact(ctx, "bad", make(chan int))
		require.Error(t, err)
		_, ok := board.GetArtifact("bad")
		assert.False(t, ok)
	})

	t.Run("rejects empty key", func(t *testing.T) {
		assert.Error(t, board.SetArtifact(ctx, "", 1))
	})
}

func TestPersistReloadRoundTrip(t *testing.T) {
	ctx := context.Background()

	stores := map[string]Store{
		"file": NewFileStore(t.TempDir()),
	}
	redisStore, _ := setupRedisStore(t)
	stores["redis"] = redisStore

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			board, err := Open(ctx, store, "roundtrip")
			require.NoError(t, err)

			board.Append(ctx, ParticipantUser, ParticipantOrchestrator, "objective", KindText)
			board.Append(ctx, ParticipantOrchestrator, ParticipantSelf, "thought", KindThought)
			board.Append(ctx, "SQLAnalyst", ParticipantOrchestrator, "Columns: total\n2725", KindData)
			require.NoError(t, board.SetArtifact(ctx, "count", 3))
			require.NoError(t, board.SetArtifact(ctx, "nested", map[string]any{"a": []any{1.5, "x", nil}}))

			reloaded, err := Open(ctx, store, "roundtrip")
			require.NoError(t, err)

			assert.Equal(t, board.Snapshot(), reloaded.Snapshot())
			assert.Equal(t, board.RecentContext(10), reloaded.RecentContext(10))
		})
	}
}

func TestConcurrentAppendsAreSerialized(t *testing.T) {
	ctx := context.Background()
	board, store := openTestBoard(t, "busy")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				board.Append(ctx, fmt.Sprintf("w%d", w), "x", fmt.Sprintf("%d", i), KindText)
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 80, board.Len())

	// Per-writer order is preserved within the global append order
	next := map[string]int{}
	for _, e := range board.Entries() {
		assert.Equal(t, fmt.Sprintf("%d", next[e.Source]), e.Content)
		next[e.Source]++
	}

	loaded, err := store.Load(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, board.Entries(), loaded.Entries)
}
