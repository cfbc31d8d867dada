package blackboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultStoreDir is where FileStore keeps snapshots when no directory is configured.
const DefaultStoreDir = "memory_store"

// FileStore keeps one JSON snapshot per session in a directory.
// Snapshots are written to a temporary file, fsynced and renamed over the
// previous one, so an interrupted write never corrupts the prior state.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created lazily
// on the first Save.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultStoreDir
	}
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the snapshots.
func (f *FileStore) Dir() string {
	return f.dir
}

// path returns the snapshot path for a session.
func (f *FileStore) path(sessionID string) string {
	return filepath.Join(f.dir, sessionID+".json")
}

// Load reads a session snapshot from disk.
// Returns ErrSessionNotFound if the session has never been saved.
func (f *FileStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	s, err := DecodeSession(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	return s, nil
}

// Save writes the snapshot atomically (temp file + rename).
func (f *FileStore) Save(ctx context.Context, s *Session) error {
	data, err := EncodeSession(s)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, s.ID+".json.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	// Remove the temp file on any failure path; after a successful rename it no longer exists.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, f.path(s.ID)); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

// ListSessions returns the ids of all sessions with a snapshot, sorted.
func (f *FileStore) ListSessions(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(f.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), ".json")
		if ValidateSessionID(id) == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	return ids, nil
}
