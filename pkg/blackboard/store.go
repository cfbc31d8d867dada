package blackboard

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by Store.Load when no snapshot exists yet.
var ErrSessionNotFound = errors.New("session not found")

// Store persists whole-session snapshots.
// Implementations must replace the previous snapshot atomically: a failed Save
// leaves the last good snapshot loadable.
type Store interface {
	// Load returns the stored session, or ErrSessionNotFound.
	Load(ctx context.Context, sessionID string) (*Session, error)

	// Save replaces the stored snapshot of s.
	Save(ctx context.Context, s *Session) error
}

// Publisher is implemented by stores that can broadcast appended entries.
// Publishing is best effort; the Blackboard logs and ignores failures.
type Publisher interface {
	PublishEntry(ctx context.Context, sessionID string, e Entry) error
}

// Lister is implemented by stores that can enumerate known sessions.
type Lister interface {
	ListSessions(ctx context.Context) ([]string, error)
}

// IsNotFound returns true if the error means the session has no snapshot yet.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// Watcher is implemented by stores that can stream entries appended after
// the subscription starts.
type Watcher interface {
	SubscribeEntryEvents(ctx context.Context, sessionID string) (*Subscription, error)
}
