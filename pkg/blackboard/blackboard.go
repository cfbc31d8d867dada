package blackboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Blackboard is the in-process owner of one Session.
// Agents hold a shared pointer to it; mutations are serialized by an internal
// mutex and each one is flushed to the Store before the call returns.
type Blackboard struct {
	mu      sync.RWMutex
	session *Session
	store   Store
	logger  logrus.FieldLogger
	now     func() time.Time
}

// Option configures a Blackboard.
type Option func(*Blackboard)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Blackboard) {
		b.logger = logger
	}
}

// WithClock overrides the wall clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Blackboard) {
		b.now = now
	}
}

// Open loads the session from the store, or starts an empty one if the store
// has never seen this id. The empty session is not written until the first mutation.
func Open(ctx context.Context, store Store, sessionID string, opts ...Option) (*Blackboard, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	b := &Blackboard{
		store:  store,
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithFields(logrus.Fields{
		"component": "blackboard",
		"session":   sessionID,
	})

	session, err := store.Load(ctx, sessionID)
	switch {
	case err == nil:
		b.session = session
		b.logger.WithField("entries", len(session.Entries)).Debug("Loaded session")
	case IsNotFound(err):
		b.session = NewSession(sessionID)
		b.logger.Debug("Started new session")
	default:
		return nil, fmt.Errorf("failed to open session %s: %w", sessionID, err)
	}

	return b, nil
}

// SessionID returns the id of the session this blackboard owns.
func (b *Blackboard) SessionID() string {
	return b.session.ID
}

// Append records an interaction and persists the session.
// It never fails the caller: a persistence error is logged and the entry is
// kept in memory, to be flushed by the next successful write.
func (b *Blackboard) Append(ctx context.Context, source, target, content string, kind Kind) {
	if err := kind.Validate(); err != nil {
		b.logger.WithError(err).Warn("Recording entry with unknown kind as text")
		kind = KindText
	}

	entry := Entry{
		ID:          uuid.New().String(),
		TimestampMs: b.now().UnixMilli(),
		Source:      source,
		Target:      target,
		Kind:        kind,
		Content:     content,
	}

	b.mu.Lock()
	b.session.Entries = append(b.session.Entries, entry)
	b.persistLocked(ctx, "append")
	b.mu.Unlock()

	if pub, ok := b.store.(Publisher); ok {
		if err := pub.PublishEntry(ctx, b.session.ID, entry); err != nil {
			b.logger.WithError(err).Warn("Failed to publish entry")
		}
	}
}

// RecentContext renders the last limit entries in append order, one per line:
//
//	[source -> target]: content
//
// The output is deterministic and has no side effects; it is used verbatim as
// completion context. A non-positive limit yields the empty string.
func (b *Blackboard) RecentContext(limit int) string {
	if limit <= 0 {
		return ""
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.session.Entries
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "[%s -> %s]: %s\n", e.Source, e.Target, e.Content)
	}
	return sb.String()
}

// SetArtifact stores value under key (last write wins) and persists the session.
// The only error is a value that cannot be encoded as JSON; persistence
// failures are logged like Append's.
func (b *Blackboard) SetArtifact(ctx context.Context, key string, value any) error {
	if key == "" {
		return fmt.Errorf("artifact key cannot be empty")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode artifact %q: %w", key, err)
	}

	b.mu.Lock()
	b.session.Artifacts[key] = raw
	b.persistLocked(ctx, "set_artifact")
	b.mu.Unlock()

	return nil
}

// GetArtifact returns the JSON value stored under key.
// The boolean is false when the key is absent; no default is guessed.
func (b *Blackboard) GetArtifact(key string) (json.RawMessage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	raw, ok := b.session.Artifacts[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

// DecodeArtifact unmarshals the value under key into dst.
// Returns (false, nil) when the key is absent.
func (b *Blackboard) DecodeArtifact(key string, dst any) (bool, error) {
	raw, ok := b.GetArtifact(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode artifact %q: %w", key, err)
	}
	return true, nil
}

// Entries returns a copy of the interaction log in append order.
func (b *Blackboard) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, len(b.session.Entries))
	copy(out, b.session.Entries)
	return out
}

// Len returns the number of entries in the log.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.session.Entries)
}

// Artifacts returns a copy of the artifact store.
func (b *Blackboard) Artifacts() map[string]json.RawMessage {
	return b.Snapshot().Artifacts
}

// Snapshot returns a deep copy of the whole session.
func (b *Blackboard) Snapshot() *Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session.clone()
}

// Flush writes the current session to the store and reports the result.
// Mutations already flush; Flush lets a caller retry after a logged failure.
func (b *Blackboard) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Save(ctx, b.session)
}

// persistLocked saves the session. Caller must hold b.mu.
func (b *Blackboard) persistLocked(ctx context.Context, op string) {
	if err := b.store.Save(ctx, b.session); err != nil {
		b.logger.WithFields(logrus.Fields{
			"op":      op,
			"entries": len(b.session.Entries),
		}).WithError(err).Warn("Failed to persist session; continuing with in-memory state")
	}
}
