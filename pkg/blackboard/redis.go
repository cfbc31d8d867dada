package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session snapshots in Redis and publishes appended entries.
// Each snapshot lives under a single key and is replaced with one SET, which
// Redis applies atomically.
// The store is thread-safe and can be used concurrently from multiple goroutines.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a store connected with the given options.
func NewRedisStore(redisOpts *redis.Options) *RedisStore {
	return &RedisStore{rdb: redis.NewClient(redisOpts)}
}

// NewRedisStoreFromURL parses a redis:// URL and creates a store.
func NewRedisStoreFromURL(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewRedisStore(opts), nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the store should not be used.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Load reads a session snapshot.
// Returns ErrSessionNotFound if the key does not exist.
func (r *RedisStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	data, err := r.rdb.Get(ctx, SnapshotKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}

	s, err := DecodeSession(data)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize session %s: %w", sessionID, err)
	}

	return s, nil
}

// Save replaces the session snapshot (full SET replacement).
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := EncodeSession(s)
	if err != nil {
		return err
	}

	if err := r.rdb.Set(ctx, SnapshotKey(s.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write session to Redis: %w", err)
	}

	return nil
}

// PublishEntry publishes the full entry JSON to warren:{session}:entry_events.
func (r *RedisStore) PublishEntry(ctx context.Context, sessionID string, e Entry) error {
	entryJSON, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry for event: %w", err)
	}

	if err := r.rdb.Publish(ctx, EntryEventsChannel(sessionID), entryJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish entry event: %w", err)
	}

	return nil
}

// ListSessions returns the ids of all sessions with a snapshot, sorted.
// Uses SCAN so large keyspaces are not blocked.
func (r *RedisStore) ListSessions(ctx context.Context) ([]string, error) {
	var ids []string

	iter := r.rdb.Scan(ctx, 0, SnapshotKeyPattern, 0).Iterator()
	for iter.Next(ctx) {
		if id := sessionIDFromSnapshotKey(iter.Val()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// Subscription represents an active Pub/Sub subscription to entry events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Entry
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of entry events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Entry {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - malformed messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEntryEvents subscribes to entries appended to one session.
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a slow subscriber may miss entries, the snapshot never does.
func (r *RedisStore) SubscribeEntryEvents(ctx context.Context, sessionID string) (*Subscription, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	pubsub := r.rdb.Subscribe(ctx, EntryEventsChannel(sessionID))

	// Wait for the subscription to be confirmed so no event published afterwards is lost
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to entry events: %w", err)
	}

	eventsChan := make(chan *Entry, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var entry Entry
				if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal entry event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &entry:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
