package blackboard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// snapshotDebounce coalesces the burst of events a single atomic save produces.
const snapshotDebounce = 50 * time.Millisecond

// SubscribeEntryEvents follows one session's snapshot file and delivers the
// entries appended after the call. Entries already on disk are not replayed.
// The store directory is created if it does not exist yet.
func (f *FileStore) SubscribeEntryEvents(ctx context.Context, sessionID string) (*Subscription, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}

	seen := 0
	current, err := f.Load(ctx, sessionID)
	switch {
	case err == nil:
		seen = len(current.Entries)
	case !IsNotFound(err):
		_ = watcher.Close()
		return nil, err
	}

	eventsChan := make(chan *Entry, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)
	target := filepath.Clean(f.path(sessionID))

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer watcher.Close()

		debounce := time.NewTimer(time.Hour)
		debounce.Stop()
		defer debounce.Stop()

		sendErr := func(err error) bool {
			select {
			case errorsChan <- err:
				return true
			case <-subCtx.Done():
				return false
			}
		}

		for {
			select {
			case <-subCtx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				debounce.Reset(snapshotDebounce)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if !sendErr(fmt.Errorf("file watcher error: %w", err)) {
					return
				}

			case <-debounce.C:
				s, err := f.Load(subCtx, sessionID)
				if err != nil {
					if !sendErr(err) {
						return
					}
					continue
				}

				// A shorter log means the snapshot was replaced; start over from its end.
				if len(s.Entries) < seen {
					seen = len(s.Entries)
					continue
				}

				for i := seen; i < len(s.Entries); i++ {
					entry := s.Entries[i]
					select {
					case eventsChan <- &entry:
					case <-subCtx.Done():
						return
					}
				}
				seen = len(s.Entries)
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
