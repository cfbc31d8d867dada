package completion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrScriptExhausted is returned when a role has no scripted replies left.
var ErrScriptExhausted = errors.New("completion script exhausted")

// Script replays canned replies per role, in order. It backs offline runs
// and tests where a model would otherwise be needed.
//
// Script file format:
//
//	Orchestrator:
//	  - |
//	    ```json
//	    {"delegate_to": "SQLAnalyst", "message": "total sales"}
//	    ```
//	SQLAnalyst:
//	  - "..."
type Script struct {
	mu      sync.Mutex
	replies map[string][]string
	calls   []Request
}

// NewScript returns a Script that serves replies[role] in order.
func NewScript(replies map[string][]string) *Script {
	s := &Script{replies: make(map[string][]string, len(replies))}
	for role, list := range replies {
		s.replies[role] = append([]string(nil), list...)
	}
	return s
}

// LoadScript reads a YAML script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read completion script: %w", err)
	}

	var replies map[string][]string
	if err := yaml.Unmarshal(data, &replies); err != nil {
		return nil, fmt.Errorf("failed to parse completion script %s: %w", path, err)
	}

	return NewScript(replies), nil
}

// Complete pops the next reply for req.Role.
func (s *Script) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)

	queue := s.replies[req.Role]
	if len(queue) == 0 {
		return "", fmt.Errorf("%w for role %s", ErrScriptExhausted, req.Role)
	}
	s.replies[req.Role] = queue[1:]
	return queue[0], nil
}

// Calls returns the requests received so far, in order.
func (s *Script) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

// Remaining reports how many replies are left for role.
func (s *Script) Remaining(role string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies[role])
}
