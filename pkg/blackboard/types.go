package blackboard

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Well-known participant identifiers used as entry sources and targets.
const (
	// ParticipantUser is the human (or API caller) who submits objectives.
	ParticipantUser = "User"

	// ParticipantSelf marks an entry an agent addressed to itself (thoughts).
	ParticipantSelf = "Self"

	// ParticipantOrchestrator is the default name of the coordinating agent.
	ParticipantOrchestrator = "Orchestrator"
)

// Entry is one immutable record in a session's interaction log.
// Entries are ordered by append order only; TimestampMs is advisory.
type Entry struct {
	ID          string `json:"id"`           // UUID - unique identifier for this entry
	TimestampMs int64  `json:"timestamp_ms"` // Unix timestamp in milliseconds when appended
	Source      string `json:"source"`       // Producing role, or "User"
	Target      string `json:"target"`       // Receiving role, "User" or "Self"
	Kind        Kind   `json:"kind"`         // What the content represents
	Content     string `json:"content"`      // Free text (completion, objective, tool output)
}

// Kind classifies the content of an Entry.
type Kind string

const (
	// KindText is a plain message, e.g. the user's objective.
	KindText Kind = "text"

	// KindThought is a raw completion an agent recorded for itself.
	KindThought Kind = "thought"

	// KindToolCall records a tool invocation request.
	KindToolCall Kind = "tool_call"

	// KindData is a tool result reported back to the orchestrator.
	KindData Kind = "data"

	// KindResult is a computed result (analysis output).
	KindResult Kind = "result"
)

// Validate checks if the Kind is a valid enum value.
func (k Kind) Validate() error {
	switch k {
	case KindText, KindThought, KindToolCall, KindData, KindResult:
		return nil
	default:
		return fmt.Errorf("unknown entry kind: %q", k)
	}
}

// Validate checks if the Entry has valid field values.
func (e *Entry) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid entry ID: not a valid UUID")
	}

	if e.Source == "" {
		return fmt.Errorf("entry source cannot be empty")
	}

	if e.Target == "" {
		return fmt.Errorf("entry target cannot be empty")
	}

	if err := e.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid kind: %w", err)
	}

	return nil
}

// Session is the durable unit: one interaction log plus one artifact store,
// identified by a session id.
type Session struct {
	ID        string                     `json:"session_id"`
	Entries   []Entry                    `json:"entries"`
	Artifacts map[string]json.RawMessage `json:"artifacts"`
}

// NewSession returns an empty session for the given id.
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		Entries:   []Entry{},
		Artifacts: map[string]json.RawMessage{},
	}
}

// clone returns a deep copy safe to hand to a Store while the owner keeps mutating.
func (s *Session) clone() *Session {
	out := &Session{
		ID:        s.ID,
		Entries:   make([]Entry, len(s.Entries)),
		Artifacts: make(map[string]json.RawMessage, len(s.Artifacts)),
	}
	copy(out.Entries, s.Entries)
	for k, v := range s.Artifacts {
		out.Artifacts[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

const (
	// DefaultSessionID is used when the caller does not name a session.
	DefaultSessionID = "default"

	// MaxSessionIDLength is the maximum length for a session id.
	MaxSessionIDLength = 64
)

// SessionIDPattern restricts session ids to characters that are safe both as
// file names and inside Redis keys.
var SessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateSessionID checks if a session id is usable as a storage key.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("session id too long: %d characters (max: %d)", len(id), MaxSessionIDLength)
	}

	if !SessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session id '%s': must start with a letter or digit and contain only letters, digits, '_', '.' or '-'", id)
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
