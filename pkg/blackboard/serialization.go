package blackboard

import (
	"encoding/json"
	"fmt"
)

// Serialization helpers for converting between Sessions and their durable form
//
// A session is stored as a single JSON document so that the whole snapshot can
// be replaced atomically (rename on disk, SET in Redis). The encoding is compact
// so artifact values reload byte-identical. Decoding normalizes nil
// collections to empty ones so a reloaded session compares equal to the one
// that was saved.

// EncodeSession converts a Session to its JSON snapshot.
func EncodeSession(s *Session) ([]byte, error) {
	if err := ValidateSessionID(s.ID); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}

	return data, nil
}

// DecodeSession converts a JSON snapshot back to a Session.
// Entries are validated so a corrupt snapshot is rejected instead of half-loaded.
func DecodeSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if err := ValidateSessionID(s.ID); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}

	// Ensure we have empty collections instead of nil for consistency
	if s.Entries == nil {
		s.Entries = []Entry{}
	}
	if s.Artifacts == nil {
		s.Artifacts = map[string]json.RawMessage{}
	}

	for i := range s.Entries {
		if err := s.Entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid entry at index %d: %w", i, err)
		}
	}

	return &s, nil
}
