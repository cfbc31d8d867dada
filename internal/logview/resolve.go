package logview

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ResolveEntry finds the entry whose id is shortID or starts with it.
func ResolveEntry(entries []blackboard.Entry, shortID string) (blackboard.Entry, error) {
	shortID = strings.ToLower(strings.TrimSpace(shortID))

	if _, err := uuid.Parse(shortID); err == nil {
		for _, e := range entries {
			if e.ID == shortID {
				return e, nil
			}
		}
		return blackboard.Entry{}, &NotFoundError{ShortID: shortID}
	}

	if len(shortID) < MinShortIDLength {
		return blackboard.Entry{}, fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	var matches []blackboard.Entry
	for _, e := range entries {
		if strings.HasPrefix(e.ID, shortID) {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return blackboard.Entry{}, &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return blackboard.Entry{}, &AmbiguousError{ShortID: shortID, Matches: ids}
	}
}

// NotFoundError indicates no entries matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no entries found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple entries matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d entries", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists the matching ids (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ambiguous short ID '%s' matches %d entries:\n", err.ShortID, len(err.Matches))

	shown := err.Matches
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, id := range shown {
		fmt.Fprintf(&sb, "  %s\n", id)
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&sb, "  ...and %d more\n", len(err.Matches)-10)
	}

	sb.WriteString("\nUse a longer prefix to uniquely identify the entry.")
	return sb.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
