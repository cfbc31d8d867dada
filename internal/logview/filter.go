package logview

import (
	"path/filepath"

	"github.com/dyluth/warren/pkg/blackboard"
)

// Criteria defines filtering criteria for entries.
// All filters are ANDed together - an entry must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64           // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64           // Unix timestamp in milliseconds, 0 = no filter
	SourceGlob       string          // Glob pattern for the entry source, empty = no filter
	Target           string          // Exact match for the entry target, empty = no filter
	Kind             blackboard.Kind // Exact match for the entry kind, empty = no filter
}

// Matches returns true if the entry matches all filter criteria.
func (c *Criteria) Matches(e *blackboard.Entry) bool {
	if c.SinceTimestampMs > 0 && e.TimestampMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && e.TimestampMs > c.UntilTimestampMs {
		return false
	}

	if c.SourceGlob != "" {
		matched, err := filepath.Match(c.SourceGlob, e.Source)
		if err != nil || !matched {
			return false
		}
	}

	if c.Target != "" && e.Target != c.Target {
		return false
	}

	if c.Kind != "" && e.Kind != c.Kind {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.SourceGlob != "" ||
		c.Target != "" ||
		c.Kind != ""
}

// Filter returns the matching entries, preserving log order.
func Filter(entries []blackboard.Entry, c *Criteria) []blackboard.Entry {
	if c == nil || !c.HasFilters() {
		return entries
	}

	out := make([]blackboard.Entry, 0, len(entries))
	for i := range entries {
		if c.Matches(&entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out
}
