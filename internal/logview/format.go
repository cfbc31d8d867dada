// Package logview renders and filters a session's interaction log for the CLI.
package logview

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/warren/pkg/blackboard"
)

// OutputFormat specifies how to format the entry list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated content
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete entries as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates an --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use 'default' or 'jsonl')", s)
	}
}

// Write renders entries in the chosen format.
func Write(w io.Writer, entries []blackboard.Entry, sessionID string, format OutputFormat, now time.Time) error {
	if format == OutputFormatJSONL {
		return FormatJSONL(w, entries)
	}
	FormatTable(w, entries, sessionID, now)
	return nil
}

// FormatTable writes entries as a table in log order. Columns: position,
// short id, age, source -> target, kind and the first line of the content.
// Returns the number of entries formatted.
func FormatTable(w io.Writer, entries []blackboard.Entry, sessionID string, now time.Time) int {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No entries found for session '%s'\n", sessionID)
		return 0
	}

	fmt.Fprintf(w, "Entries for session '%s':\n\n", sessionID)

	fmt.Fprintf(w, "%-4s %-8s %-8s %-32s %-9s %s\n",
		"#", "ID", "AGE", "FROM -> TO", "KIND", "CONTENT")
	fmt.Fprintf(w, "%-4s %-8s %-8s %-32s %-9s %s\n",
		"----", "--------", "--------", "--------------------------------", "---------", "----------------------------------------")

	for i, e := range entries {
		fmt.Fprintf(w, "%-4d %-8s %-8s %-32s %-9s %s\n",
			i+1,
			formatID(e.ID),
			formatAge(e.TimestampMs, now),
			formatRoute(e.Source, e.Target),
			e.Kind,
			formatContent(e.Content),
		)
	}

	noun := "entry"
	if len(entries) != 1 {
		noun = "entries"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(entries), noun)

	return len(entries)
}

// FormatJSONL writes entries as line-delimited JSON, one entry per line.
func FormatJSONL(w io.Writer, entries []blackboard.Entry) error {
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingle writes one entry with its full content.
func FormatSingle(w io.Writer, e blackboard.Entry) {
	fmt.Fprintf(w, "ID:        %s\n", e.ID)
	fmt.Fprintf(w, "Time:      %s\n", time.UnixMilli(e.TimestampMs).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Route:     %s -> %s\n", e.Source, e.Target)
	fmt.Fprintf(w, "Kind:      %s\n", e.Kind)
	fmt.Fprintf(w, "\n%s\n", strings.TrimRight(e.Content, "\n"))
}

// FormatLine renders an entry as a single log line, used by live watchers.
func FormatLine(e blackboard.Entry) string {
	return fmt.Sprintf("%s [%s -> %s] (%s) %s",
		time.UnixMilli(e.TimestampMs).Format("15:04:05"),
		e.Source, e.Target, e.Kind, formatContent(e.Content))
}

// formatID truncates an entry id to its first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatRoute(source, target string) string {
	route := source + " -> " + target
	if len(route) > 32 {
		return route[:29] + "..."
	}
	return route
}

// formatContent keeps the first non-empty line, truncated to 40 characters.
// Empty content returns "-".
func formatContent(content string) string {
	var first string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			first = trimmed
			break
		}
	}

	if first == "" {
		return "-"
	}
	if len(first) > 40 {
		return first[:37] + "..."
	}
	return first
}

// formatAge renders a millisecond timestamp relative to now, e.g. "2m ago".
func formatAge(timestampMs int64, now time.Time) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(timestampMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
