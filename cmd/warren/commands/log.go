package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/warren/internal/logview"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/spf13/cobra"
)

var (
	logSession      string
	logOutputFormat string
	logSince        string
	logUntil        string
	logSource       string
	logTarget       string
	logKind         string
)

var logCmd = &cobra.Command{
	Use:   "log [ENTRY_ID]",
	Short: "Inspect a session's interaction log with filtering",
	Long: `Inspect a session's interaction log in list or get mode.

List Mode (no ENTRY_ID):
  Displays entries matching filters as a table or JSONL stream, in log order.

Get Mode (with ENTRY_ID):
  Displays one entry with its complete content.
  Supports short IDs (e.g., "abc123" instead of full UUID).

Output Formats (list mode only):
  default - Human-readable table with ID, age, route, kind and content
  jsonl   - Line-delimited JSON, one entry per line

Filters (list mode only):
  --since   - Entries recorded after this time (duration or RFC3339)
  --until   - Entries recorded before this time
  --source  - Entry source (glob pattern: "SQL*")
  --target  - Entry target (exact match)
  --kind    - Entry kind: text, thought, tool_call, data, result

Examples:
  # Whole log of the default session
  warren log

  # What did the analyst produce in the last hour?
  warren log --source=SQLAnalyst --kind=data --since=1h

  # Pipe to jq
  warren log --output=jsonl | jq -r .content

  # One entry by short ID
  warren log 3f2a9c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVarP(&logSession, "session", "s", DefaultSession, "Session id")
	logCmd.Flags().StringVarP(&logOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")

	logCmd.Flags().StringVar(&logSince, "since", "", "Show entries after time (duration or RFC3339)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "Show entries before time (duration or RFC3339)")

	logCmd.Flags().StringVar(&logSource, "source", "", "Filter by source (glob pattern)")
	logCmd.Flags().StringVar(&logTarget, "target", "", "Filter by target (exact match)")
	logCmd.Flags().StringVar(&logKind, "kind", "", "Filter by kind")

	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	board, _, closeStore, err := openSession(ctx, logSession)
	if err != nil {
		return err
	}
	defer closeStore()

	entries := board.Entries()

	if len(args) > 0 {
		shortID := args[0]
		entry, err := logview.ResolveEntry(entries, shortID)
		if err != nil {
			var ambigErr *logview.AmbiguousError
			switch {
			case logview.IsNotFoundError(err):
				return printer.Error(
					fmt.Sprintf("entry with ID '%s' not found", shortID),
					fmt.Sprintf("Session '%s' has no such entry.", logSession),
					[]string{fmt.Sprintf("List all entries:\n  warren log --session %s", logSession)},
				)
			case errors.As(err, &ambigErr):
				fmt.Fprintln(cmd.ErrOrStderr(), logview.FormatAmbiguousError(ambigErr))
				return fmt.Errorf("ambiguous short ID")
			default:
				return printer.Error("invalid entry ID", err.Error(), nil)
			}
		}
		logview.FormatSingle(out, entry)
		return nil
	}

	format, err := logview.ParseOutputFormat(logOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", logOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	now := time.Now()
	sinceMS, untilMS, err := logview.ParseRange(logSince, logUntil, now)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z'"},
		)
	}

	kind := blackboard.Kind(logKind)
	if logKind != "" {
		if err := kind.Validate(); err != nil {
			return printer.Error(
				"invalid kind filter",
				err.Error(),
				[]string{"Valid kinds: text, thought, tool_call, data, result"},
			)
		}
	}

	criteria := &logview.Criteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		SourceGlob:       logSource,
		Target:           logTarget,
		Kind:             kind,
	}

	return logview.Write(out, logview.Filter(entries, criteria), logSession, format, now)
}
