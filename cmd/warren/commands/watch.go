package commands

import (
	"encoding/json"
	"fmt"

	"github.com/dyluth/warren/internal/logview"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	watchSession      string
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream a session's new entries as they are recorded",
	Long: `Follow a session's interaction log in real time.

With the Redis store, entries arrive through Pub/Sub. With the file store,
the session's snapshot file is watched for changes. Entries recorded before
the command started are not shown (use 'warren log' for those).

Output Formats:
  default - One line per entry with time, route, kind and content
  jsonl   - Line-delimited JSON for programmatic processing

Examples:
  warren watch --session demo
  warren watch --output=jsonl > entries.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchSession, "session", "s", DefaultSession, "Session id")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or jsonl)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := logview.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	ctx, cancel := missionContext(cmd.Context(), 0)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	watcher, ok := store.(blackboard.Watcher)
	if !ok {
		return printer.Error("watch not supported", "The configured store cannot stream entries.", nil)
	}

	sub, err := watcher.SubscribeEntryEvents(ctx, watchSession)
	if err != nil {
		return printer.Error(fmt.Sprintf("cannot watch session '%s'", watchSession), err.Error(), nil)
	}
	defer sub.Close()

	out := cmd.OutOrStdout()
	if format == logview.OutputFormatDefault {
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching session '%s' (Ctrl+C to stop)\n", watchSession)
	}

	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case entry, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if format == logview.OutputFormatJSONL {
				data, err := json.Marshal(entry)
				if err != nil {
					return fmt.Errorf("failed to marshal entry: %w", err)
				}
				fmt.Fprintf(out, "%s\n", data)
				continue
			}
			fmt.Fprintln(out, logview.FormatLine(*entry))

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logrus.WithError(err).WithField("session", watchSession).Warn("Watch error")
		}
	}
}
