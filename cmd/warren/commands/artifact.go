package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dyluth/warren/internal/printer"
	"github.com/spf13/cobra"
)

var artifactSession string

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Read and write session artifacts",
	Long: `Artifacts are named JSON values kept on a session's blackboard next to the
interaction log. Agents store their last tool result under "last_tool_result".

Examples:
  warren artifact list
  warren artifact get last_tool_result
  warren artifact set threshold 42
  warren artifact set owner '"finance"'`,
}

var artifactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifact keys",
	Args:  cobra.NoArgs,
	RunE:  runArtifactList,
}

var artifactGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print an artifact as indented JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtifactGet,
}

var artifactSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store an artifact (last write wins)",
	Long: `Store VALUE under KEY. VALUE is parsed as JSON; anything that is not valid
JSON is stored as a JSON string.`,
	Args: cobra.ExactArgs(2),
	RunE: runArtifactSet,
}

func init() {
	artifactCmd.PersistentFlags().StringVarP(&artifactSession, "session", "s", DefaultSession, "Session id")
	artifactCmd.AddCommand(artifactListCmd, artifactGetCmd, artifactSetCmd)
	rootCmd.AddCommand(artifactCmd)
}

func runArtifactList(cmd *cobra.Command, args []string) error {
	board, _, closeStore, err := openSession(cmd.Context(), artifactSession)
	if err != nil {
		return err
	}
	defer closeStore()

	artifacts := board.Artifacts()
	keys := make([]string, 0, len(artifacts))
	for k := range artifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		fmt.Fprintf(out, "No artifacts for session '%s'\n", artifactSession)
		return nil
	}
	for _, k := range keys {
		fmt.Fprintln(out, k)
	}
	return nil
}

func runArtifactGet(cmd *cobra.Command, args []string) error {
	board, _, closeStore, err := openSession(cmd.Context(), artifactSession)
	if err != nil {
		return err
	}
	defer closeStore()

	key := args[0]
	raw, ok := board.GetArtifact(key)
	if !ok {
		return printer.Error(
			fmt.Sprintf("artifact '%s' not found", key),
			fmt.Sprintf("Session '%s' has no artifact with that key.", artifactSession),
			[]string{fmt.Sprintf("List artifacts:\n  warren artifact list --session %s", artifactSession)},
		)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format artifact: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}

func runArtifactSet(cmd *cobra.Command, args []string) error {
	board, _, closeStore, err := openSession(cmd.Context(), artifactSession)
	if err != nil {
		return err
	}
	defer closeStore()

	key, value := args[0], args[1]

	var v any = value
	if json.Valid([]byte(value)) {
		v = json.RawMessage(value)
	}

	if err := board.SetArtifact(cmd.Context(), key, v); err != nil {
		return printer.Error("failed to store artifact", err.Error(), nil)
	}
	if err := board.Flush(cmd.Context()); err != nil {
		return printer.Error("failed to persist artifact", err.Error(), nil)
	}

	printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr()).Success("Stored '%s' on session '%s'\n", key, artifactSession)
	return nil
}
