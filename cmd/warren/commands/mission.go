package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dyluth/warren/internal/mission"
	"github.com/dyluth/warren/internal/printer"
	"github.com/spf13/cobra"
)

var (
	missionSession string
	missionTimeout time.Duration
)

var missionCmd = &cobra.Command{
	Use:   "mission OBJECTIVE...",
	Short: "Run one objective through the agent team",
	Long: `Run one objective through the agent team and print the result.

The orchestrator either answers directly or delegates to one of its agents.
Every step is recorded on the session's blackboard, so later missions on the
same session see the earlier conversation.

Examples:
  # Ask the default session
  warren mission "What were total sales in February?"

  # Use a named session and a deadline
  warren mission --session q1-review --timeout 2m "Average order value?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMission,
}

func init() {
	missionCmd.Flags().StringVarP(&missionSession, "session", "s", DefaultSession, "Session id")
	missionCmd.Flags().DurationVar(&missionTimeout, "timeout", 0, "Abort the mission after this long (0 = no limit)")
	rootCmd.AddCommand(missionCmd)
}

func runMission(cmd *cobra.Command, args []string) error {
	ctx, cancel := missionContext(cmd.Context(), missionTimeout)
	defer cancel()

	s, err := newStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	objective := strings.Join(args, " ")
	out, err := s.hub.Run(ctx, missionSession, objective)
	if err != nil {
		return missionError(missionSession, err)
	}

	printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr()).Result(out.Result, outcomeFooter(out))
	return nil
}

// missionContext cancels on SIGINT/SIGTERM and, when timeout > 0, after timeout.
func missionContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func missionError(sessionID string, err error) error {
	return printer.ErrorWithContext(
		"mission failed",
		err.Error(),
		map[string]string{"session": sessionID},
		[]string{"Session ids are letters, digits, '.', '_' and '-', starting with a letter or digit"},
	)
}

func outcomeFooter(out mission.Outcome) string {
	id := out.MissionID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("mission %s on '%s': %d delegation(s) in %s",
		id, out.SessionID, out.Hops, out.Duration.Round(time.Millisecond))
}
