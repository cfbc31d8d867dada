package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dyluth/warren/internal/printer"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run missions interactively, one per input line",
	Long: `Read objectives from standard input and run each as a mission on the
same session. Type 'exit' or 'quit' (or send EOF) to stop.

Examples:
  warren chat --session demo
  echo "How many laptops were sold?" | warren chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", DefaultSession, "Session id")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := missionContext(cmd.Context(), 0)
	defer cancel()

	s, err := newStack(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	p := printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	interactive := stdinIsTerminal(cmd)

	if interactive {
		p.Info("Session '%s'. Type 'exit' or 'quit' to leave.\n", chatSession)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Fprint(cmd.OutOrStdout(), "\n> ")
		}
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		out, err := s.hub.Run(ctx, chatSession, line)
		if err != nil {
			return missionError(chatSession, err)
		}
		p.Result(out.Result, "")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// stdinIsTerminal reports whether the prompt should be shown.
func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
