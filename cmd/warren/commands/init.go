package commands

import (
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	initDir   string
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter warren.yml and completion script",
	Long: `Initialize a Warren project with a default configuration.

Creates:
  • warren.yml        - store, completion backend, tools and agent team
  • warren-script.yml - canned completions for offline runs

Use --force to overwrite existing files.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to initialize")
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	created, err := scaffold.Initialize(initDir, forceInit)
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}

	scaffold.PrintSuccess(cmd.OutOrStdout(), created)
	return nil
}
