package commands

import (
	"fmt"

	"github.com/dyluth/warren/internal/toolserver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Run or inspect the MCP tool server",
}

var toolsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent tools over MCP on stdio",
	Long: `Serve add, multiply, query_sales_db and execute_python over MCP on
standard input/output. This is what the stdio tool transport launches;
it can also be registered with any MCP client.`,
	Args: cobra.NoArgs,
	RunE: runToolsServe,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools agents can reach through the configured transport",
	Args:  cobra.NoArgs,
	RunE:  runToolsList,
}

func init() {
	toolsCmd.AddCommand(toolsServeCmd, toolsListCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runToolsServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, cleanup, err := toolserver.New(toolserver.Options{
		Python:        cfg.Tools.Python,
		PythonTimeout: cfg.Tools.PythonTimeout,
		Logger:        logrus.StandardLogger(),
	})
	defer cleanup()
	if err != nil {
		return err
	}

	return toolserver.ServeStdio(s)
}

func runToolsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gw, closeGateway, err := newGateway(cfg)
	defer closeGateway()
	if err != nil {
		return err
	}

	names, err := gw.Tools(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
