// Package toolserver is the MCP server that hosts warren's external tools.
//
// It is served on stdio by `warren tools serve` and reached by agents through
// the gateway package; tests wrap it in an in-process client.
package toolserver

import (
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// Name is the MCP server name reported during initialization.
const Name = "warren-tools"

// Version is set at build time via ldflags.
var Version = "dev"

// Tool names exposed by the server.
const (
	ToolAdd           = "add"
	ToolMultiply      = "multiply"
	ToolQuerySalesDB  = "query_sales_db"
	ToolExecutePython = "execute_python"
)

// Options configures New.
type Options struct {
	// Python is the interpreter used by execute_python (default "python3").
	Python string

	// PythonTimeout bounds a single execute_python call (default 60s).
	PythonTimeout time.Duration

	Logger logrus.FieldLogger
}

// New creates the MCP server with every tool registered.
// The returned cleanup function closes the sales database and is always non-nil.
func New(opts Options) (*server.MCPServer, func(), error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "toolserver")

	sales, err := OpenSalesDB()
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open sales database: %w", err)
	}
	cleanup := func() {
		if err := sales.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close sales database")
		}
	}

	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	add := NewArithmeticTool(ToolAdd, "Add two numbers", func(a, b float64) float64 { return a + b })
	s.AddTool(add.Definition(), add.Handle)

	multiply := NewArithmeticTool(ToolMultiply, "Multiply two numbers", func(a, b float64) float64 { return a * b })
	s.AddTool(multiply.Definition(), multiply.Handle)

	query := NewQueryTool(sales, logger)
	s.AddTool(query.Definition(), query.Handle)

	python := NewPythonTool(opts.Python, opts.PythonTimeout, logger)
	s.AddTool(python.Definition(), python.Handle)

	return s, cleanup, nil
}

// ServeStdio runs s on stdin/stdout until the input stream closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
