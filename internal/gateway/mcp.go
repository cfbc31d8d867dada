package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// ClientName is reported to tool servers during initialization.
const ClientName = "warren"

// Dialer creates a started MCP client.
type Dialer func(ctx context.Context) (*client.Client, error)

// StdioDialer spawns command with args and speaks MCP over its stdin/stdout.
func StdioDialer(command string, args []string, env []string) Dialer {
	return func(ctx context.Context) (*client.Client, error) {
		c, err := client.NewStdioMCPClient(command, env, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to start tool server %q: %w", command, err)
		}
		return c, nil
	}
}

// InProcessDialer connects to an MCP server running in this process.
func InProcessDialer(srv *server.MCPServer) Dialer {
	return func(ctx context.Context) (*client.Client, error) {
		c, err := client.NewInProcessClient(srv)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to start in-process client: %w", err)
		}
		return c, nil
	}
}

// MCPGateway invokes tools on an MCP server.
//
// It connects lazily on the first call, caches the server's tool list and
// reuses the session for later calls. After a transport failure the session
// is dropped and the next call reconnects. Calls are serialized.
type MCPGateway struct {
	dial   Dialer
	logger logrus.FieldLogger

	mu     sync.Mutex
	client *client.Client
	tools  map[string]mcp.Tool
}

// NewMCPGateway creates a gateway that connects with dial.
func NewMCPGateway(dial Dialer, logger logrus.FieldLogger) *MCPGateway {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MCPGateway{
		dial:   dial,
		logger: logger.WithField("component", "gateway"),
	}
}

// Invoke calls tool with args.
func (g *MCPGateway) Invoke(ctx context.Context, tool string, args map[string]any) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	log := g.logger.WithField("tool", tool)

	if err := g.connectLocked(ctx); err != nil {
		log.WithError(err).Warn("Tool server unavailable")
		return failure(KindTransport, tool, err)
	}

	if _, ok := g.tools[tool]; !ok {
		log.Warn("Rejected call to unknown tool")
		return unknownTool(tool)
	}

	var req mcp.CallToolRequest
	req.Params.Name = tool
	req.Params.Arguments = args

	res, err := g.client.CallTool(ctx, req)
	if err != nil {
		log.WithError(err).Warn("Tool call failed; dropping connection")
		g.resetLocked()
		return failure(KindTransport, tool, fmt.Errorf("tool call failed: %w", err))
	}

	text := joinText(res)
	if res.IsError {
		log.WithField("error", text).Info("Tool reported an error")
		return toolFailure(tool, text)
	}

	log.WithField("bytes", len(text)).Debug("Tool call succeeded")
	return Result{Text: text}
}

// Tools returns the sorted names of the tools the server exposes.
func (g *MCPGateway) Tools(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.connectLocked(ctx); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(g.tools))
	for name := range g.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close drops the connection, stopping a spawned tool server.
func (g *MCPGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	g.tools = nil
	return err
}

// connectLocked establishes and initializes a session if none is open.
// Caller must hold g.mu.
func (g *MCPGateway) connectLocked(ctx context.Context) error {
	if g.client != nil {
		return nil
	}

	c, err := g.dial(ctx)
	if err != nil {
		return err
	}

	var initReq mcp.InitializeRequest
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: ClientName, Version: "1.0.0"}

	initRes, err := c.Initialize(ctx, initReq)
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to initialize tool session: %w", err)
	}

	list, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make(map[string]mcp.Tool, len(list.Tools))
	for _, t := range list.Tools {
		tools[t.Name] = t
	}

	g.client = c
	g.tools = tools

	g.logger.WithFields(logrus.Fields{
		"server": initRes.ServerInfo.Name,
		"tools":  len(tools),
	}).Info("Connected to tool server")

	return nil
}

// resetLocked closes the current session. Caller must hold g.mu.
func (g *MCPGateway) resetLocked() {
	if g.client != nil {
		if err := g.client.Close(); err != nil {
			g.logger.WithError(err).Debug("Error closing tool session")
		}
	}
	g.client = nil
	g.tools = nil
}

func joinText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if text, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
