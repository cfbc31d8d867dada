package toolserver

import (
	"context"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
)

// ArithmeticTool applies a binary operation to the numbers a and b.
type ArithmeticTool struct {
	name        string
	description string
	op          func(a, b float64) float64
}

// NewArithmeticTool creates an ArithmeticTool.
func NewArithmeticTool(name, description string, op func(a, b float64) float64) *ArithmeticTool {
	return &ArithmeticTool{name: name, description: description, op: op}
}

// Definition returns the MCP tool definition.
func (t *ArithmeticTool) Definition() mcp.Tool {
	return mcp.NewTool(t.name,
		mcp.WithDescription(t.description),
		mcp.WithNumber("a", mcp.Required(), mcp.Description("First operand")),
		mcp.WithNumber("b", mcp.Required(), mcp.Description("Second operand")),
	)
}

// Handle processes the tool call. Integral results are printed without a
// fractional part.
func (t *ArithmeticTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := req.RequireFloat("a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := req.RequireFloat("b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(strconv.FormatFloat(t.op(a, b), 'f', -1, 64)), nil
}
