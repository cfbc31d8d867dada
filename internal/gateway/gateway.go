// Package gateway is the boundary between agents and out-of-process tools.
// A call either yields the tool's text or a typed ToolError; failures never
// escape as Go errors so agents can record them like any other result.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownTool is wrapped by ToolErrors of kind KindUnknownTool.
var ErrUnknownTool = errors.New("unknown tool")

// ErrorKind classifies a tool failure.
type ErrorKind string

const (
	// KindTransport covers connection, spawn and protocol failures.
	KindTransport ErrorKind = "transport"

	// KindTool is an error reported by the tool itself.
	KindTool ErrorKind = "tool"

	// KindUnknownTool is a request for a tool the server does not expose.
	KindUnknownTool ErrorKind = "unknown_tool"
)

// ToolError is a typed tool failure.
type ToolError struct {
	Kind    ErrorKind
	Tool    string
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	return e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one invocation. Err is nil on success.
type Result struct {
	Text string
	Err  *ToolError
}

// Failed reports whether the invocation failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Output renders the result as the text an agent records: the tool text on
// success, "Tool Error: <message>" on failure.
func (r Result) Output() string {
	if r.Err != nil {
		return "Tool Error: " + r.Err.Message
	}
	return r.Text
}

// Invoker executes named tools.
type Invoker interface {
	Invoke(ctx context.Context, tool string, args map[string]any) Result
}

func failure(kind ErrorKind, tool string, err error) Result {
	return Result{Err: &ToolError{Kind: kind, Tool: tool, Message: err.Error(), Err: err}}
}

func toolFailure(tool, message string) Result {
	return Result{Err: &ToolError{Kind: KindTool, Tool: tool, Message: message}}
}

func unknownTool(tool string) Result {
	return failure(KindUnknownTool, tool, fmt.Errorf("%w: %s", ErrUnknownTool, tool))
}

// InvokerFunc adapts an ordinary function to the Invoker interface.
type InvokerFunc func(ctx context.Context, tool string, args map[string]any) Result

// Invoke calls f(ctx, tool, args).
func (f InvokerFunc) Invoke(ctx context.Context, tool string, args map[string]any) Result {
	return f(ctx, tool, args)
}
