// Package completion is the text-generation boundary agents reason through.
// A Service maps (role prompt, context, input) to free text; it has no retry
// policy and any returned text is treated as a valid answer.
package completion

import (
	"context"
	"fmt"
)

// Request is one completion call.
type Request struct {
	// Role is the name of the calling agent, used by scripted backends and logs.
	Role string

	// RolePrompt is the agent's system instruction.
	RolePrompt string

	// Context is the rendered recent interaction history.
	Context string

	// Input is the current task for the agent.
	Input string
}

// Service produces a completion for a request.
type Service interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ServiceFunc adapts an ordinary function to the Service interface.
type ServiceFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f(ctx, req).
func (f ServiceFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// UserContent renders the request body sent to a model alongside the system
// instruction.
func UserContent(req Request) string {
	return fmt.Sprintf("History:\n%s\n\nCurrent Task: %s", req.Context, req.Input)
}
