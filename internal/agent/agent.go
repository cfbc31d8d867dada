// Package agent implements the reasoning roles that collaborate on a mission.
//
// Every role is a Role: the variants differ only in the prompt, description
// and tool binding supplied at construction. The Orchestrator wraps a Role and
// adds delegation to its subordinates.
package agent

import (
	"context"

	"github.com/dyluth/warren/internal/completion"
	"github.com/dyluth/warren/internal/directive"
	"github.com/dyluth/warren/internal/gateway"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/sirupsen/logrus"
)

// DefaultContextLimit is the number of recent entries shown to a role.
const DefaultContextLimit = 10

// LastToolResultKey is the artifact holding the most recent tool invocation.
const LastToolResultKey = "last_tool_result"

// Agent is a participant that turns an input message into a text reply.
// Process never fails: failures are reported in the returned text.
type Agent interface {
	Name() string
	Process(ctx context.Context, input string) string
}

// ToolRecord is the value stored under LastToolResultKey.
type ToolRecord struct {
	Agent      string         `json:"agent"`
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Output     string         `json:"output"`
	Failed     bool           `json:"failed"`
}

// Spec is the role-specific data of a Role.
type Spec struct {
	Name        string
	Description string

	// Prompt overrides the built-in prompt when non-empty.
	Prompt string

	// Tools lists the gateway tools this role may invoke.
	Tools []string

	// ContextLimit is the number of recent entries included in each
	// completion (default DefaultContextLimit).
	ContextLimit int

	// ReportTo is the participant tool results are addressed to
	// (default blackboard.ParticipantOrchestrator).
	ReportTo string
}

// Deps are the shared collaborators injected into every role.
type Deps struct {
	Board   *blackboard.Blackboard
	LLM     completion.Service
	Gateway gateway.Invoker
	Logger  logrus.FieldLogger
}

// Role is the uniform Agent implementation.
type Role struct {
	name         string
	description  string
	prompt       string
	tools        map[string]bool
	contextLimit int
	reportTo     string

	board   *blackboard.Blackboard
	llm     completion.Service
	gateway gateway.Invoker
	logger  logrus.FieldLogger
}

// NewRole creates a Role from spec and deps.
func NewRole(spec Spec, deps Deps) *Role {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &Role{
		name:         spec.Name,
		description:  spec.Description,
		prompt:       spec.Prompt,
		tools:        make(map[string]bool, len(spec.Tools)),
		contextLimit: spec.ContextLimit,
		reportTo:     spec.ReportTo,
		board:        deps.Board,
		llm:          deps.LLM,
		gateway:      deps.Gateway,
		logger:       logger.WithFields(logrus.Fields{"component": "agent", "agent": spec.Name}),
	}

	for _, t := range spec.Tools {
		r.tools[t] = true
	}
	if r.contextLimit <= 0 {
		r.contextLimit = DefaultContextLimit
	}
	if r.reportTo == "" {
		r.reportTo = blackboard.ParticipantOrchestrator
	}
	if r.prompt == "" {
		r.prompt = genericPrompt(spec.Name, spec.Tools)
	}

	return r
}

// AnalystSpec is the built-in SQLAnalyst role, bound to query_sales_db.
func AnalystSpec() Spec {
	return Spec{
		Name:        AnalystName,
		Description: "Can query the sales database with SQL.",
		Prompt:      analystPrompt,
		Tools:       []string{AnalystTool},
	}
}

// ScientistSpec is the built-in DataScientist role, bound to execute_python.
func ScientistSpec() Spec {
	return Spec{
		Name:        ScientistName,
		Description: "Can write Python code to analyze data.",
		Prompt:      scientistPrompt,
		Tools:       []string{ScientistTool},
	}
}

// NewAnalyst creates the SQLAnalyst role.
func NewAnalyst(deps Deps) *Role {
	return NewRole(AnalystSpec(), deps)
}

// NewScientist creates the DataScientist role.
func NewScientist(deps Deps) *Role {
	return NewRole(ScientistSpec(), deps)
}

// Name returns the role identifier used as entry source.
func (r *Role) Name() string { return r.name }

// Description is shown to the orchestrator when it picks a delegate.
func (r *Role) Description() string { return r.description }

// Prompt returns the system instruction sent with every completion.
func (r *Role) Prompt() string { return r.prompt }

// CanUse reports whether the role may invoke tool.
func (r *Role) CanUse(tool string) bool {
	return r.gateway != nil && r.tools[tool]
}

// Process runs one reasoning step: complete, record the thought, then act on
// a tool directive or return the completion.
func (r *Role) Process(ctx context.Context, input string) string {
	text, d, err := r.think(ctx, input)
	if err != nil {
		return completionFailure(err)
	}

	log := r.log(ctx).WithField("directive", d.Type)

	switch d.Type {
	case directive.ToolCall:
		if !r.CanUse(d.Tool) {
			log.WithField("tool", d.Tool).Warn("Ignoring call to a tool this role is not bound to")
			return text
		}
		return r.invoke(ctx, d.Tool, d.Parameters)
	case directive.ParseError:
		log.WithError(d.Err).Warn("Could not parse directive")
		return parseFailure(d.Err)
	default:
		return text
	}
}

// think asks the completion service for a reply and records it as a thought.
// Nothing is recorded when the completion fails.
func (r *Role) think(ctx context.Context, input string) (string, directive.Result, error) {
	req := completion.Request{
		Role:       r.name,
		RolePrompt: r.prompt,
		Context:    r.board.RecentContext(r.contextLimit),
		Input:      input,
	}

	text, err := r.llm.Complete(ctx, req)
	if err != nil {
		r.log(ctx).WithError(err).Error("Completion failed")
		return "", directive.Result{}, err
	}

	r.board.Append(ctx, r.name, blackboard.ParticipantSelf, text, blackboard.KindThought)

	return text, directive.Extract(text), nil
}

// invoke calls the gateway, records the output as data for the orchestrator
// and updates the last_tool_result artifact.
func (r *Role) invoke(ctx context.Context, tool string, params map[string]any) string {
	log := r.log(ctx).WithField("tool", tool)
	log.Info("Invoking tool")

	res := r.gateway.Invoke(ctx, tool, params)
	output := res.Output()

	if res.Failed() {
		log.WithField("kind", res.Err.Kind).WithError(res.Err).Warn("Tool call failed")
	}

	r.board.Append(ctx, r.name, r.reportTo, output, blackboard.KindData)

	record := ToolRecord{
		Agent:      r.name,
		Tool:       tool,
		Parameters: params,
		Output:     output,
		Failed:     res.Failed(),
	}
	if err := r.board.SetArtifact(ctx, LastToolResultKey, record); err != nil {
		log.WithError(err).Warn("Failed to record tool result artifact")
	}

	return output
}

func (r *Role) log(ctx context.Context) logrus.FieldLogger {
	if id := MissionID(ctx); id != "" {
		return r.logger.WithField("mission_id", id)
	}
	return r.logger
}

func completionFailure(err error) string {
	return "Error: completion failed: " + err.Error()
}

func parseFailure(err error) string {
	return "Error parsing directive: " + err.Error()
}

type missionKey struct{}

// WithMissionID returns a context carrying the mission id for log correlation.
func WithMissionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, missionKey{}, id)
}

// MissionID returns the mission id carried by ctx, or "".
func MissionID(ctx context.Context) string {
	id, _ := ctx.Value(missionKey{}).(string)
	return id
}
