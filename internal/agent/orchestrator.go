package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/warren/internal/directive"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
)

// DefaultMaxHops is the number of delegations a mission may make.
const DefaultMaxHops = 1

// Orchestrator receives user objectives and delegates them to subordinates.
type Orchestrator struct {
	role         *Role
	subordinates map[string]Agent
	order        []string
	maxHops      int
}

// Mission is the outcome of one RunMission call.
type Mission struct {
	ID       string
	Result   string
	Hops     int
	Duration time.Duration
}

// NewOrchestrator creates an orchestrator over subordinates.
// When spec.Prompt is empty the prompt lists every subordinate with its
// description. maxHops <= 0 selects DefaultMaxHops.
func NewOrchestrator(spec Spec, deps Deps, subordinates []Agent, maxHops int) *Orchestrator {
	if spec.Name == "" {
		spec.Name = blackboard.ParticipantOrchestrator
	}
	if spec.Prompt == "" {
		spec.Prompt = orchestratorPrompt(subordinates)
	}
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	o := &Orchestrator{
		role:         NewRole(spec, deps),
		subordinates: make(map[string]Agent, len(subordinates)),
		maxHops:      maxHops,
	}
	for _, sub := range subordinates {
		o.subordinates[sub.Name()] = sub
		o.order = append(o.order, sub.Name())
	}
	return o
}

// Name returns the orchestrator's participant name.
func (o *Orchestrator) Name() string { return o.role.Name() }

// Prompt returns the orchestrator's system instruction.
func (o *Orchestrator) Prompt() string { return o.role.Prompt() }

// Subordinates returns the names of the delegates in registration order.
func (o *Orchestrator) Subordinates() []string {
	return append([]string(nil), o.order...)
}

// Process lets an orchestrator act as a plain Agent.
func (o *Orchestrator) Process(ctx context.Context, input string) string {
	return o.RunMission(ctx, input)
}

// RunMission records the objective, asks the orchestrator for a plan and, on
// a delegation to a known subordinate, returns "Mission Result: <result>".
// Any other reply is returned as the orchestrator's own answer.
func (o *Orchestrator) RunMission(ctx context.Context, objective string) string {
	return o.Run(ctx, objective).Result
}

// Run is RunMission with the mission metadata.
func (o *Orchestrator) Run(ctx context.Context, objective string) (m Mission) {
	m.ID = uuid.New().String()
	start := time.Now()
	defer func() { m.Duration = time.Since(start) }()

	ctx = WithMissionID(ctx, m.ID)
	log := o.role.log(ctx)
	log.WithField("objective", objective).Info("Mission received")

	o.role.board.Append(ctx, blackboard.ParticipantUser, o.Name(), objective, blackboard.KindText)

	input := objective
	for {
		text, d, err := o.role.think(ctx, input)
		if err != nil {
			m.Result = completionFailure(err)
			return m
		}

		switch d.Type {
		case directive.Delegation:
			sub, ok := o.subordinates[d.Target]
			if !ok {
				log.WithField("target", d.Target).Warn("Delegation to unknown agent; answering directly")
				m.Result = text
				return m
			}

			log.WithField("target", d.Target).Info("Delegating")
			result := sub.Process(ctx, d.Message)
			m.Hops++

			if m.Hops >= o.maxHops {
				m.Result = "Mission Result: " + result
				log.WithField("hops", m.Hops).Info("Mission complete")
				return m
			}
			input = followUp(objective, d.Target, result)

		case directive.ParseError:
			log.WithError(d.Err).Warn("Could not parse plan")
			m.Result = parseFailure(d.Err)
			return m

		default:
			m.Result = text
			log.WithField("hops", m.Hops).Info("Mission answered directly")
			return m
		}
	}
}

func followUp(objective, from, result string) string {
	return fmt.Sprintf("%s replied:\n%s\n\nOriginal objective: %s\nDelegate again or answer the user directly.", from, result, objective)
}
