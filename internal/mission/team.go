package mission

import (
	"github.com/dyluth/warren/internal/agent"
	"github.com/dyluth/warren/internal/config"
)

// BuildTeam assembles the orchestrator and its subordinates for one session
// from the agents section of cfg. Subordinates are registered in name order.
func BuildTeam(cfg *config.WarrenConfig, deps agent.Deps) *agent.Orchestrator {
	subordinates := make([]agent.Agent, 0, len(cfg.Agents))
	for _, name := range cfg.AgentNames() {
		subordinates = append(subordinates, agent.NewRole(roleSpec(cfg, name), deps))
	}

	return agent.NewOrchestrator(agent.Spec{
		Name:         cfg.Orchestrator.Name,
		Prompt:       cfg.Orchestrator.Prompt,
		ContextLimit: cfg.Orchestrator.ContextLimit,
	}, deps, subordinates, cfg.Orchestrator.MaxHops)
}

// roleSpec starts from the built-in spec for the agent's role and applies the
// configured overrides.
func roleSpec(cfg *config.WarrenConfig, name string) agent.Spec {
	a := cfg.Agents[name]

	var spec agent.Spec
	switch a.Role {
	case config.RoleAnalyst:
		spec = agent.AnalystSpec()
	case config.RoleScientist:
		spec = agent.ScientistSpec()
	}

	spec.Name = name
	spec.ReportTo = cfg.Orchestrator.Name
	if a.Description != "" {
		spec.Description = a.Description
	}
	if a.Prompt != "" {
		spec.Prompt = a.Prompt
	}
	if len(a.Tools) > 0 {
		spec.Tools = a.Tools
	}
	spec.ContextLimit = a.ContextLimit
	if spec.ContextLimit == 0 {
		spec.ContextLimit = cfg.Orchestrator.ContextLimit
	}

	return spec
}
