package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "warren.yml"

// Environment overrides.
const (
	EnvRedisURL     = "WARREN_REDIS_URL"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

// Store backends
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Completion providers
const (
	ProviderGemini = "gemini"
	ProviderScript = "script"
)

// Tool transports
const (
	TransportStdio     = "stdio"
	TransportInProcess = "inprocess"
)

// Agent roles
const (
	RoleAnalyst   = "analyst"
	RoleScientist = "scientist"
	RoleCustom    = "custom"
)

// WarrenConfig represents the top-level warren.yml configuration
type WarrenConfig struct {
	Version      string             `yaml:"version" validate:"eq=1.0"`
	Store        StoreConfig        `yaml:"store"`
	LLM          LLMConfig          `yaml:"llm"`
	Tools        ToolsConfig        `yaml:"tools"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Agents       map[string]Agent   `yaml:"agents" validate:"dive"`
	Server       ServerConfig       `yaml:"server"`
}

// StoreConfig selects where sessions are persisted
type StoreConfig struct {
	Backend  string `yaml:"backend" validate:"oneof=file redis"`
	Dir      string `yaml:"dir"`       // file backend: one <session>.json per session
	RedisURL string `yaml:"redis_url"` // redis backend: redis://host:port/db
}

// LLMConfig selects the completion backend
type LLMConfig struct {
	Provider    string   `yaml:"provider" validate:"oneof=gemini script"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Script      string   `yaml:"script,omitempty"` // script provider: path to a YAML reply script

	// APIKey is only ever read from the environment.
	APIKey string `yaml:"-"`
}

// ToolsConfig specifies how agents reach the tool server
type ToolsConfig struct {
	Transport     string        `yaml:"transport" validate:"oneof=stdio inprocess"`
	Command       []string      `yaml:"command,omitempty"` // stdio: server command (default: this binary + "tools serve")
	Python        string        `yaml:"python,omitempty"`
	PythonTimeout time.Duration `yaml:"python_timeout,omitempty" validate:"gte=0"`
}

// OrchestratorConfig specifies orchestrator behavior
type OrchestratorConfig struct {
	Name         string `yaml:"name"`
	Prompt       string `yaml:"prompt,omitempty"`
	MaxHops      int    `yaml:"max_hops" validate:"gte=0"`      // delegations per mission (default 1)
	ContextLimit int    `yaml:"context_limit" validate:"gte=0"` // recent entries shown to each completion (default 10)
}

// Agent represents a single subordinate agent configuration
type Agent struct {
	Role         string   `yaml:"role" validate:"oneof=analyst scientist custom"`
	Description  string   `yaml:"description,omitempty"`
	Prompt       string   `yaml:"prompt,omitempty"`
	Tools        []string `yaml:"tools,omitempty"`
	ContextLimit int      `yaml:"context_limit,omitempty" validate:"gte=0"`
}

// ServerConfig configures `warren serve`
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no warren.yml exists:
// file store, Gemini, in-process tools, SQLAnalyst and DataScientist.
func Default() *WarrenConfig {
	c := &WarrenConfig{
		Version: "1.0",
		Agents: map[string]Agent{
			"SQLAnalyst":    {Role: RoleAnalyst},
			"DataScientist": {Role: RoleScientist},
		},
	}
	c.applyDefaults()
	return c
}

// AgentNames returns the configured agent names, sorted.
func (c *WarrenConfig) AgentNames() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyEnv overlays environment overrides onto the configuration.
func (c *WarrenConfig) ApplyEnv() {
	if url := os.Getenv(EnvRedisURL); url != "" {
		c.Store.Backend = BackendRedis
		c.Store.RedisURL = url
	}
	if key := os.Getenv(EnvGeminiAPIKey); key != "" {
		c.LLM.APIKey = key
	}
}

func (c *WarrenConfig) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = BackendFile
	}
	if c.Store.Dir == "" {
		c.Store.Dir = blackboard.DefaultStoreDir
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderGemini
	}
	if c.Tools.Transport == "" {
		c.Tools.Transport = TransportInProcess
	}
	if c.Orchestrator.Name == "" {
		c.Orchestrator.Name = blackboard.ParticipantOrchestrator
	}
	if c.Orchestrator.MaxHops == 0 {
		c.Orchestrator.MaxHops = 1
	}
	if c.Orchestrator.ContextLimit == 0 {
		c.Orchestrator.ContextLimit = 10
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	for name, a := range c.Agents {
		if a.Role == "" {
			a.Role = RoleCustom
			c.Agents[name] = a
		}
	}
}

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate applies defaults, then performs strict validation on the configuration
func (c *WarrenConfig) Validate() error {
	c.applyDefaults()

	if err := validate.Struct(c); err != nil {
		return describeValidation(err)
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}

	if c.Store.Backend == BackendRedis && c.Store.RedisURL == "" {
		return fmt.Errorf("store.redis_url is required when store.backend is 'redis' (or set %s)", EnvRedisURL)
	}

	if c.LLM.Provider == ProviderScript && c.LLM.Script == "" {
		return fmt.Errorf("llm.script is required when llm.provider is 'script'")
	}

	if c.Orchestrator.Name == blackboard.ParticipantUser || c.Orchestrator.Name == blackboard.ParticipantSelf {
		return fmt.Errorf("orchestrator name '%s' is reserved", c.Orchestrator.Name)
	}

	reserved := map[string]bool{
		blackboard.ParticipantUser: true,
		blackboard.ParticipantSelf: true,
		c.Orchestrator.Name:        true,
	}
	for _, name := range c.AgentNames() {
		if reserved[name] {
			return fmt.Errorf("agent name '%s' is reserved", name)
		}
		agent := c.Agents[name]
		if err := agent.Validate(name); err != nil {
			return err
		}
	}

	return nil
}

// Validate performs validation on a single agent configuration
func (a *Agent) Validate(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("invalid agent name '%s': must be a single word", name)
	}

	if a.Role == RoleCustom && len(a.Tools) == 0 && a.Prompt == "" {
		return fmt.Errorf("agent '%s': custom agents need a prompt or at least one tool", name)
	}

	for _, tool := range a.Tools {
		if strings.TrimSpace(tool) == "" {
			return fmt.Errorf("agent '%s': tool names cannot be empty", name)
		}
	}

	return nil
}

// describeValidation turns validator errors into yaml-path messages.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "WarrenConfig.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s=%s' (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Load reads and validates warren.yml from the specified path
func Load(path string) (*WarrenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config WarrenConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*WarrenConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		c := Default()
		c.ApplyEnv()
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return c, nil
	}
	return Load(path)
}
