// Package config loads and validates the agentic runtime configuration.
// Configuration comes from a single agentic.yaml file with {{.VAR}}
// environment expansion, merged over built-in defaults.
package config

import "time"

// EndpointMode selects how the LLM client picks among configured endpoints.
type EndpointMode string

const (
	// ModeActiveActive spreads requests across all healthy endpoints.
	ModeActiveActive EndpointMode = "active-active"
	// ModePrimarySecondary prefers the highest-priority healthy endpoint.
	ModePrimarySecondary EndpointMode = "primary-secondary"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Workflows     WorkflowsConfig     `yaml:"workflows"`
	Workspace     WorkspaceConfig     `yaml:"workspace"`
	Safety        SafetyConfig        `yaml:"safety"`
	Observability ObservabilityConfig `yaml:"observability"`
	Store         StoreConfig         `yaml:"store"`
}

// LLMConfig holds the endpoint pool and request defaults.
type LLMConfig struct {
	Mode      EndpointMode     `yaml:"mode"`
	ModelName string           `yaml:"model_name"`
	Endpoints []EndpointConfig `yaml:"endpoints"`

	// Request defaults applied when the caller does not override them.
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float32 `yaml:"top_p"`

	// Conversation budget: prompt tokens are capped at
	// ContextWindow - ReservedResponseTokens.
	ContextWindow          int `yaml:"context_window"`
	ReservedResponseTokens int `yaml:"reserved_response_tokens"`

	HealthCheckIntervalSeconds int `yaml:"health_check_interval_seconds"`

	ChainOfThought ChainOfThoughtConfig `yaml:"chain_of_thought"`
}

// HealthCheckInterval returns the endpoint probe period.
func (c *LLMConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSeconds) * time.Second
}

// MaxPromptTokens returns the token budget available to conversation history.
func (c *LLMConfig) MaxPromptTokens() int {
	return c.ContextWindow - c.ReservedResponseTokens
}

// EndpointConfig describes one OpenAI-compatible endpoint.
type EndpointConfig struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	APIKeyEnv      string `yaml:"api_key_env,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	Priority       int    `yaml:"priority"`
}

// Timeout returns the per-request deadline for this endpoint.
func (e *EndpointConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// ChainOfThoughtConfig toggles surfacing of <think> blocks as cot
// events.
type ChainOfThoughtConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled defaults to true when unset.
func (c *ChainOfThoughtConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// WorkflowsConfig bounds workflow execution.
type WorkflowsConfig struct {
	MaxIterations      int             `yaml:"max_iterations"`
	RecursionLimit     int             `yaml:"recursion_limit"`
	TimeoutSeconds     int             `yaml:"timeout_seconds"`
	ToolTimeoutSeconds int             `yaml:"tool_timeout_seconds"`
	SubAgents          SubAgentsConfig `yaml:"sub_agents"`
}

// Timeout returns the per-task ceiling.
func (c *WorkflowsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ToolTimeout returns the per-tool-invocation deadline.
func (c *WorkflowsConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

// EffectiveRecursionLimit returns the node-transition ceiling, raised to
// at least MaxIterations*6 so the limit can never undercut the iteration
// budget (plan + check_complexity + execute/reflect pairs + routing edges).
func (c *WorkflowsConfig) EffectiveRecursionLimit() int {
	floor := c.MaxIterations * 6
	if c.RecursionLimit < floor {
		return floor
	}
	return c.RecursionLimit
}

// SubAgentsConfig gates the sub-agent subsystem.
type SubAgentsConfig struct {
	Enabled             *bool   `yaml:"enabled,omitempty"`
	ComplexityThreshold float64 `yaml:"complexity_threshold"`
	MaxConcurrent       int     `yaml:"max_concurrent"`
	AgentTimeoutSeconds int     `yaml:"agent_timeout_seconds"`
}

// IsEnabled reports whether sub-agent spawning is allowed.
func (c *SubAgentsConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// AgentTimeout returns the per-sub-agent deadline.
func (c *SubAgentsConfig) AgentTimeout() time.Duration {
	return time.Duration(c.AgentTimeoutSeconds) * time.Second
}

// WorkspaceConfig scopes task file operations.
type WorkspaceConfig struct {
	DefaultPath string `yaml:"default_path"`
	// Isolation creates a per-session subdirectory under DefaultPath.
	Isolation bool `yaml:"isolation"`
}

// SafetyConfig feeds the safety checker policy.
type SafetyConfig struct {
	CommandAllowlist  []string `yaml:"command_allowlist"`
	CommandDenylist   []string `yaml:"command_denylist"`
	ProtectedPatterns []string `yaml:"protected_patterns"`
	DangerousPatterns []string `yaml:"dangerous_patterns"`
}

// ObservabilityConfig configures the process logger.
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`
}

// StoreConfig configures the optional checkpoint/session store.
type StoreConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// IsEnabled reports whether the persistent store is configured.
func (c *StoreConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}
