package config

// Default bounds applied when agentic.yaml leaves a value unset.
const (
	DefaultMaxIterations      = 50
	DefaultRecursionLimit     = 300
	DefaultWorkflowTimeout    = 1200
	DefaultToolTimeout        = 30
	DefaultAgentTimeout       = 300
	DefaultEndpointTimeout    = 120
	DefaultEndpointRetries    = 3
	DefaultHealthInterval     = 30
	DefaultContextWindow      = 3072
	DefaultReservedResponse   = 1024
	DefaultComplexityCutoff   = 0.7
	DefaultMaxConcurrent      = 4
	DefaultClassifyConfidence = 0.5
)

func boolPtr(b bool) *bool { return &b }

// DefaultConfig returns the built-in configuration. User YAML values are
// merged on top; unset fields keep these values.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Mode:      ModeActiveActive,
			ModelName: "qwen2.5-coder-32b-instruct",
			Endpoints: []EndpointConfig{
				{
					Name:           "local",
					URL:            "http://localhost:8080/v1",
					TimeoutSeconds: DefaultEndpointTimeout,
					MaxRetries:     DefaultEndpointRetries,
					Priority:       1,
				},
			},
			Temperature:                0.2,
			MaxTokens:                  2048,
			TopP:                       0.95,
			ContextWindow:              DefaultContextWindow,
			ReservedResponseTokens:     DefaultReservedResponse,
			HealthCheckIntervalSeconds: DefaultHealthInterval,
			ChainOfThought:             ChainOfThoughtConfig{Enabled: boolPtr(true)},
		},
		Workflows: WorkflowsConfig{
			MaxIterations:      DefaultMaxIterations,
			RecursionLimit:     DefaultRecursionLimit,
			TimeoutSeconds:     DefaultWorkflowTimeout,
			ToolTimeoutSeconds: DefaultToolTimeout,
			SubAgents: SubAgentsConfig{
				Enabled:             boolPtr(true),
				ComplexityThreshold: DefaultComplexityCutoff,
				MaxConcurrent:       DefaultMaxConcurrent,
				AgentTimeoutSeconds: DefaultAgentTimeout,
			},
		},
		Workspace: WorkspaceConfig{
			DefaultPath: "./workspace",
			Isolation:   false,
		},
		Safety: SafetyConfig{
			CommandAllowlist: []string{
				"ls", "cat", "head", "tail", "grep", "find", "wc",
				"python", "python3", "pip", "pytest", "go", "git",
				"node", "npm", "make", "echo", "pwd", "which",
			},
			CommandDenylist: []string{
				"sudo", "su", "shutdown", "reboot", "mkfs", "dd",
				"chown", "chmod", "kill", "pkill",
			},
			ProtectedPatterns: []string{
				"/etc/**", "/usr/**", "/bin/**", "/sbin/**", "/boot/**",
				"**/.ssh/**", "**/.aws/**", "**/id_rsa*",
			},
			DangerousPatterns: []string{
				"rm -rf /", "rm -rf ~", ":(){", "> /dev/sd",
				"curl | sh", "curl|sh", "wget | sh", "| bash",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
		Store: StoreConfig{
			Enabled:  boolPtr(false),
			Host:     "localhost",
			Port:     5432,
			User:     "agentic",
			Database: "agentic",
			SSLMode:  "disable",
		},
	}
}
