package config

import "net/url"

// Validate checks resolved configuration invariants before any component
// is constructed. Fails fast with a ValidationError naming the field.
func Validate(cfg *Config) error {
	if len(cfg.LLM.Endpoints) == 0 {
		return &ValidationError{Field: "llm.endpoints", Reason: "at least one endpoint is required"}
	}
	seen := make(map[string]bool, len(cfg.LLM.Endpoints))
	for _, ep := range cfg.LLM.Endpoints {
		if ep.Name == "" {
			return &ValidationError{Field: "llm.endpoints.name", Reason: "endpoint name must not be empty"}
		}
		if seen[ep.Name] {
			return &ValidationError{Field: "llm.endpoints.name", Reason: "duplicate endpoint name " + ep.Name}
		}
		seen[ep.Name] = true
		if _, err := url.ParseRequestURI(ep.URL); err != nil {
			return &ValidationError{Field: "llm.endpoints.url", Reason: "invalid URL for endpoint " + ep.Name}
		}
	}

	switch cfg.LLM.Mode {
	case ModeActiveActive, ModePrimarySecondary:
	default:
		return &ValidationError{Field: "llm.mode", Reason: "must be active-active or primary-secondary"}
	}

	if cfg.LLM.ContextWindow <= cfg.LLM.ReservedResponseTokens {
		return &ValidationError{Field: "llm.context_window", Reason: "must exceed reserved_response_tokens"}
	}

	if cfg.Workflows.MaxIterations < 0 {
		return &ValidationError{Field: "workflows.max_iterations", Reason: "must be non-negative"}
	}

	sa := cfg.Workflows.SubAgents
	if sa.ComplexityThreshold < 0 || sa.ComplexityThreshold > 1 {
		return &ValidationError{Field: "workflows.sub_agents.complexity_threshold", Reason: "must be in [0,1]"}
	}
	if sa.MaxConcurrent < 1 {
		return &ValidationError{Field: "workflows.sub_agents.max_concurrent", Reason: "must be at least 1"}
	}

	if cfg.Workspace.DefaultPath == "" {
		return &ValidationError{Field: "workspace.default_path", Reason: "must not be empty"}
	}

	return nil
}
