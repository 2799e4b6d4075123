package config

import (
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, merges, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Read agentic.yaml from path
//  2. Expand environment variables ({{.VAR}} template syntax)
//  3. Parse YAML
//  4. Merge user values over built-in defaults
//  5. Validate
func Initialize(path string) (*Config, error) {
	log := slog.With("config_file", path)
	log.Info("Initializing configuration")

	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	log.Info("Configuration initialized",
		"endpoints", len(cfg.LLM.Endpoints),
		"mode", cfg.LLM.Mode,
		"max_iterations", cfg.Workflows.MaxIterations,
		"sub_agents_enabled", cfg.Workflows.SubAgents.IsEnabled())

	return cfg, nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewLoadError(path, fmt.Errorf("%w: %s", ErrConfigNotFound, path))
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	// Merge user values over built-in defaults: non-zero file values win,
	// everything unset keeps its default.
	cfg := DefaultConfig()
	if err := mergo.Merge(cfg, &fileCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	// An explicit endpoint list replaces the default pool entirely.
	if len(fileCfg.LLM.Endpoints) > 0 {
		cfg.LLM.Endpoints = fileCfg.LLM.Endpoints
		applyEndpointDefaults(cfg.LLM.Endpoints)
	}

	return cfg, nil
}

// applyEndpointDefaults fills per-endpoint zero values with built-in defaults.
func applyEndpointDefaults(endpoints []EndpointConfig) {
	for i := range endpoints {
		if endpoints[i].TimeoutSeconds <= 0 {
			endpoints[i].TimeoutSeconds = DefaultEndpointTimeout
		}
		if endpoints[i].MaxRetries < 0 {
			endpoints[i].MaxRetries = DefaultEndpointRetries
		}
		if endpoints[i].Priority <= 0 {
			endpoints[i].Priority = i + 1
		}
	}
}
