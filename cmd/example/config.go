package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cascadehq/cascaderouter/core"
)

// fileConfig is the on-disk shape for --config: a model roster that
// overrides the built-in defaults, letting a demo run point at a
// different cost/capability mix without a rebuild.
type fileConfig struct {
	Models []modelConfigYAML `yaml:"models"`
}

type modelConfigYAML struct {
	Name               string  `yaml:"name"`
	Provider           string  `yaml:"provider"`
	ModelID            string  `yaml:"model_id"`
	InputCostPerToken  float64 `yaml:"input_cost_per_token"`
	OutputCostPerToken float64 `yaml:"output_cost_per_token"`
	ContextWindow      int     `yaml:"context_window"`
	SupportsTools      bool    `yaml:"supports_tools"`
	SupportsStreaming  bool    `yaml:"supports_streaming"`
	IsReasoning        bool    `yaml:"is_reasoning"`
}

// loadModelsFromFile reads path as YAML and returns the validated model
// roster it describes. Used only when --config is passed; the demo's
// built-in models are used otherwise.
func loadModelsFromFile(path string) ([]core.ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing model config: %w", err)
	}
	models := make([]core.ModelConfig, 0, len(fc.Models))
	for _, m := range fc.Models {
		cfg := core.ModelConfig{
			Name:               m.Name,
			Provider:           m.Provider,
			ModelID:            m.ModelID,
			InputCostPerToken:  m.InputCostPerToken,
			OutputCostPerToken: m.OutputCostPerToken,
			ContextWindow:      m.ContextWindow,
			Capabilities: core.ModelCapabilities{
				SupportsTools:          m.SupportsTools,
				SupportsStreaming:      m.SupportsStreaming,
				SupportsSystemMessages: true,
				IsReasoning:            m.IsReasoning,
			},
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("model %q: %w", m.Name, err)
		}
		models = append(models, cfg)
	}
	return models, nil
}
