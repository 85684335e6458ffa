//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package config loads run configuration from YAML with environment
// overrides for credentials. Precedence: defaults, then file, then env.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in model and judge sections.
const (
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
	BackendGemini = "gemini"
	BackendOllama = "ollama"
	BackendText   = "text"
)

// Environment variables consulted when a section carries no api_key.
const (
	EnvAPIKey       = "VLMPROBE_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvAzureAPIKey  = "AZURE_OPENAI_API_KEY"
	EnvGeminiAPIKey = "GOOGLE_API_KEY"
)

// ModelConfig describes one backend, for the conversation target or the judge.
type ModelConfig struct {
	// Backend selects the adapter: openai, azure, gemini, ollama or text.
	Backend string `yaml:"backend"`
	// Name is the backend-side model identifier.
	Name string `yaml:"name"`
	// APIKey authenticates hosted backends. Falls back to environment.
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the backend endpoint.
	BaseURL string `yaml:"base_url"`
	// APIVersion applies to the azure backend.
	APIVersion string `yaml:"api_version"`
	// Host applies to the ollama backend.
	Host string `yaml:"host"`
	// Placeholder is the image token for attached-delivery backends.
	Placeholder string `yaml:"placeholder"`
	// SystemRole marks whether the model family accepts a system message.
	SystemRole *bool `yaml:"system_role"`
	// Sampling parameters. Unset fields keep stage defaults.
	MaxTokens   *int     `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	// Instruction overrides the opening conversation instruction.
	Instruction string `yaml:"instruction"`
}

// JudgeConfig is the judge backend plus optional chain overrides.
type JudgeConfig struct {
	ModelConfig `yaml:",inline"`
	// Chains maps harm types to judge chain files.
	Chains map[string]string `yaml:"chains"`
	// RefusalChain is an optional refusal chain file.
	RefusalChain string `yaml:"refusal_chain"`
	// MaxTurns bounds judge input to the last N transcript turns.
	// Zero means the whole transcript is scored.
	MaxTurns int `yaml:"max_turns"`
}

// BatchConfig controls batch concurrency and mode.
type BatchConfig struct {
	// ConversationWorkers is the conversation stage pool size.
	ConversationWorkers int `yaml:"conversation_workers"`
	// EvaluationWorkers is the evaluation stage pool size.
	EvaluationWorkers int `yaml:"evaluation_workers"`
	// Seeds switches the conversation stage to single-turn seed mode.
	Seeds bool `yaml:"seeds"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error, fatal.
	Level string `yaml:"level"`
}

// Config is the full run configuration.
type Config struct {
	Model ModelConfig `yaml:"model"`
	Judge JudgeConfig `yaml:"judge"`
	Batch BatchConfig `yaml:"batch"`
	Log   LogConfig   `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{Backend: BackendOpenAI},
		Judge: JudgeConfig{ModelConfig: ModelConfig{Backend: BackendOpenAI, Name: "gpt-4o"}},
		Batch: BatchConfig{
			ConversationWorkers: 1,
			EvaluationWorkers:   5,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file over the defaults and applies
// environment credential overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg.Model)
	applyEnv(&cfg.Judge.ModelConfig)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills a missing api_key from the environment, preferring the
// tool-specific variable over the backend's conventional one.
func applyEnv(mc *ModelConfig) {
	if mc.APIKey != "" {
		return
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		mc.APIKey = key
		return
	}
	switch mc.Backend {
	case BackendOpenAI, BackendText:
		mc.APIKey = os.Getenv(EnvOpenAIAPIKey)
	case BackendAzure:
		mc.APIKey = os.Getenv(EnvAzureAPIKey)
	case BackendGemini:
		mc.APIKey = os.Getenv(EnvGeminiAPIKey)
	}
}

func (c *Config) validate() error {
	for section, backend := range map[string]string{
		"model": c.Model.Backend,
		"judge": c.Judge.Backend,
	} {
		switch backend {
		case BackendOpenAI, BackendAzure, BackendGemini, BackendOllama, BackendText:
		default:
			return fmt.Errorf("%s: unknown backend %q", section, backend)
		}
	}
	if c.Batch.ConversationWorkers <= 0 || c.Batch.EvaluationWorkers <= 0 {
		return fmt.Errorf("batch worker counts must be positive")
	}
	return nil
}
