//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"fmt"

	"github.com/openredteam/vlmprobe/config"
	"github.com/openredteam/vlmprobe/model"
	"github.com/openredteam/vlmprobe/model/gemini"
	"github.com/openredteam/vlmprobe/model/ollama"
	"github.com/openredteam/vlmprobe/model/openai"
)

// buildModel constructs the backend adapter a config section describes.
func buildModel(ctx context.Context, mc config.ModelConfig) (model.Model, error) {
	if mc.Name == "" {
		return nil, fmt.Errorf("backend %s: model name is required", mc.Backend)
	}
	switch mc.Backend {
	case config.BackendOpenAI, config.BackendAzure, config.BackendText:
		opts := []openai.Option{}
		if mc.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(mc.APIKey))
		}
		if mc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(mc.BaseURL))
		}
		switch mc.Backend {
		case config.BackendAzure:
			opts = append(opts, openai.WithVariant(openai.VariantAzure))
			if mc.APIVersion != "" {
				opts = append(opts, openai.WithAPIVersion(mc.APIVersion))
			}
		case config.BackendText:
			opts = append(opts, openai.WithVariant(openai.VariantTextOnly))
		}
		return openai.New(mc.Name, opts...), nil
	case config.BackendGemini:
		opts := []gemini.Option{}
		if mc.APIKey != "" {
			opts = append(opts, gemini.WithAPIKey(mc.APIKey))
		}
		return gemini.New(ctx, mc.Name, opts...)
	case config.BackendOllama:
		opts := []ollama.Option{}
		if mc.Host != "" {
			opts = append(opts, ollama.WithHost(mc.Host))
		}
		if mc.Placeholder != "" {
			opts = append(opts, ollama.WithPlaceholder(mc.Placeholder))
		}
		if mc.SystemRole != nil {
			opts = append(opts, ollama.WithSystemRole(*mc.SystemRole))
		}
		return ollama.New(mc.Name, opts...)
	default:
		return nil, fmt.Errorf("unknown backend %q", mc.Backend)
	}
}

// generationConfig collects the sampling overrides a config section sets.
func generationConfig(mc config.ModelConfig) model.GenerationConfig {
	return model.GenerationConfig{
		MaxTokens:   mc.MaxTokens,
		Temperature: mc.Temperature,
		TopP:        mc.TopP,
	}
}
