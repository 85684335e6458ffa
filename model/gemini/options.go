//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides Gemini backend adapters.
package gemini

import (
	"time"

	"google.golang.org/genai"

	"github.com/openredteam/vlmprobe/model"
)

// options contains configuration options for creating a Model.
type options struct {
	// geminiClientConfig is the configuration passed to genai.NewClient.
	geminiClientConfig *genai.ClientConfig
	// retryWait is the fixed backoff before the single retry.
	retryWait time.Duration
}

var defaultOptions = options{
	geminiClientConfig: &genai.ClientConfig{},
	retryWait:          model.DefaultRetryWait,
}

// Option is a function that configures the model.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.geminiClientConfig.APIKey = key
	}
}

// WithClientConfig replaces the genai client configuration.
func WithClientConfig(cfg *genai.ClientConfig) Option {
	return func(o *options) {
		o.geminiClientConfig = cfg
	}
}

// WithRetryWait sets the backoff before the single retry of a failed call.
func WithRetryWait(wait time.Duration) Option {
	return func(o *options) {
		o.retryWait = wait
	}
}
