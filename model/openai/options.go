//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package openai provides OpenAI-compatible backend adapters.
package openai

import (
	"time"

	openaiopt "github.com/openai/openai-go/option"

	"github.com/openredteam/vlmprobe/model"
)

// Variant represents different backend variants with specific behaviors.
type Variant string

const (
	// VariantOpenAI is the default OpenAI variant.
	VariantOpenAI Variant = "openai"
	// VariantAzure targets an Azure OpenAI deployment.
	VariantAzure Variant = "azure"
	// VariantTextOnly is an OpenAI-compatible chat API without vision
	// capability. Image turns keep their text and no artifact is sent.
	VariantTextOnly Variant = "text-only"
)

// defaultAzureAPIVersion is the api-version query parameter sent to
// Azure deployments.
const defaultAzureAPIVersion = "2024-02-01"

// options contains configuration options for creating a Model.
type options struct {
	// API key for the OpenAI client.
	APIKey string
	// Base URL for the OpenAI client. It is optional for OpenAI-compatible APIs.
	BaseURL string
	// Variant for backend-specific behavior.
	Variant Variant
	// APIVersion is the Azure api-version query parameter.
	APIVersion string
	// RetryWait is the fixed backoff before the single retry.
	RetryWait time.Duration
	// OpenAIOptions are extra request options for the OpenAI client.
	OpenAIOptions []openaiopt.RequestOption
}

var defaultOptions = options{
	Variant:    VariantOpenAI,
	APIVersion: defaultAzureAPIVersion,
	RetryWait:  model.DefaultRetryWait,
}

// Option is a function that configures the model.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.APIKey = key
	}
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.BaseURL = url
	}
}

// WithVariant sets the backend variant.
func WithVariant(variant Variant) Option {
	return func(o *options) {
		o.Variant = variant
	}
}

// WithAPIVersion sets the Azure api-version query parameter.
func WithAPIVersion(version string) Option {
	return func(o *options) {
		o.APIVersion = version
	}
}

// WithRetryWait sets the backoff before the single retry of a failed call.
func WithRetryWait(wait time.Duration) Option {
	return func(o *options) {
		o.RetryWait = wait
	}
}

// WithOpenAIOptions sets extra request options for the OpenAI client.
func WithOpenAIOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) {
		o.OpenAIOptions = append(o.OpenAIOptions, opts...)
	}
}
