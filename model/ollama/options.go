//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package ollama provides adapters for locally served model families.
package ollama

import (
	"net/http"
	"time"

	"github.com/openredteam/vlmprobe/model"
)

// OllamaHost is the environment variable for the server host.
const OllamaHost = "OLLAMA_HOST"

// defaultHost is the local server address used when neither the option nor
// the environment sets one.
const defaultHost = "http://localhost:11434"

// defaultPlaceholder is the token injected into image-bearing turn text.
// The phi family uses its own numbered token instead.
const defaultPlaceholder = "<image>"

// options contains configuration options for creating a Model.
type options struct {
	// host is the server base URL.
	host string
	// placeholder is the image token injected into the turn text.
	placeholder string
	// systemRole reports whether the model family accepts a system message.
	// Families without one get a synthetic leading exchange from the driver.
	systemRole bool
	// keepAlive controls how long the model stays loaded after the call.
	keepAlive time.Duration
	// retryWait is the fixed backoff before the single retry.
	retryWait time.Duration
	// httpClient is the HTTP client used to reach the server.
	httpClient *http.Client
}

var defaultOptions = options{
	placeholder: defaultPlaceholder,
	systemRole:  true,
	retryWait:   model.DefaultRetryWait,
	httpClient:  http.DefaultClient,
}

// Option is a function that configures the model.
type Option func(*options)

// WithHost sets the server base URL.
func WithHost(host string) Option {
	return func(o *options) {
		o.host = host
	}
}

// WithPlaceholder sets the image token injected into image-bearing turns.
func WithPlaceholder(token string) Option {
	return func(o *options) {
		o.placeholder = token
	}
}

// WithSystemRole sets whether the model family accepts a system message.
func WithSystemRole(supported bool) Option {
	return func(o *options) {
		o.systemRole = supported
	}
}

// WithKeepAlive sets how long the model stays loaded after the call.
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) {
		o.keepAlive = d
	}
}

// WithRetryWait sets the backoff before the single retry of a failed call.
func WithRetryWait(wait time.Duration) Option {
	return func(o *options) {
		o.retryWait = wait
	}
}

// withHTTPClient sets the HTTP client. Used by tests.
func withHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}
