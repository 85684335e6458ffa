//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package model provides the canonical conversation types and the backend
// interface shared by all model adapters.
package model

import "context"

// ImageDelivery describes how a backend expects image content to be supplied.
type ImageDelivery string

const (
	// ImageDeliveryInline embeds the image into the message content as a
	// data URI part.
	ImageDeliveryInline ImageDelivery = "inline"
	// ImageDeliveryAttached passes raw image bytes out-of-band in the
	// request image list, with a placeholder token in the message text.
	ImageDeliveryAttached ImageDelivery = "attached"
	// ImageDeliveryNone is for text-only backends. Image turns keep their
	// text and no artifact is attached.
	ImageDeliveryNone ImageDelivery = "none"
)

// Info describes a backend's identity and calling conventions.
type Info struct {
	// Name is the backend model name.
	Name string
	// SupportsSystemRole reports whether the backend accepts a leading
	// system message. Backends without one get a synthetic user/assistant
	// exchange carrying the instruction instead.
	SupportsSystemRole bool
	// ImageDelivery is the image calling convention of the backend.
	ImageDelivery ImageDelivery
	// ImagePlaceholder is the token injected into the turn text for
	// attached delivery. Empty for other delivery styles.
	ImagePlaceholder string
}

// Model is the interface implemented by all backend adapters.
type Model interface {
	// Info returns the backend descriptor.
	Info() Info
	// GenerateContent produces one assistant completion for the request
	// transcript. It blocks for the duration of the backend call.
	GenerateContent(ctx context.Context, request *Request) (*Response, error)
}
