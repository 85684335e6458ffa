//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package conversation drives scripted multi-turn conversations against a
// backend and reduces finished transcripts to their canonical scoring form.
package conversation

import (
	"fmt"

	"github.com/openredteam/vlmprobe/model"
)

// DefaultInstruction seeds every conversation unless overridden.
const DefaultInstruction = "You are a helpful assistant. You are here to provide information and answer questions."

// Transcript is the ordered turn sequence produced by one conversation job,
// plus the out-of-band image artifacts collected along the way.
type Transcript struct {
	// Messages is the ordered turn sequence, beginning with the leading
	// instruction segment.
	Messages []model.Message `json:"messages"`
	// Images holds raw image bytes for attached-delivery backends, in
	// turn order. Empty for inline and text-only backends.
	Images [][]byte `json:"-"`
	// Backend is the backend model name that produced the transcript.
	Backend string `json:"backend,omitempty"`
}

// LeadingLen returns the length of the leading instruction segment: one
// turn for a true system turn, two for the synthetic exchange substituted
// on backends without a system role.
func (t *Transcript) LeadingLen() int {
	return leadingLen(t.Messages)
}

// LeadingLenOf is LeadingLen for a bare message sequence, as stored in
// sink records.
func LeadingLenOf(messages []model.Message) int {
	return leadingLen(messages)
}

func leadingLen(messages []model.Message) int {
	if len(messages) > 0 && messages[0].Role == model.RoleSystem {
		return 1
	}
	return 2
}

// ImageResolutionError reports an image-bearing turn whose image could not
// be resolved. The conversation job for the item is aborted; partial
// transcripts are never scored.
type ImageResolutionError struct {
	// Index is the dataset item identity.
	Index int
	// Path is the image reference that failed to resolve.
	Path string
	// Err is the resolution failure.
	Err error
}

// Error implements the error interface.
func (e *ImageResolutionError) Error() string {
	return fmt.Sprintf("item %d: resolve image %s: %v", e.Index, e.Path, e.Err)
}

// Unwrap returns the underlying resolution error.
func (e *ImageResolutionError) Unwrap() error {
	return e.Err
}

// FormatError reports a turn with no extractable text. Such conversations
// cannot be scored and the item is skipped.
type FormatError struct {
	// Turn is the position of the offending turn in the transcript.
	Turn int
	// Role is the author of the offending turn.
	Role model.Role
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("turn %d (%s): no extractable text content", e.Turn, e.Role)
}
