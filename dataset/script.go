//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StopSentinel is the reserved turn value signaling early conversation
// termination. No assistant reply follows it.
const StopSentinel = "STOP"

// ImageTurnMarker is the reserved substring marking an image-bearing turn.
// It is stripped from the turn text before the turn is used.
const ImageTurnMarker = "<img_turn>"

// ScriptParseError reports a malformed scripted turn sequence. The item is
// skipped, never retried.
type ScriptParseError struct {
	// Index is the dataset item identity.
	Index int
	// Err is the parse failure.
	Err error
}

// Error implements the error interface.
func (e *ScriptParseError) Error() string {
	return fmt.Sprintf("item %d: malformed turn script: %v", e.Index, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *ScriptParseError) Unwrap() error {
	return e.Err
}

// Script is a parsed scripted turn sequence. Turns are addressed by index,
// so a script is restartable from any position.
type Script struct {
	turns []string
}

// ParseScript parses an item's scripted turn sequence.
func ParseScript(item *Item) (*Script, error) {
	var turns []string
	if err := json.Unmarshal([]byte(item.GenConv), &turns); err != nil {
		return nil, &ScriptParseError{Index: item.Index, Err: err}
	}
	if len(turns) == 0 {
		return nil, &ScriptParseError{Index: item.Index, Err: fmt.Errorf("empty turn sequence")}
	}
	return &Script{turns: turns}, nil
}

// SeedScript builds a single-turn script from the item's pre-generated
// seed utterance. No script traversal happens in this mode; the seed is
// always treated as image-bearing.
func SeedScript(item *Item) *Script {
	return &Script{turns: []string{ImageTurnMarker + item.GeneratedSeed}}
}

// Len returns the number of scripted turns.
func (s *Script) Len() int {
	return len(s.turns)
}

// Turn returns the i-th human utterance. When the turn carries the
// image-turn marker, the marker is stripped and imageTurn is true.
func (s *Script) Turn(i int) (text string, imageTurn bool) {
	text = strings.TrimSpace(s.turns[i])
	if strings.Contains(text, ImageTurnMarker) {
		text = strings.TrimSpace(strings.ReplaceAll(text, ImageTurnMarker, ""))
		return text, true
	}
	return text, false
}
