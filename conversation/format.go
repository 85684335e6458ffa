//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package conversation

import (
	"strings"

	"github.com/openredteam/vlmprobe/model"
)

// Role tags wrapping each turn in the canonical scoring string.
const (
	userTagOpen       = "<USER>"
	userTagClose      = "</USER>"
	assistantTagOpen  = "<AI>"
	assistantTagClose = "</AI>"
)

// imagePlaceholders are the per-family tokens injected into image-bearing
// turn text. They are removed before a turn is scored.
var imagePlaceholders = []string{
	"<|image_1|>",
	"<image>",
}

// FormatForScoring reduces a transcript to its canonical scoring string:
// the leading instruction segment is dropped, each remaining turn
// contributes only its text content with image placeholder tokens removed,
// and turns are concatenated wrapped in role tags with no separators.
func FormatForScoring(messages []model.Message) (string, error) {
	lead := leadingLen(messages)
	if len(messages) <= lead {
		return "", nil
	}
	valid := messages[lead:]

	var sb strings.Builder
	for i, msg := range valid {
		text, ok := extractText(msg)
		if !ok {
			return "", &FormatError{Turn: lead + i, Role: msg.Role}
		}
		if msg.Role == model.RoleAssistant {
			sb.WriteString(assistantTagOpen + text + assistantTagClose)
		} else {
			sb.WriteString(userTagOpen + text + userTagClose)
		}
	}
	return sb.String(), nil
}

// Format returns the transcript's canonical scoring string.
func (t *Transcript) Format() (string, error) {
	return FormatForScoring(t.Messages)
}

// Reduce returns a reduced view of the transcript for scoring under a
// context bound: the leading instruction segment plus the last keepLast
// turns. Transcripts already within the bound are returned unchanged.
func Reduce(messages []model.Message, keepLast int) []model.Message {
	lead := leadingLen(messages)
	if len(messages)-lead <= keepLast {
		return messages
	}
	reduced := make([]model.Message, 0, lead+keepLast)
	reduced = append(reduced, messages[:lead]...)
	reduced = append(reduced, messages[len(messages)-keepLast:]...)
	return reduced
}

// Flatten returns the transcript messages with image payloads dropped,
// keeping only textual content. Sink records persist this view.
func (t *Transcript) Flatten() []model.Message {
	out := make([]model.Message, 0, len(t.Messages))
	for _, msg := range t.Messages {
		if len(msg.ContentParts) == 0 {
			out = append(out, msg)
			continue
		}
		var texts []string
		for _, part := range msg.ContentParts {
			if part.Type == model.ContentTypeText && part.Text != nil && *part.Text != "" {
				texts = append(texts, *part.Text)
			}
		}
		content := strings.Join(texts, "\n")
		if content == "" {
			// Attached-delivery turns keep their text in Content with
			// only the image payload in parts.
			content = msg.Content
		}
		out = append(out, model.Message{Role: msg.Role, Content: content})
	}
	return out
}

// extractText pulls the scoreable text out of a turn, dropping image
// placeholder tokens.
func extractText(msg model.Message) (string, bool) {
	text, ok := msg.Text()
	if !ok {
		return "", false
	}
	for _, placeholder := range imagePlaceholders {
		text = strings.ReplaceAll(text, placeholder, " ")
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}
