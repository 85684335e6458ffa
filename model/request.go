//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package model

// Role represents the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the role of the message author.
	Role Role `json:"role"`
	// Content is the message content. For attached-delivery image turns
	// it holds the placeholder-tagged turn text while ContentParts carry
	// the image payload.
	Content string `json:"content,omitempty"`
	// ContentParts is the content parts for multimodal messages.
	ContentParts []ContentPart `json:"content_parts,omitempty"`
}

// ContentType represents the type of content.
type ContentType string

// ContentType constants for content types.
const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// ContentPart represents a single content part in a multimodal message.
type ContentPart struct {
	// Type is the type of content: "text" or "image".
	Type ContentType `json:"type"`
	// Text is the text content.
	Text *string `json:"text,omitempty"`
	// Image is the image data.
	Image *Image `json:"image,omitempty"`
}

// Image represents an image for vision backends.
type Image struct {
	// URL is the URL of the image. It may be a data URI for inline delivery.
	URL string `json:"url,omitempty"`
	// Data is the raw image bytes, used when no URL is set.
	Data []byte `json:"data,omitempty"`
	// Format is the image MIME subtype, e.g. "png" or "jpeg".
	Format string `json:"format,omitempty"`
	// Detail is the detail level: "low", "high", "auto".
	Detail string `json:"detail,omitempty"`
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{
		Role:    RoleSystem,
		Content: content,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{
		Role:    RoleUser,
		Content: content,
	}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{
		Role:    RoleAssistant,
		Content: content,
	}
}

// NewUserMessageWithContentParts creates a new user message with content parts.
func NewUserMessageWithContentParts(contentParts []ContentPart) Message {
	return Message{
		Role:         RoleUser,
		ContentParts: contentParts,
	}
}

// NewTextContentPart creates a new text content part.
func NewTextContentPart(text string) ContentPart {
	return ContentPart{
		Type: ContentTypeText,
		Text: &text,
	}
}

// NewImageContentPart creates a new image content part.
func NewImageContentPart(image *Image) ContentPart {
	return ContentPart{
		Type:  ContentTypeImage,
		Image: image,
	}
}

// Text returns the text content of the message: the first text content
// part when one exists, otherwise Content. The fallback covers
// attached-delivery turns, where Content carries the placeholder-tagged
// text and ContentParts carry only the image. The second return reports
// whether any text was found.
func (m Message) Text() (string, bool) {
	for _, part := range m.ContentParts {
		if part.Type == ContentTypeText && part.Text != nil && *part.Text != "" {
			return *part.Text, true
		}
	}
	return m.Content, m.Content != ""
}

// GenerationConfig contains configuration for text generation.
type GenerationConfig struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0).
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP *float64 `json:"top_p,omitempty"`

	// Stop sequences where the backend will stop generating further tokens.
	Stop []string `json:"stop,omitempty"`
}

// Request is the request to the model.
type Request struct {
	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// GenerationConfig contains the generation parameters.
	GenerationConfig `json:",inline"`
}
