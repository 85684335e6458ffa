//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/openredteam/vlmprobe/model"
)

// Models is the subset of the genai model surface used by the adapter.
// It exists so tests can substitute a fake without a network client.
type Models interface {
	// GenerateContent generates content based on the provided model, contents, and configuration.
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Model is an adapter for the Gemini API.
type Model struct {
	name      string
	models    Models
	retryWait time.Duration
}

// New creates a new Gemini backend adapter.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	client, err := genai.NewClient(ctx, o.geminiClientConfig)
	if err != nil {
		return nil, err
	}
	return &Model{
		name:      name,
		models:    client.Models,
		retryWait: o.retryWait,
	}, nil
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:               m.name,
		SupportsSystemRole: true,
		ImageDelivery:      model.ImageDeliveryInline,
	}
}

// GenerateContent implements the model.Model interface.
func (m *Model) GenerateContent(
	ctx context.Context,
	request *model.Request,
) (*model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}
	contents, config := m.buildChatRequest(request)
	return model.InvokeWithRetry(ctx, m.name, m.retryWait,
		func(ctx context.Context) (*model.Response, error) {
			rsp, err := m.models.GenerateContent(ctx, m.name, contents, config)
			if err != nil {
				return nil, err
			}
			if len(rsp.Candidates) == 0 {
				return nil, fmt.Errorf("generate content returned no candidates")
			}
			return &model.Response{
				Message:      model.NewAssistantMessage(strings.TrimSpace(rsp.Text())),
				Model:        m.name,
				FinishReason: string(rsp.Candidates[0].FinishReason),
			}, nil
		})
}

// buildChatRequest converts our Request to genai contents and configuration.
// A leading system message becomes the system instruction.
func (m *Model) buildChatRequest(
	request *model.Request,
) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	messages := request.Messages
	if len(messages) > 0 && messages[0].Role == model.RoleSystem {
		config.SystemInstruction = genai.NewContentFromText(messages[0].Content, genai.RoleUser)
		messages = messages[1:]
	}
	if request.MaxTokens != nil {
		config.MaxOutputTokens = int32(*request.MaxTokens)
	}
	if request.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*request.Temperature))
	}
	if request.TopP != nil {
		config.TopP = genai.Ptr(float32(*request.TopP))
	}
	return m.convertMessages(messages), config
}

// convertMessages converts canonical messages to genai contents.
func (m *Model) convertMessages(messages []model.Message) []*genai.Content {
	result := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		if len(msg.ContentParts) == 0 {
			result = append(result, genai.NewContentFromText(msg.Content, genai.Role(role)))
			continue
		}
		var parts []*genai.Part
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}
		for _, part := range msg.ContentParts {
			converted := m.convertContentPart(part)
			if converted == nil {
				continue
			}
			parts = append(parts, converted)
		}
		result = append(result, genai.NewContentFromParts(parts, genai.Role(role)))
	}
	return result
}

// convertContentPart converts a single content part to Gemini format.
func (m *Model) convertContentPart(part model.ContentPart) *genai.Part {
	switch part.Type {
	case model.ContentTypeText:
		if part.Text != nil {
			return &genai.Part{Text: *part.Text}
		}
	case model.ContentTypeImage:
		if part.Image == nil {
			return nil
		}
		if len(part.Image.Data) != 0 {
			return genai.NewPartFromBytes(part.Image.Data, "image/"+part.Image.Format)
		}
		if part.Image.URL != "" {
			return genai.NewPartFromURI(part.Image.URL, "image/"+part.Image.Format)
		}
	}
	return nil
}
