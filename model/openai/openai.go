//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/openredteam/vlmprobe/model"
)

// Model is an adapter for OpenAI-compatible chat completion APIs,
// including Azure deployments and text-only endpoints.
type Model struct {
	name      string
	client    openai.Client
	variant   Variant
	retryWait time.Duration
}

// New creates a new OpenAI-like backend adapter.
func New(name string, opts ...Option) *Model {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []openaiopt.RequestOption
	if o.APIKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.BaseURL))
	}
	if o.Variant == VariantAzure {
		clientOpts = append(clientOpts, openaiopt.WithQueryAdd("api-version", o.APIVersion))
	}
	clientOpts = append(clientOpts, o.OpenAIOptions...)

	return &Model{
		name:      name,
		client:    openai.NewClient(clientOpts...),
		variant:   o.Variant,
		retryWait: o.RetryWait,
	}
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	delivery := model.ImageDeliveryInline
	if m.variant == VariantTextOnly {
		delivery = model.ImageDeliveryNone
	}
	return model.Info{
		Name:               m.name,
		SupportsSystemRole: true,
		ImageDelivery:      delivery,
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
	chatRequest := m.buildChatRequest(request)
	return model.InvokeWithRetry(ctx, m.name, m.retryWait,
		func(ctx context.Context) (*model.Response, error) {
			chatCompletion, err := m.client.Chat.Completions.New(ctx, chatRequest)
			if err != nil {
				return nil, err
			}
			if len(chatCompletion.Choices) == 0 {
				return nil, fmt.Errorf("chat completion returned no choices")
			}
			choice := chatCompletion.Choices[0]
			return &model.Response{
				Message:      model.NewAssistantMessage(strings.TrimSpace(choice.Message.Content)),
				Model:        chatCompletion.Model,
				FinishReason: string(choice.FinishReason),
			}, nil
		})
}

// buildChatRequest converts our Request to OpenAI request params.
func (m *Model) buildChatRequest(request *model.Request) openai.ChatCompletionNewParams {
	chatRequest := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: m.convertMessages(request.Messages),
	}
	if request.MaxTokens != nil {
		chatRequest.MaxCompletionTokens = openai.Int(int64(*request.MaxTokens))
	}
	if request.Temperature != nil {
		chatRequest.Temperature = openai.Float(*request.Temperature)
	}
	if request.TopP != nil {
		chatRequest.TopP = openai.Float(*request.TopP)
	}
	return chatRequest
}

// convertMessages converts canonical messages to OpenAI message params.
func (m *Model) convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		case model.RoleAssistant:
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		default:
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: m.convertUserMessageContent(msg),
				},
			})
		}
	}
	return result
}

// convertUserMessageContent converts message content to user message content union.
func (m *Model) convertUserMessageContent(
	msg model.Message,
) openai.ChatCompletionUserMessageParamContentUnion {
	if len(msg.ContentParts) == 0 {
		return openai.ChatCompletionUserMessageParamContentUnion{
			OfString: openai.String(msg.Content),
		}
	}
	var contentParts []openai.ChatCompletionContentPartUnionParam
	if msg.Content != "" {
		contentParts = append(contentParts, openai.ChatCompletionContentPartUnionParam{
			OfText: &openai.ChatCompletionContentPartTextParam{
				Text: msg.Content,
			},
		})
	}
	for _, part := range msg.ContentParts {
		converted := m.convertContentPart(part)
		if converted == nil {
			continue
		}
		contentParts = append(contentParts, *converted)
	}
	return openai.ChatCompletionUserMessageParamContentUnion{
		OfArrayOfContentParts: contentParts,
	}
}

// convertContentPart converts a single content part to OpenAI format.
func (m *Model) convertContentPart(part model.ContentPart) *openai.ChatCompletionContentPartUnionParam {
	switch part.Type {
	case model.ContentTypeText:
		if part.Text != nil {
			return &openai.ChatCompletionContentPartUnionParam{
				OfText: &openai.ChatCompletionContentPartTextParam{
					Text: *part.Text,
				},
			}
		}
	case model.ContentTypeImage:
		if part.Image == nil {
			return nil
		}
		// Text-only endpoints reject image parts.
		if m.variant == VariantTextOnly {
			return nil
		}
		return &openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					// The URL can be either an http URL or a base64 data URI.
					URL:    imageToURLOrBase64(part.Image),
					Detail: part.Image.Detail,
				},
			},
		}
	}
	return nil
}

func imageToURLOrBase64(image *model.Image) string {
	if image.URL != "" {
		return image.URL
	}
	return "data:image/" + image.Format + ";base64," + base64.StdEncoding.EncodeToString(image.Data)
}
