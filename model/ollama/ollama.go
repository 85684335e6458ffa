//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/openredteam/vlmprobe/model"
)

// roleArtifacts are role-prefix fragments some local families echo at the
// start of their replies. They are stripped from decoded text.
var roleArtifacts = []string{
	"<|assistant|>",
	"**Assistant:**",
	"Assistant:",
	"**Response:**",
	"AI:",
}

// Model is an adapter for model families served by a local ollama server.
type Model struct {
	name        string
	host        string
	client      *api.Client
	placeholder string
	systemRole  bool
	keepAlive   time.Duration
	retryWait   time.Duration
}

// New creates a new local model family adapter.
func New(name string, opts ...Option) (*Model, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.host == "" {
		if env := os.Getenv(OllamaHost); env != "" {
			o.host = env
		} else {
			o.host = defaultHost
		}
	}
	base, err := url.Parse(o.host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", o.host, err)
	}
	return &Model{
		name:        name,
		host:        o.host,
		client:      api.NewClient(base, o.httpClient),
		placeholder: o.placeholder,
		systemRole:  o.systemRole,
		keepAlive:   o.keepAlive,
		retryWait:   o.retryWait,
	}, nil
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:               m.name,
		SupportsSystemRole: m.systemRole,
		ImageDelivery:      model.ImageDeliveryAttached,
		ImagePlaceholder:   m.placeholder,
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
			var last api.ChatResponse
			err := m.client.Chat(ctx, chatRequest, func(rsp api.ChatResponse) error {
				last = rsp
				return nil
			})
			if err != nil {
				return nil, err
			}
			return &model.Response{
				Message:      model.NewAssistantMessage(cleanDecodedText(last.Message.Content)),
				Model:        last.Model,
				FinishReason: last.DoneReason,
			}, nil
		})
}

// buildChatRequest converts our Request to an ollama chat request. Image
// bytes travel out-of-band on the turn message; the placeholder token is
// already part of the turn text.
func (m *Model) buildChatRequest(request *model.Request) *api.ChatRequest {
	stream := false
	chatRequest := &api.ChatRequest{
		Model:    m.name,
		Messages: m.convertMessages(request.Messages),
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if m.keepAlive > 0 {
		chatRequest.KeepAlive = &api.Duration{Duration: m.keepAlive}
	}
	if request.MaxTokens != nil {
		chatRequest.Options["num_predict"] = *request.MaxTokens
	}
	if request.Temperature != nil {
		chatRequest.Options["temperature"] = *request.Temperature
	}
	if request.TopP != nil {
		chatRequest.Options["top_p"] = *request.TopP
	}
	return chatRequest
}

// convertMessages converts canonical messages to ollama messages.
func (m *Model) convertMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		converted := api.Message{
			Role:    msg.Role.String(),
			Content: msg.Content,
		}
		for _, part := range msg.ContentParts {
			switch part.Type {
			case model.ContentTypeText:
				if part.Text != nil && converted.Content == "" {
					converted.Content = *part.Text
				}
			case model.ContentTypeImage:
				if part.Image != nil && len(part.Image.Data) != 0 {
					converted.Images = append(converted.Images, api.ImageData(part.Image.Data))
				}
			}
		}
		result = append(result, converted)
	}
	return result
}

// cleanDecodedText strips leaked role-prefix artifacts from a reply.
func cleanDecodedText(text string) string {
	decoded := strings.TrimSpace(text)
	for _, artifact := range roleArtifacts {
		decoded = strings.TrimSpace(strings.ReplaceAll(decoded, artifact, ""))
	}
	return decoded
}
