//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openredteam/vlmprobe/model"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		fn       func()
		teardown func()
		wantHost string
	}{
		{
			name:     "default options",
			wantHost: "http://localhost:11434",
		},
		{
			name:     "custom host",
			opts:     []Option{WithHost("http://custom:8080")},
			wantHost: "http://custom:8080",
		},
		{
			name: "host from env",
			fn: func() {
				os.Setenv(OllamaHost, "http://ollama.local:11434")
			},
			teardown: func() {
				os.Unsetenv(OllamaHost)
			},
			wantHost: "http://ollama.local:11434",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.fn != nil {
				tt.fn()
			}
			if tt.teardown != nil {
				defer tt.teardown()
			}
			m, err := New("llava:13b", tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, m.host)
		})
	}
}

func TestInfo(t *testing.T) {
	m, err := New("phi3.5-vision",
		WithPlaceholder("<|image_1|>"),
		WithSystemRole(true),
	)
	require.NoError(t, err)
	info := m.Info()
	assert.Equal(t, "phi3.5-vision", info.Name)
	assert.True(t, info.SupportsSystemRole)
	assert.Equal(t, model.ImageDeliveryAttached, info.ImageDelivery)
	assert.Equal(t, "<|image_1|>", info.ImagePlaceholder)
}

func TestInfo_NoSystemRole(t *testing.T) {
	m, err := New("mistral:7b-instruct", WithSystemRole(false))
	require.NoError(t, err)
	assert.False(t, m.Info().SupportsSystemRole)
}

func TestGenerateContent_NilRequest(t *testing.T) {
	m, err := New("llava:13b")
	require.NoError(t, err)
	rsp, err := m.GenerateContent(context.Background(), nil)
	assert.Error(t, err)
	assert.Nil(t, rsp)
}

func TestBuildChatRequest_ImageConformance(t *testing.T) {
	m, err := New("llava:13b")
	require.NoError(t, err)

	maxTokens := 400
	req := &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("You are a helpful assistant."),
			{
				Role:    model.RoleUser,
				Content: "<image>\nDescribe this.",
				ContentParts: []model.ContentPart{
					model.NewImageContentPart(&model.Image{Data: []byte{0x89, 0x50, 0x4e, 0x47}, Format: "png"}),
				},
			},
		},
		GenerationConfig: model.GenerationConfig{MaxTokens: &maxTokens},
	}

	chatRequest := m.buildChatRequest(req)
	assert.Equal(t, "llava:13b", chatRequest.Model)
	require.NotNil(t, chatRequest.Stream)
	assert.False(t, *chatRequest.Stream)
	assert.Equal(t, 400, chatRequest.Options["num_predict"])

	require.Len(t, chatRequest.Messages, 2)
	user := chatRequest.Messages[1]
	assert.Equal(t, "user", user.Role)
	assert.NotContains(t, user.Content, "<img_turn>")
	require.Len(t, user.Images, 1)
	assert.Equal(t, api.ImageData([]byte{0x89, 0x50, 0x4e, 0x47}), user.Images[0])
}

func TestGenerateContent_CleansRoleArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		rsp := api.ChatResponse{
			Model:      "llava:13b",
			Done:       true,
			DoneReason: "stop",
			Message:    api.Message{Role: "assistant", Content: "Assistant: A small dog."},
		}
		require.NoError(t, json.NewEncoder(w).Encode(rsp))
	}))
	defer srv.Close()

	m, err := New("llava:13b", WithHost(srv.URL), WithRetryWait(time.Millisecond))
	require.NoError(t, err)

	rsp, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "A small dog.", rsp.Text())
	assert.Equal(t, "stop", rsp.FinishReason)
}

func TestGenerateContent_RetriesOnceThenFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"model busy"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m, err := New("llava:13b", WithHost(srv.URL), WithRetryWait(time.Millisecond))
	require.NoError(t, err)

	_, err = m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	var invErr *model.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "llava:13b", invErr.Backend)
}

func TestCleanDecodedText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<|assistant|> Sure, here it is.", "Sure, here it is."},
		{"**Assistant:** hello", "hello"},
		{"AI: fine", "fine"},
		{"  plain reply  ", "plain reply"},
		{"**Response:**\nparagraph", "paragraph"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanDecodedText(tt.in))
	}
}
