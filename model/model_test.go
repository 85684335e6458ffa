//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleSystem.IsValid())
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleAssistant.IsValid())
	assert.False(t, Role("tool").IsValid())
}

func TestMessageText(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		want     string
		wantReact bool
	}{
		{
			name:      "plain content",
			msg:       NewUserMessage("hello"),
			want:      "hello",
			wantReact: true,
		},
		{
			name: "multipart with text and image",
			msg: NewUserMessageWithContentParts([]ContentPart{
				NewImageContentPart(&Image{URL: "data:image/png;base64,AAAA"}),
				NewTextContentPart("describe this"),
			}),
			want:      "describe this",
			wantReact: true,
		},
		{
			name: "image only",
			msg: NewUserMessageWithContentParts([]ContentPart{
				NewImageContentPart(&Image{URL: "data:image/png;base64,AAAA"}),
			}),
			want:      "",
			wantReact: false,
		},
		{
			name: "attached delivery keeps content text",
			msg: Message{
				Role:    RoleUser,
				Content: "<image>\ndescribe this",
				ContentParts: []ContentPart{
					NewImageContentPart(&Image{Data: []byte{1}, Format: "png"}),
				},
			},
			want:      "<image>\ndescribe this",
			wantReact: true,
		},
		{
			name:      "empty content",
			msg:       Message{Role: RoleUser},
			want:      "",
			wantReact: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.msg.Text()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReact, ok)
		})
	}
}

func TestInvokeWithRetry_SecondAttemptSucceeds(t *testing.T) {
	calls := 0
	rsp, err := InvokeWithRetry(context.Background(), "test-model", time.Millisecond,
		func(ctx context.Context) (*Response, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("rate limited")
			}
			return &Response{Message: NewAssistantMessage("ok")}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "ok", rsp.Text())
}

func TestInvokeWithRetry_FailureWrapsInvocationError(t *testing.T) {
	calls := 0
	cause := errors.New("boom")
	_, err := InvokeWithRetry(context.Background(), "test-model", time.Millisecond,
		func(ctx context.Context) (*Response, error) {
			calls++
			return nil, cause
		})
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "test-model", invErr.Backend)
	assert.ErrorIs(t, err, cause)
}

func TestInvokeWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := InvokeWithRetry(ctx, "test-model", time.Hour,
		func(ctx context.Context) (*Response, error) {
			calls++
			return nil, errors.New("transient")
		})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}
