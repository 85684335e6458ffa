//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package conversation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openredteam/vlmprobe/dataset"
	"github.com/openredteam/vlmprobe/model"
)

// fakeBackend replies with numbered assistant turns and records requests.
type fakeBackend struct {
	info     model.Info
	calls    int
	failAt   int // 1-based call number to fail at, 0 means never
	requests []*model.Request
}

func (f *fakeBackend) Info() model.Info { return f.info }

func (f *fakeBackend) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.failAt != 0 && f.calls == f.failAt {
		return nil, &model.InvocationError{Backend: f.info.Name, Err: errors.New("backend down")}
	}
	return &model.Response{
		Message: model.NewAssistantMessage(fmt.Sprintf("reply %d", f.calls)),
		Model:   f.info.Name,
	}, nil
}

func textBackend() *fakeBackend {
	return &fakeBackend{info: model.Info{
		Name:               "fake-model",
		SupportsSystemRole: true,
		ImageDelivery:      model.ImageDeliveryNone,
	}}
}

func pngFixture(t *testing.T) string {
	t.Helper()
	// Minimal PNG header so content sniffing sees an image.
	data := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	path := filepath.Join(t.TempDir(), "mined.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func scriptItem(turns string, n int) *dataset.Item {
	return &dataset.Item{Index: 11, GenConv: turns, NumTurns: n, HarmType: "violence"}
}

func TestRun_FullScript(t *testing.T) {
	backend := textBackend()
	driver := NewDriver(backend)

	transcript, err := driver.Run(context.Background(),
		scriptItem(`["first", "second", "third"]`, 3))
	require.NoError(t, err)

	// One system turn plus three human/assistant pairs.
	require.Len(t, transcript.Messages, 7)
	assert.Equal(t, 1, transcript.LeadingLen())
	assert.Equal(t, 3, backend.calls)

	assert.Equal(t, model.RoleSystem, transcript.Messages[0].Role)
	assert.Equal(t, "first", transcript.Messages[1].Content)
	assert.Equal(t, "reply 1", transcript.Messages[2].Content)
	assert.Equal(t, "third", transcript.Messages[5].Content)
	assert.Equal(t, "reply 3", transcript.Messages[6].Content)
}

func TestRun_StopSentinel(t *testing.T) {
	backend := textBackend()
	driver := NewDriver(backend)

	transcript, err := driver.Run(context.Background(),
		scriptItem(`["first", "second", "STOP", "never"]`, 4))
	require.NoError(t, err)

	// STOP at position 2 yields exactly two completed pairs and no turn
	// for the sentinel itself.
	require.Len(t, transcript.Messages, 5)
	assert.Equal(t, 2, backend.calls)
	for _, msg := range transcript.Messages {
		assert.NotEqual(t, dataset.StopSentinel, msg.Content)
	}
}

func TestRun_EachReplySeesFullTranscript(t *testing.T) {
	backend := textBackend()
	driver := NewDriver(backend)

	_, err := driver.Run(context.Background(), scriptItem(`["a", "b"]`, 2))
	require.NoError(t, err)

	require.Len(t, backend.requests, 2)
	assert.Len(t, backend.requests[0].Messages, 2) // system + first human
	assert.Len(t, backend.requests[1].Messages, 4) // ... + assistant + second human
}

func TestRun_SyntheticLeadingExchange(t *testing.T) {
	backend := &fakeBackend{info: model.Info{
		Name:          "mistral:7b-instruct",
		ImageDelivery: model.ImageDeliveryNone,
	}}
	driver := NewDriver(backend)

	transcript, err := driver.Run(context.Background(), scriptItem(`["hello"]`, 1))
	require.NoError(t, err)

	assert.Equal(t, 2, transcript.LeadingLen())
	require.Len(t, transcript.Messages, 4)
	assert.Equal(t, model.RoleUser, transcript.Messages[0].Role)
	assert.Equal(t, "", transcript.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, transcript.Messages[1].Role)
	assert.Equal(t, DefaultInstruction, transcript.Messages[1].Content)
}

func TestRun_ImageTurnInline(t *testing.T) {
	backend := &fakeBackend{info: model.Info{
		Name:               "gpt-4o",
		SupportsSystemRole: true,
		ImageDelivery:      model.ImageDeliveryInline,
	}}
	driver := NewDriver(backend)

	item := scriptItem(`["<img_turn>Describe this."]`, 1)
	item.MinedImages = pngFixture(t)

	transcript, err := driver.Run(context.Background(), item)
	require.NoError(t, err)

	userMsg := transcript.Messages[1]
	require.Len(t, userMsg.ContentParts, 2)
	text, ok := userMsg.Text()
	require.True(t, ok)
	assert.Equal(t, "Describe this.", text)
	assert.Empty(t, transcript.Images)
}

func TestRun_ImageTurnAttached(t *testing.T) {
	backend := &fakeBackend{info: model.Info{
		Name:               "llava:13b",
		SupportsSystemRole: true,
		ImageDelivery:      model.ImageDeliveryAttached,
		ImagePlaceholder:   "<image>",
	}}
	driver := NewDriver(backend)

	item := scriptItem(`["<img_turn>Describe this."]`, 1)
	item.MinedImages = pngFixture(t)

	transcript, err := driver.Run(context.Background(), item)
	require.NoError(t, err)

	userMsg := transcript.Messages[1]
	assert.Equal(t, "<image>\nDescribe this.", userMsg.Content)
	require.Len(t, userMsg.ContentParts, 1)
	require.Len(t, transcript.Images, 1)
}

func TestRun_ImageResolutionFailureAbortsItem(t *testing.T) {
	backend := &fakeBackend{info: model.Info{
		Name:               "gpt-4o",
		SupportsSystemRole: true,
		ImageDelivery:      model.ImageDeliveryInline,
	}}
	driver := NewDriver(backend)

	item := scriptItem(`["<img_turn>Describe this."]`, 1)
	item.MinedImages = "/nonexistent/mined.png"

	_, err := driver.Run(context.Background(), item)
	require.Error(t, err)

	var resErr *ImageResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, 11, resErr.Index)
	assert.Zero(t, backend.calls)
}

func TestRun_BackendFailurePropagates(t *testing.T) {
	backend := textBackend()
	backend.failAt = 2
	driver := NewDriver(backend)

	_, err := driver.Run(context.Background(), scriptItem(`["a", "b", "c"]`, 3))
	require.Error(t, err)

	var invErr *model.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 2, backend.calls)
}

func TestRun_MalformedScript(t *testing.T) {
	backend := textBackend()
	driver := NewDriver(backend)

	_, err := driver.Run(context.Background(), scriptItem(`not a script`, 1))
	require.Error(t, err)

	var parseErr *dataset.ScriptParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Zero(t, backend.calls)
}

func TestRunSeed_SingleTurn(t *testing.T) {
	backend := &fakeBackend{info: model.Info{
		Name:               "llava:13b",
		SupportsSystemRole: true,
		ImageDelivery:      model.ImageDeliveryAttached,
		ImagePlaceholder:   "<image>",
	}}
	driver := NewDriver(backend)

	item := &dataset.Item{Index: 2, GeneratedSeed: "What is shown here?"}
	item.MinedImages = pngFixture(t)

	transcript, err := driver.RunSeed(context.Background(), item)
	require.NoError(t, err)

	// Exactly one human/assistant pair beyond the leading segment.
	require.Len(t, transcript.Messages, 3)
	assert.Equal(t, 1, backend.calls)
	assert.Contains(t, transcript.Messages[1].Content, "What is shown here?")
	require.Len(t, transcript.Images, 1)
}

func TestWithInstructionAndGenerationConfig(t *testing.T) {
	backend := textBackend()
	maxTokens := 123
	driver := NewDriver(backend,
		WithInstruction("Custom instruction."),
		WithGenerationConfig(model.GenerationConfig{MaxTokens: &maxTokens}),
	)

	transcript, err := driver.Run(context.Background(), scriptItem(`["a"]`, 1))
	require.NoError(t, err)
	assert.Equal(t, "Custom instruction.", transcript.Messages[0].Content)
	require.Len(t, backend.requests, 1)
	require.NotNil(t, backend.requests[0].MaxTokens)
	assert.Equal(t, 123, *backend.requests[0].MaxTokens)
}
