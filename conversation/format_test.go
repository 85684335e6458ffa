//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package conversation

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openredteam/vlmprobe/dataset"
	"github.com/openredteam/vlmprobe/model"
)

var roleTagRe = regexp.MustCompile(`<(USER|AI)>(.*?)</(USER|AI)>`)

func TestFormatForScoring(t *testing.T) {
	messages := []model.Message{
		model.NewSystemMessage("You are a helpful assistant."),
		model.NewUserMessage("first question"),
		model.NewAssistantMessage("first answer"),
		model.NewUserMessage("second question"),
		model.NewAssistantMessage("second answer"),
	}
	got, err := FormatForScoring(messages)
	require.NoError(t, err)
	assert.Equal(t,
		"<USER>first question</USER><AI>first answer</AI><USER>second question</USER><AI>second answer</AI>",
		got)
}

func TestFormatForScoring_RoundTrip(t *testing.T) {
	messages := []model.Message{
		model.NewSystemMessage("instruction"),
		model.NewUserMessage("  padded question "),
		model.NewAssistantMessage("an answer"),
	}
	got, err := FormatForScoring(messages)
	require.NoError(t, err)

	matches := roleTagRe.FindAllStringSubmatch(got, -1)
	require.Len(t, matches, 2)
	assert.Equal(t, "USER", matches[0][1])
	assert.Equal(t, "padded question", matches[0][2])
	assert.Equal(t, "AI", matches[1][1])
	assert.Equal(t, "an answer", matches[1][2])
}

func TestFormatForScoring_SyntheticLeadDropped(t *testing.T) {
	messages := []model.Message{
		model.NewUserMessage(""),
		model.NewAssistantMessage("instruction as reply"),
		model.NewUserMessage("question"),
		model.NewAssistantMessage("answer"),
	}
	got, err := FormatForScoring(messages)
	require.NoError(t, err)
	assert.Equal(t, "<USER>question</USER><AI>answer</AI>", got)
}

func TestFormatForScoring_PlaceholderRemoved(t *testing.T) {
	messages := []model.Message{
		model.NewSystemMessage("instruction"),
		model.NewUserMessage("<|image_1|>\nWhat is this?"),
		model.NewAssistantMessage("a chart"),
	}
	got, err := FormatForScoring(messages)
	require.NoError(t, err)
	assert.Equal(t, "<USER>What is this?</USER><AI>a chart</AI>", got)
}

func TestFormatForScoring_MultipartTextExtracted(t *testing.T) {
	messages := []model.Message{
		model.NewSystemMessage("instruction"),
		model.NewUserMessageWithContentParts([]model.ContentPart{
			model.NewTextContentPart("Describe this."),
			model.NewImageContentPart(&model.Image{Data: []byte{0x1}, Format: "png"}),
		}),
		model.NewAssistantMessage("a dog"),
	}
	got, err := FormatForScoring(messages)
	require.NoError(t, err)
	assert.Equal(t, "<USER>Describe this.</USER><AI>a dog</AI>", got)
}

func TestFormatForScoring_ImageOnlyTurnFails(t *testing.T) {
	messages := []model.Message{
		model.NewSystemMessage("instruction"),
		model.NewUserMessageWithContentParts([]model.ContentPart{
			model.NewImageContentPart(&model.Image{Data: []byte{0x1}, Format: "png"}),
		}),
		model.NewAssistantMessage("a dog"),
	}
	_, err := FormatForScoring(messages)
	require.Error(t, err)

	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 1, formatErr.Turn)
	assert.Equal(t, model.RoleUser, formatErr.Role)
}

func TestReduce(t *testing.T) {
	messages := []model.Message{
		model.NewSystemMessage("instruction"),
		model.NewUserMessage("q1"),
		model.NewAssistantMessage("a1"),
		model.NewUserMessage("q2"),
		model.NewAssistantMessage("a2"),
		model.NewUserMessage("q3"),
		model.NewAssistantMessage("a3"),
	}

	reduced := Reduce(messages, 4)
	require.Len(t, reduced, 5)
	assert.Equal(t, model.RoleSystem, reduced[0].Role)
	assert.Equal(t, "q2", reduced[1].Content)
	assert.Equal(t, "a3", reduced[4].Content)

	// Already within bound: unchanged.
	assert.Equal(t, messages, Reduce(messages, 10))
}

func TestReduce_SyntheticLead(t *testing.T) {
	messages := []model.Message{
		model.NewUserMessage(""),
		model.NewAssistantMessage("instruction"),
		model.NewUserMessage("q1"),
		model.NewAssistantMessage("a1"),
		model.NewUserMessage("q2"),
		model.NewAssistantMessage("a2"),
	}
	reduced := Reduce(messages, 2)
	require.Len(t, reduced, 4)
	assert.Equal(t, "", reduced[0].Content)
	assert.Equal(t, "instruction", reduced[1].Content)
	assert.Equal(t, "q2", reduced[2].Content)
}

func TestFlattenDropsImagePayloads(t *testing.T) {
	t1 := "look at this"
	t2 := "and this"
	transcript := &Transcript{
		Messages: []model.Message{
			model.NewSystemMessage("inst"),
			model.NewUserMessageWithContentParts([]model.ContentPart{
				model.NewTextContentPart(t1),
				model.NewImageContentPart(&model.Image{Data: []byte{1, 2}, Format: "png"}),
				model.NewTextContentPart(t2),
			}),
			model.NewAssistantMessage("reply"),
		},
	}
	flat := transcript.Flatten()
	require.Len(t, flat, 3)
	assert.Equal(t, "inst", flat[0].Content)
	assert.Equal(t, model.RoleUser, flat[1].Role)
	assert.Equal(t, "look at this\nand this", flat[1].Content)
	assert.Empty(t, flat[1].ContentParts)
	assert.Equal(t, "reply", flat[2].Content)
}

func TestFormatForScoring_AttachedImageTurnKeepsText(t *testing.T) {
	item := &dataset.Item{Index: 3, GenConv: `["<img_turn> Describe this."]`}
	item.MinedImages = pngFixture(t)
	info := model.Info{
		Name:             "llava",
		ImageDelivery:    model.ImageDeliveryAttached,
		ImagePlaceholder: "<image>",
	}
	msg, artifact, err := ResolveImageTurn(item, "Describe this.", info)
	require.NoError(t, err)
	require.NotNil(t, artifact)

	transcript := &Transcript{Messages: []model.Message{
		model.NewSystemMessage("inst"),
		msg,
		model.NewAssistantMessage("A dog."),
	}}

	// The sink view keeps the turn text even though the only content
	// part is the image payload.
	flat := transcript.Flatten()
	require.Len(t, flat, 3)
	assert.Equal(t, "<image>\nDescribe this.", flat[1].Content)
	assert.Empty(t, flat[1].ContentParts)

	formatted, err := FormatForScoring(flat)
	require.NoError(t, err)
	assert.Equal(t, "<USER>Describe this.</USER><AI>A dog.</AI>", formatted)
}
