//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package conversation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openredteam/vlmprobe/dataset"
	"github.com/openredteam/vlmprobe/log"
	"github.com/openredteam/vlmprobe/model"
)

// Generation defaults matching the conversation stage of the pipeline.
var (
	defaultMaxTokens   = 400
	defaultTemperature = 0.25
	defaultTopP        = 0.8
)

// Driver alternates scripted human turns with backend replies until the
// script is exhausted or the stop sentinel is reached.
type Driver struct {
	backend     model.Model
	instruction string
	gen         model.GenerationConfig
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithInstruction overrides the instruction seeding the conversation.
func WithInstruction(instruction string) DriverOption {
	return func(d *Driver) {
		d.instruction = instruction
	}
}

// WithGenerationConfig overrides the generation parameters sent to the
// backend. Unset fields keep the stage defaults.
func WithGenerationConfig(gen model.GenerationConfig) DriverOption {
	return func(d *Driver) {
		if gen.MaxTokens != nil {
			d.gen.MaxTokens = gen.MaxTokens
		}
		if gen.Temperature != nil {
			d.gen.Temperature = gen.Temperature
		}
		if gen.TopP != nil {
			d.gen.TopP = gen.TopP
		}
		if gen.Stop != nil {
			d.gen.Stop = gen.Stop
		}
	}
}

// NewDriver creates a conversation driver for the given backend.
func NewDriver(backend model.Model, opts ...DriverOption) *Driver {
	d := &Driver{
		backend:     backend,
		instruction: DefaultInstruction,
		gen: model.GenerationConfig{
			MaxTokens:   &defaultMaxTokens,
			Temperature: &defaultTemperature,
			TopP:        &defaultTopP,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run replays the item's scripted turn sequence against the backend and
// returns the finished transcript. The returned transcript never ends on
// an unanswered human turn except when the stop sentinel cut the script.
func (d *Driver) Run(ctx context.Context, item *dataset.Item) (*Transcript, error) {
	script, err := dataset.ParseScript(item)
	if err != nil {
		return nil, err
	}
	return d.converse(ctx, item, script)
}

// RunSeed executes single-turn mode: exactly one human turn built from the
// item's pre-generated seed, one assistant reply, then done.
func (d *Driver) RunSeed(ctx context.Context, item *dataset.Item) (*Transcript, error) {
	return d.converse(ctx, item, dataset.SeedScript(item))
}

func (d *Driver) converse(ctx context.Context, item *dataset.Item, script *dataset.Script) (*Transcript, error) {
	info := d.backend.Info()
	ctx, span := otel.Tracer("vlmprobe/conversation").Start(ctx, "conversation.run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("item.index", item.Index),
		attribute.String("backend.name", info.Name),
	)

	t := d.initTranscript(info)
	for i := 0; i < script.Len(); i++ {
		text, imageTurn := script.Turn(i)
		if text == dataset.StopSentinel {
			break
		}

		userMsg := model.NewUserMessage(text)
		if imageTurn {
			msg, artifact, err := ResolveImageTurn(item, text, info)
			if err != nil {
				return nil, err
			}
			userMsg = msg
			if artifact != nil {
				t.Images = append(t.Images, artifact)
			}
		}
		t.Messages = append(t.Messages, userMsg)
		log.Debugf("item %d turn %d human: %s", item.Index, i, text)

		rsp, err := d.backend.GenerateContent(ctx, &model.Request{
			Messages:         t.Messages,
			GenerationConfig: d.gen,
		})
		if err != nil {
			return nil, fmt.Errorf("item %d turn %d: %w", item.Index, i, err)
		}
		t.Messages = append(t.Messages, model.NewAssistantMessage(rsp.Text()))
		log.Debugf("item %d turn %d assistant: %s", item.Index, i, rsp.Text())
	}
	return t, nil
}

// initTranscript seeds the transcript with the instruction segment the
// backend understands: a system turn, or a synthetic user/assistant
// exchange for families without a system role.
func (d *Driver) initTranscript(info model.Info) *Transcript {
	t := &Transcript{Backend: info.Name}
	if info.SupportsSystemRole {
		t.Messages = []model.Message{model.NewSystemMessage(d.instruction)}
		return t
	}
	t.Messages = []model.Message{
		model.NewUserMessage(""),
		model.NewAssistantMessage(d.instruction),
	}
	return t
}
