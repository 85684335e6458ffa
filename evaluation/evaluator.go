//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package evaluation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openredteam/vlmprobe/dataset"
	"github.com/openredteam/vlmprobe/internal/escape"
	"github.com/openredteam/vlmprobe/log"
	"github.com/openredteam/vlmprobe/model"
)

// Judge generation defaults. Scoring must be deterministic, so the
// sampling temperature is pinned to zero.
const (
	defaultJudgeMaxTokens   = 400
	defaultJudgeTemperature = 0.0
)

// scoreRe extracts the score enclosed by the judge's answer markers.
var scoreRe = regexp.MustCompile(`<Q2>(.*?)</Q2>`)

var tracer = otel.Tracer("vlmprobe/evaluation")

// ScoreExtractionError reports a judge reply with no extractable score.
// The reply is carried in the error text for manual inspection.
type ScoreExtractionError struct {
	// Raw is the full judge reply the score could not be extracted from.
	Raw string
}

func (e *ScoreExtractionError) Error() string {
	return fmt.Sprintf("no score marker in judge reply: %s", escape.Line(e.Raw))
}

// Evaluator scores transcripts against a harm chain and the refusal chain
// using a judge backend.
type Evaluator struct {
	judge     model.Model
	refusal   Chain
	overrides map[string]Chain
	retryWait time.Duration
	gen       model.GenerationConfig
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithRetryWait overrides the wait before the single scoring retry.
func WithRetryWait(d time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.retryWait = d
	}
}

// WithHarmChain overrides the judge chain for one harm type.
func WithHarmChain(harmType string, chain Chain) EvaluatorOption {
	return func(e *Evaluator) {
		e.overrides[harmType] = chain
	}
}

// WithRefusalChain overrides the refusal judge chain.
func WithRefusalChain(chain Chain) EvaluatorOption {
	return func(e *Evaluator) {
		e.refusal = chain
	}
}

// WithGenerationConfig overrides the judge generation parameters.
func WithGenerationConfig(gen model.GenerationConfig) EvaluatorOption {
	return func(e *Evaluator) {
		e.gen = gen
	}
}

// New creates an Evaluator backed by the given judge model.
func New(judge model.Model, opts ...EvaluatorOption) *Evaluator {
	maxTokens := defaultJudgeMaxTokens
	temperature := defaultJudgeTemperature
	e := &Evaluator{
		judge:     judge,
		refusal:   RefusalChain(),
		overrides: make(map[string]Chain),
		retryWait: model.DefaultRetryWait,
		gen: model.GenerationConfig{
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// harmChain resolves the judge chain for a harm type, preferring overrides.
func (e *Evaluator) harmChain(harmType string) (Chain, error) {
	if chain, ok := e.overrides[harmType]; ok {
		return chain, nil
	}
	return ChainForHarmType(harmType)
}

// Score runs one judge chain over a canonical transcript and returns the
// extracted score together with the full judge reply. A reply without a
// score marker is retried once after the configured wait; call failures
// are not retried here since the adapter already retries transport errors.
func (e *Evaluator) Score(ctx context.Context, chain Chain, evalConv string) (string, string, error) {
	score, raw, err := e.scoreOnce(ctx, chain, evalConv)
	if err == nil {
		return score, raw, nil
	}
	var extractErr *ScoreExtractionError
	if !errors.As(err, &extractErr) {
		return "", "", err
	}
	log.Debugf("retrying judge scoring after %s: %v", e.retryWait, err)
	select {
	case <-ctx.Done():
		return "", "", ctx.Err()
	case <-time.After(e.retryWait):
	}
	score, raw, err = e.scoreOnce(ctx, chain, evalConv)
	if err != nil {
		return "", "", err
	}
	return score, raw, nil
}

func (e *Evaluator) scoreOnce(ctx context.Context, chain Chain, evalConv string) (string, string, error) {
	messages := make([]model.Message, 0, len(chain)+1)
	messages = append(messages, chain...)
	messages = append(messages, model.NewUserMessage(evalConv))

	rsp, err := e.judge.GenerateContent(ctx, &model.Request{
		Messages:         messages,
		GenerationConfig: e.gen,
	})
	if err != nil {
		return "", "", err
	}
	raw := rsp.Text()
	m := scoreRe.FindStringSubmatch(raw)
	if m == nil {
		return "", raw, &ScoreExtractionError{Raw: raw}
	}
	return m[1], raw, nil
}

// Evaluate scores a transcript for its item's harm type and for refusal,
// producing one output record.
func (e *Evaluator) Evaluate(ctx context.Context, item *dataset.Item, evalConv string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "evaluation.evaluate",
		trace.WithAttributes(
			attribute.Int("item.index", item.Index),
			attribute.String("item.harm_type", item.HarmType),
		))
	defer span.End()

	chain, err := e.harmChain(item.HarmType)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", item.Index, err)
	}
	harmScore, harmRaw, err := e.Score(ctx, chain, evalConv)
	if err != nil {
		return nil, fmt.Errorf("item %d harm scoring: %w", item.Index, err)
	}
	refusalScore, refusalRaw, err := e.Score(ctx, e.refusal, evalConv)
	if err != nil {
		return nil, fmt.Errorf("item %d refusal scoring: %w", item.Index, err)
	}
	query, err := item.QueryJSON()
	if err != nil {
		return nil, err
	}
	return &Result{
		Index:           item.Index,
		HarmScore:       harmScore,
		HarmResponse:    harmRaw,
		RefusalScore:    refusalScore,
		RefusalResponse: refusalRaw,
		HarmType:        item.HarmType,
		EvalConv:        evalConv,
		Query:           query,
	}, nil
}
