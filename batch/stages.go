//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package batch

import (
	"context"
	"fmt"

	"github.com/openredteam/vlmprobe/conversation"
	"github.com/openredteam/vlmprobe/dataset"
	"github.com/openredteam/vlmprobe/evaluation"
)

// RunConversations replays every item's scripted turns against the
// driver's backend and appends one record per finished conversation.
// Items already present in the sink are skipped.
func RunConversations(ctx context.Context, driver *conversation.Driver,
	items []*dataset.Item, sinkPath string, opts ...Option) (*Summary, error) {
	o := &options{workers: DefaultConversationWorkers}
	for _, opt := range opts {
		opt(o)
	}
	fn := func(ctx context.Context, item *dataset.Item) (string, error) {
		var (
			t   *conversation.Transcript
			err error
		)
		if o.seeds {
			t, err = driver.RunSeed(ctx, item)
		} else {
			t, err = driver.Run(ctx, item)
		}
		if err != nil {
			return "", fmt.Errorf("conversation: %w", err)
		}
		rec := &ConversationRecord{Item: item, Messages: t.Flatten()}
		return rec.Encode()
	}
	return run(ctx, items, sinkPath, o.workers, fn)
}

// RunEvaluations scores every conversation in the conversation sink and
// appends one result record per item. Items already present in the result
// sink are skipped, so harm and refusal scoring always land together.
func RunEvaluations(ctx context.Context, ev *evaluation.Evaluator,
	convSinkPath, sinkPath string, opts ...Option) (*Summary, error) {
	o := &options{workers: DefaultEvaluationWorkers}
	for _, opt := range opts {
		opt(o)
	}
	records, err := LoadConversationRecords(convSinkPath)
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]*ConversationRecord, len(records))
	items := make([]*dataset.Item, 0, len(records))
	for _, rec := range records {
		byIndex[rec.Item.Index] = rec
		items = append(items, rec.Item)
	}
	fn := func(ctx context.Context, item *dataset.Item) (string, error) {
		rec := byIndex[item.Index]
		messages := rec.Messages
		if o.keepLast > 0 {
			messages = conversation.Reduce(messages, o.keepLast)
		}
		evalConv, err := conversation.FormatForScoring(messages)
		if err != nil {
			return "", fmt.Errorf("format: %w", err)
		}
		result, err := ev.Evaluate(ctx, rec.Item, evalConv)
		if err != nil {
			return "", err
		}
		return result.Record(), nil
	}
	return run(ctx, items, sinkPath, o.workers, fn)
}
