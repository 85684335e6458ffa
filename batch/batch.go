//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package batch runs pipeline stages over whole datasets with bounded
// concurrency and resumable append-only sinks.
package batch

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/openredteam/vlmprobe/dataset"
	"github.com/openredteam/vlmprobe/evaluation/ledger"
	"github.com/openredteam/vlmprobe/log"
)

// Default worker counts per stage. Conversations run serially because a
// single local backend saturates on one stream; judge calls fan out.
const (
	DefaultConversationWorkers = 1
	DefaultEvaluationWorkers   = 5
)

// Summary reports the outcome of one batch run.
type Summary struct {
	// RunID identifies the run in logs.
	RunID string
	// Total is the number of input items.
	Total int
	// Skipped is the number of items that already had a sink record.
	Skipped int
	// Written is the number of records appended during this run.
	Written int
	// Failed is the number of items that produced no record.
	Failed int
}

type options struct {
	workers  int
	seeds    bool
	keepLast int
}

// Option configures a batch run.
type Option func(*options)

// WithWorkers overrides the worker pool size.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithSeeds switches conversation runs to single-turn seed mode.
func WithSeeds() Option {
	return func(o *options) {
		o.seeds = true
	}
}

// WithKeepLast bounds judge input to the leading instruction segment plus
// the last n turns of each transcript.
func WithKeepLast(n int) Option {
	return func(o *options) {
		o.keepLast = n
	}
}

// itemFunc produces the sink line for one item.
type itemFunc func(ctx context.Context, item *dataset.Item) (string, error)

// outcome is one finished item, successful or not.
type outcome struct {
	index int
	line  string
	err   error
}

// job carries one item into the worker pool.
type job struct {
	ctx  context.Context
	item *dataset.Item
	fn   itemFunc
	out  chan<- outcome
	wg   *sync.WaitGroup
}

// run drives items through the worker pool. Completed lines flow through
// a single writer goroutine that owns the sink, so records never interleave.
// Item failures are logged and counted, not fatal; the rest of the batch
// proceeds and a rerun picks up the gaps.
func run(ctx context.Context, items []*dataset.Item, sinkPath string, workers int, fn itemFunc) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString(), Total: len(items)}

	led, err := ledger.Load(sinkPath)
	if err != nil {
		return summary, err
	}
	pending := make([]*dataset.Item, 0, len(items))
	for _, item := range items {
		if led.Seen(item.Index) {
			summary.Skipped++
			continue
		}
		pending = append(pending, item)
	}
	log.Infof("batch run %s: %d items, %d already complete, %d workers",
		summary.RunID, summary.Total, summary.Skipped, workers)
	if len(pending) == 0 {
		return summary, nil
	}

	sink, err := os.OpenFile(sinkPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return summary, fmt.Errorf("open sink %s: %w", sinkPath, err)
	}
	defer sink.Close()

	outcomes := make(chan outcome, workers)
	var writerWG sync.WaitGroup
	var writeErr error
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		for oc := range outcomes {
			if oc.err != nil {
				log.Errorf("batch run %s item %d: %v", summary.RunID, oc.index, oc.err)
				summary.Failed++
				continue
			}
			if _, err := fmt.Fprintln(sink, oc.line); err != nil {
				if writeErr == nil {
					writeErr = fmt.Errorf("append sink %s: %w", sinkPath, err)
				}
				summary.Failed++
				continue
			}
			led.Add(oc.index)
			summary.Written++
		}
	}()

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(workers, func(args any) {
		j, ok := args.(*job)
		if !ok {
			panic("batch pool args type error")
		}
		defer j.wg.Done()
		line, err := j.fn(j.ctx, j.item)
		j.out <- outcome{index: j.item.Index, line: line, err: err}
	})
	if err != nil {
		close(outcomes)
		writerWG.Wait()
		return summary, fmt.Errorf("create batch pool: %w", err)
	}
	defer pool.Release()

	for _, item := range pending {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Invoke(&job{ctx: ctx, item: item, fn: fn, out: outcomes, wg: &wg}); err != nil {
			wg.Done()
			outcomes <- outcome{index: item.Index, err: fmt.Errorf("submit: %w", err)}
		}
	}
	wg.Wait()
	close(outcomes)
	writerWG.Wait()

	log.Infof("batch run %s: wrote %d, failed %d", summary.RunID, summary.Written, summary.Failed)
	if writeErr != nil {
		return summary, writeErr
	}
	return summary, ctx.Err()
}
