//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/openredteam/vlmprobe/batch"
	"github.com/openredteam/vlmprobe/conversation"
	"github.com/openredteam/vlmprobe/dataset"
)

func newConverseCommand(root *rootOptions) *cobra.Command {
	var (
		datasetPath string
		sinkPath    string
		workers     int
		seeds       bool
	)
	cmd := &cobra.Command{
		Use:   "converse",
		Short: "Replay scripted conversations against the target backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := root.cfg

			backend, err := buildModel(ctx, cfg.Model)
			if err != nil {
				return err
			}
			driverOpts := []conversation.DriverOption{
				conversation.WithGenerationConfig(generationConfig(cfg.Model)),
			}
			if cfg.Model.Instruction != "" {
				driverOpts = append(driverOpts, conversation.WithInstruction(cfg.Model.Instruction))
			}
			driver := conversation.NewDriver(backend, driverOpts...)

			if workers <= 0 {
				workers = cfg.Batch.ConversationWorkers
			}
			batchOpts := []batch.Option{batch.WithWorkers(workers)}
			if seeds || cfg.Batch.Seeds {
				batchOpts = append(batchOpts, batch.WithSeeds())
			}

			pairs, err := datasetSinks(datasetPath, sinkPath)
			if err != nil {
				return err
			}
			for _, pair := range pairs {
				items, err := dataset.LoadTSV(pair.dataset)
				if err != nil {
					return err
				}
				summary, err := batch.RunConversations(ctx, driver, items, pair.sink, batchOpts...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"%s run %s: %d items, %d skipped, %d written, %d failed\n",
					filepath.Base(pair.dataset), summary.RunID,
					summary.Total, summary.Skipped, summary.Written, summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "input dataset TSV, or a directory of TSVs")
	cmd.Flags().StringVar(&sinkPath, "out", "", "conversation sink to append to; a directory when --dataset is one")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (default from config)")
	cmd.Flags().BoolVar(&seeds, "seeds", false, "single-turn seed mode")
	cobra.CheckErr(cmd.MarkFlagRequired("dataset"))
	cobra.CheckErr(cmd.MarkFlagRequired("out"))
	return cmd
}

type datasetSink struct {
	dataset string
	sink    string
}

// datasetSinks pairs each input dataset with its sink. A dataset directory
// yields one sink per TSV inside an output directory, keeping file names so
// reruns resolve to the same sink.
func datasetSinks(datasetPath, sinkPath string) ([]datasetSink, error) {
	info, err := os.Stat(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("stat dataset %s: %w", datasetPath, err)
	}
	if !info.IsDir() {
		return []datasetSink{{dataset: datasetPath, sink: sinkPath}}, nil
	}
	files, err := filepath.Glob(filepath.Join(datasetPath, "*.tsv"))
	if err != nil {
		return nil, fmt.Errorf("scan dataset dir %s: %w", datasetPath, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dataset dir %s has no .tsv files", datasetPath)
	}
	sort.Strings(files)
	if err := os.MkdirAll(sinkPath, 0o755); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", sinkPath, err)
	}
	pairs := make([]datasetSink, 0, len(files))
	for _, f := range files {
		pairs = append(pairs, datasetSink{
			dataset: f,
			sink:    filepath.Join(sinkPath, filepath.Base(f)),
		})
	}
	return pairs, nil
}
