//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openredteam/vlmprobe/batch"
	"github.com/openredteam/vlmprobe/evaluation"
)

func newEvaluateCommand(root *rootOptions) *cobra.Command {
	var (
		convPath string
		sinkPath string
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score finished conversations with the judge backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := root.cfg

			judge, err := buildModel(ctx, cfg.Judge.ModelConfig)
			if err != nil {
				return err
			}
			evalOpts := []evaluation.EvaluatorOption{}
			for harmType, path := range cfg.Judge.Chains {
				chain, err := evaluation.LoadChainFile(path)
				if err != nil {
					return err
				}
				evalOpts = append(evalOpts, evaluation.WithHarmChain(harmType, chain))
			}
			if cfg.Judge.RefusalChain != "" {
				chain, err := evaluation.LoadChainFile(cfg.Judge.RefusalChain)
				if err != nil {
					return err
				}
				evalOpts = append(evalOpts, evaluation.WithRefusalChain(chain))
			}
			ev := evaluation.New(judge, evalOpts...)

			if workers <= 0 {
				workers = cfg.Batch.EvaluationWorkers
			}
			batchOpts := []batch.Option{batch.WithWorkers(workers)}
			if cfg.Judge.MaxTurns > 0 {
				batchOpts = append(batchOpts, batch.WithKeepLast(cfg.Judge.MaxTurns))
			}
			summary, err := batch.RunEvaluations(ctx, ev, convPath, sinkPath, batchOpts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: %d items, %d skipped, %d written, %d failed\n",
				summary.RunID, summary.Total, summary.Skipped, summary.Written, summary.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&convPath, "conv", "", "conversation sink to score")
	cmd.Flags().StringVar(&sinkPath, "out", "", "result sink to append to")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (default from config)")
	cobra.CheckErr(cmd.MarkFlagRequired("conv"))
	cobra.CheckErr(cmd.MarkFlagRequired("out"))
	return cmd
}
