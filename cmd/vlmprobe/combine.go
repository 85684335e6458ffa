//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newCombineCommand(root *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "combine <sink>...",
		Short: "Merge result sinks into one file, prefixing each line with its source label",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			defer out.Close()

			w := bufio.NewWriter(out)
			for _, path := range args {
				if err := appendLabeled(w, path); err != nil {
					return err
				}
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "combined output file")
	cobra.CheckErr(cmd.MarkFlagRequired("out"))
	return cmd
}

// appendLabeled copies a sink into the writer, prefixing every line with a
// label derived from the sink file name.
func appendLabeled(w *bufio.Writer, path string) error {
	label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sink %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", label, line); err != nil {
			return fmt.Errorf("write combined output: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan sink %s: %w", path, err)
	}
	return nil
}
