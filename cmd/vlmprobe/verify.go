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
	"github.com/openredteam/vlmprobe/conversation"
	"github.com/openredteam/vlmprobe/model"
)

func newVerifyCommand(root *rootOptions) *cobra.Command {
	var convPath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a conversation sink against declared turn counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := batch.LoadConversationRecords(convPath)
			if err != nil {
				return err
			}
			short := 0
			for _, rec := range records {
				got := assistantTurns(rec.Messages)
				if got == rec.Item.NumTurns {
					continue
				}
				short++
				fmt.Fprintf(cmd.OutOrStdout(),
					"item %d: %d of %d turns answered\n",
					rec.Item.Index, got, rec.Item.NumTurns)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"%d conversations, %d shorter than scripted\n", len(records), short)
			return nil
		},
	}
	cmd.Flags().StringVar(&convPath, "conv", "", "conversation sink to verify")
	cobra.CheckErr(cmd.MarkFlagRequired("conv"))
	return cmd
}

// assistantTurns counts answered turns past the leading instruction segment.
func assistantTurns(messages []model.Message) int {
	lead := conversation.LeadingLenOf(messages)
	if lead > len(messages) {
		return 0
	}
	n := 0
	for _, msg := range messages[lead:] {
		if msg.Role == model.RoleAssistant {
			n++
		}
	}
	return n
}
