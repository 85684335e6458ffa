//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/openredteam/vlmprobe/dataset"
	"github.com/openredteam/vlmprobe/model"
)

// ConversationRecord is one finished conversation as stored in the
// conversation sink: the originating item plus its flattened transcript.
type ConversationRecord struct {
	Item     *dataset.Item
	Messages []model.Message
}

// Encode serializes the record as one tab-separated sink line. Both JSON
// fields are single-line since encoding/json escapes control characters.
func (r *ConversationRecord) Encode() (string, error) {
	query, err := r.Item.QueryJSON()
	if err != nil {
		return "", err
	}
	conv, err := json.Marshal(r.Messages)
	if err != nil {
		return "", fmt.Errorf("marshal conversation %d: %w", r.Item.Index, err)
	}
	return fmt.Sprintf("%d\t%s\t%s", r.Item.Index, query, conv), nil
}

// ParseConversationRecord decodes one conversation sink line.
func ParseConversationRecord(line string) (*ConversationRecord, error) {
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) != 3 {
		return nil, fmt.Errorf("conversation record has %d fields, want 3", len(fields))
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("conversation record index %q: %w", fields[0], err)
	}
	var item dataset.Item
	if err := json.Unmarshal([]byte(fields[1]), &item); err != nil {
		return nil, fmt.Errorf("conversation record %d query: %w", index, err)
	}
	if item.Index != index {
		return nil, fmt.Errorf("conversation record index %d does not match query index %d",
			index, item.Index)
	}
	var messages []model.Message
	if err := json.Unmarshal([]byte(fields[2]), &messages); err != nil {
		return nil, fmt.Errorf("conversation record %d transcript: %w", index, err)
	}
	return &ConversationRecord{Item: &item, Messages: messages}, nil
}

// LoadConversationRecords reads a whole conversation sink.
func LoadConversationRecords(path string) ([]*ConversationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open conversation sink %s: %w", path, err)
	}
	defer f.Close()

	var records []*ConversationRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		rec, err := ParseConversationRecord(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan conversation sink %s: %w", path, err)
	}
	return records, nil
}
