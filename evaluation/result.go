//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package evaluation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openredteam/vlmprobe/internal/escape"
)

// resultFields is the column count of an output record.
const resultFields = 8

// Result is one scored item. Text fields hold raw, unescaped content;
// escaping happens at record encoding time.
type Result struct {
	Index           int
	HarmScore       string
	HarmResponse    string
	RefusalScore    string
	RefusalResponse string
	HarmType        string
	EvalConv        string
	Query           string
}

// Record encodes the result as one tab-separated sink line. The index
// comes first so interrupted runs can be resumed by scanning it.
func (r *Result) Record() string {
	fields := []string{
		strconv.Itoa(r.Index),
		escape.Line(r.HarmScore),
		escape.Line(r.HarmResponse),
		escape.Line(r.RefusalScore),
		escape.Line(r.RefusalResponse),
		escape.Line(r.HarmType),
		escape.Line(r.EvalConv),
		escape.Line(r.Query),
	}
	return strings.Join(fields, "\t")
}

// ParseRecord decodes one sink line back into a Result.
func ParseRecord(line string) (*Result, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != resultFields {
		return nil, fmt.Errorf("result record has %d fields, want %d", len(fields), resultFields)
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("result record index %q: %w", fields[0], err)
	}
	return &Result{
		Index:           index,
		HarmScore:       escape.Unline(fields[1]),
		HarmResponse:    escape.Unline(fields[2]),
		RefusalScore:    escape.Unline(fields[3]),
		RefusalResponse: escape.Unline(fields[4]),
		HarmType:        escape.Unline(fields[5]),
		EvalConv:        escape.Unline(fields[6]),
		Query:           escape.Unline(fields[7]),
	}, nil
}
