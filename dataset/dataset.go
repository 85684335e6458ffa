//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package dataset provides dataset rows and the scripted turn interpreter.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Column names of the input dataset file.
const (
	ColumnIndex         = "Index"
	ColumnGenConv       = "GenConv"
	ColumnMinedImages   = "MinedImages"
	ColumnSubPolicy     = "SubPolicy"
	ColumnHarmType      = "HarmType"
	ColumnNumTurns      = "NumTurns"
	ColumnGeneratedSeed = "GeneratedSeed"
)

// Item is one dataset row. Items are immutable once loaded.
type Item struct {
	// Index is the item identity, unique within a batch.
	Index int `json:"Index"`
	// GenConv is the serialized scripted turn sequence, a JSON array of
	// turn strings, some containing the image-turn marker.
	GenConv string `json:"GenConv"`
	// MinedImages is the path of the image attached to image-bearing turns.
	MinedImages string `json:"MinedImages"`
	// SubPolicy is the sub-policy label of the item.
	SubPolicy string `json:"SubPolicy"`
	// HarmType is the harm-category label of the item.
	HarmType string `json:"HarmType"`
	// NumTurns is the declared turn count of the scripted sequence.
	NumTurns int `json:"NumTurns"`
	// GeneratedSeed is the pre-generated utterance for single-turn mode.
	GeneratedSeed string `json:"GeneratedSeed,omitempty"`
}

// QueryJSON serializes the original row for traceability in output records.
func (it *Item) QueryJSON() (string, error) {
	data, err := json.Marshal(it)
	if err != nil {
		return "", fmt.Errorf("marshal item %d: %w", it.Index, err)
	}
	return string(data), nil
}

// LoadTSV reads dataset items from a tab-separated file with a header row.
// Rows with an empty scripted turn sequence are dropped, mirroring the
// upstream generation stage which leaves such rows unset.
func LoadTSV(path string) ([]*Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header %s: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{ColumnIndex, ColumnGenConv} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("dataset %s missing required column %s", path, required)
		}
	}

	var items []*Item
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row %s: %w", path, err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}
		if field(ColumnGenConv) == "" && field(ColumnGeneratedSeed) == "" {
			continue
		}
		index, err := strconv.Atoi(field(ColumnIndex))
		if err != nil {
			return nil, fmt.Errorf("dataset %s: bad index %q: %w", path, field(ColumnIndex), err)
		}
		numTurns := 0
		if v := field(ColumnNumTurns); v != "" {
			numTurns, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("dataset %s item %d: bad turn count %q: %w", path, index, v, err)
			}
		}
		items = append(items, &Item{
			Index:         index,
			GenConv:       field(ColumnGenConv),
			MinedImages:   field(ColumnMinedImages),
			SubPolicy:     field(ColumnSubPolicy),
			HarmType:      field(ColumnHarmType),
			NumTurns:      numTurns,
			GeneratedSeed: field(ColumnGeneratedSeed),
		})
	}
	return items, nil
}
