//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package ledger tracks which item indices already have a sink record,
// making interrupted batch runs resumable.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Ledger is the set of item indices present in an append-only sink.
// It is loaded once per run; concurrent use needs external locking.
type Ledger struct {
	seen map[int]struct{}
}

// Load scans the first column of an existing sink file. A missing file
// yields an empty ledger, since a fresh run has no sink yet.
func Load(path string) (*Ledger, error) {
	l := &Ledger{seen: make(map[int]struct{})}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("open sink %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		first, _, _ := strings.Cut(line, "\t")
		index, err := strconv.Atoi(first)
		if err != nil {
			// Tolerate a header or corrupt tail line rather than
			// refusing to resume the whole run.
			continue
		}
		l.seen[index] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan sink %s: %w", path, err)
	}
	return l, nil
}

// Seen reports whether the index already has a sink record.
func (l *Ledger) Seen(index int) bool {
	_, ok := l.seen[index]
	return ok
}

// Add marks an index as written.
func (l *Ledger) Add(index int) {
	l.seen[index] = struct{}{}
}

// Len returns the number of recorded indices.
func (l *Ledger) Len() int {
	return len(l.seen)
}
