//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

// Package escape keeps persisted text single-line so that tab-separated
// output stays one record per line.
package escape

import "strings"

var (
	escaper = strings.NewReplacer(
		"\n", `\n`,
		"\t", `\t`,
		"\r", `\r`,
	)
	unescaper = strings.NewReplacer(
		`\n`, "\n",
		`\t`, "\t",
		`\r`, "\r",
	)
)

// Line escapes newline, carriage-return and tab characters to their
// literal two-character sequences.
func Line(s string) string {
	return escaper.Replace(s)
}

// Unline reverses Line.
func Unline(s string) string {
	return unescaper.Replace(s)
}
