//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package escape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLine(t *testing.T) {
	in := "a\nb\tc\rd"
	out := Line(in)
	assert.Equal(t, `a\nb\tc\rd`, out)
	assert.False(t, strings.ContainsAny(out, "\n\t\r"))
	assert.Equal(t, in, Unline(out))
}

func TestLine_NoControlCharacters(t *testing.T) {
	assert.Equal(t, "plain", Line("plain"))
	assert.Equal(t, "plain", Unline("plain"))
}
