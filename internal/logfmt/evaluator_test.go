/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logfmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluateEmptyContextYieldsOnlyLiterals(t *testing.T) {
	f, err := Compile("literal-${user}-text")
	require.NoError(t, err)
	got := Evaluate(f, &Context{Now: time.Now()})
	require.Equal(t, "literal--text", got)
}

// Scenario 5: message "a\b\x01c" (literal backslash, control byte),
// template "${message}\n", expected "a\\b\001c\n" on the wire.
func TestEvaluateScenario5Sanitization(t *testing.T) {
	f, err := Compile("${message}\n")
	require.NoError(t, err)

	msg := "a\\b\x01c"
	got := Evaluate(f, &Context{Now: time.Now(), Message: msg})
	require.Equal(t, "a\\\\b\\001c\n", got)
}

func TestEvaluateUMessageBypassesSanitization(t *testing.T) {
	f, err := Compile("${umessage}")
	require.NoError(t, err)
	got := Evaluate(f, &Context{Now: time.Now(), Message: "raw\\text", Source: SourceUMessage})
	require.Equal(t, "raw\\text", got)
}

func TestEvaluateCmdAliasesToArgsForNonShell(t *testing.T) {
	f, err := Compile("${cmd}")
	require.NoError(t, err)
	ctx := &Context{
		Now:            time.Now(),
		IsShellService: false,
		InboundArgs:    []string{"service=shell", "cmd=show", "arg=foo"},
	}
	got := Evaluate(f, ctx)
	// non-shell: cmd aliases to args, so service= is skipped but cmd= and
	// arg= both pass through untouched (no key-stripping outside cmd mode).
	require.Equal(t, "cmd=show arg=foo", got)
}

func TestEvaluateCmdShellServiceStripsKeys(t *testing.T) {
	f, err := Compile("${cmd}")
	require.NoError(t, err)
	ctx := &Context{
		Now:            time.Now(),
		IsShellService: true,
		InboundArgs:    []string{"service=shell", "cmd=show", "cmd-arg=running-config"},
	}
	got := Evaluate(f, ctx)
	require.Equal(t, "show running-config", got)
}

func TestEvaluateRArgsUsesOutboundVector(t *testing.T) {
	f, err := Compile("${rargs}")
	require.NoError(t, err)
	ctx := &Context{
		Now:          time.Now(),
		OutboundArgs: []string{"priv-lvl=15"},
	}
	got := Evaluate(f, ctx)
	require.Equal(t, "priv-lvl=15", got)
}

func TestEvaluateTruncatesAtBudget(t *testing.T) {
	f, err := Compile("${message}")
	require.NoError(t, err)
	huge := make([]byte, outputBudget*2)
	for i := range huge {
		huge[i] = 'a'
	}
	got := Evaluate(f, &Context{Now: time.Now(), Message: string(huge)})
	require.LessOrEqual(t, len(got), outputBudget)
}
