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

	"github.com/stretchr/testify/require"
)

func TestCompileLiteralOnly(t *testing.T) {
	f, err := Compile("hello world\n")
	require.NoError(t, err)
	require.Len(t, f.Nodes, 1)
	require.Equal(t, NodeLiteral, f.Nodes[0].Kind)
	require.Equal(t, "hello world\n", f.Nodes[0].Literal)
}

func TestCompileFieldWithDefaultSeparator(t *testing.T) {
	f, err := Compile("${cmd}")
	require.NoError(t, err)
	require.Len(t, f.Nodes, 1)
	require.Equal(t, NodeField, f.Nodes[0].Kind)
	require.Equal(t, TokCmd, f.Nodes[0].Field)
	require.Equal(t, " ", f.Nodes[0].Sep)
}

func TestCompileFieldWithExplicitSeparator(t *testing.T) {
	f, err := Compile("${cmd,|}")
	require.NoError(t, err)
	require.Equal(t, "|", f.Nodes[0].Sep)
}

func TestCompileUnknownFieldIsParseError(t *testing.T) {
	_, err := Compile("${not_a_real_field}")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestCompileMixedLiteralAndFields(t *testing.T) {
	f, err := Compile("${nas}\t${user}\t${cmd, }\n")
	require.NoError(t, err)
	require.Len(t, f.Nodes, 6)
	require.Equal(t, TokNAS, f.Nodes[0].Field)
	require.Equal(t, "\t", f.Nodes[1].Literal)
	require.Equal(t, TokUser, f.Nodes[2].Field)
	require.Equal(t, TokCmd, f.Nodes[4].Field)
	require.Equal(t, " ", f.Nodes[4].Sep)
	require.Equal(t, "\n", f.Nodes[5].Literal)
}

func TestCompileUnterminatedField(t *testing.T) {
	_, err := Compile("${user")
	require.Error(t, err)
}
