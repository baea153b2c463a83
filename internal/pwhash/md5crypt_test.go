/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pwhash

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCryptDeterministic(t *testing.T) {
	a := Crypt("hunter2", "$1$abcdefgh$")
	b := Crypt("hunter2", "$1$abcdefgh$")
	require.Equal(t, a, b)
	require.True(t, strings_HasPrefix(a, "$1$abcdefgh$"))
}

func TestCryptDifferentSaltDifferentHash(t *testing.T) {
	a := Crypt("hunter2", "$1$abcdefgh$")
	b := Crypt("hunter2", "$1$zyxwvuts$")
	require.NotEqual(t, a, b)
}

func TestGenerateSaltFormat(t *testing.T) {
	re := regexp.MustCompile(`^\$1\$[./0-9A-Za-z]{8}\$$`)
	for i := 0; i < 20; i++ {
		s, err := GenerateSalt()
		require.NoError(t, err)
		require.Regexp(t, re, s)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	hash := Crypt("hunter2", salt)
	require.True(t, Verify("hunter2", hash))
	require.False(t, Verify("wrong", hash))
}

func strings_HasPrefix(s, p string) bool {
	return len(s) >= len(p) && s[:len(p)] == p
}
