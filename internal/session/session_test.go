/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSessionIDsAreMonotonicAndUnique(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	require.Greater(t, b, a)
}

func TestSetUserMsgAppendsNewline(t *testing.T) {
	s := New("alice")
	s.SetUserMsg("hello")
	require.Equal(t, "hello\n", s.UserMsg)
	require.Equal(t, len("hello\n"), s.UserMsgLen)
}

func TestSetUserMsgKeepsExistingNewline(t *testing.T) {
	s := New("alice")
	s.SetUserMsg("hello\n")
	require.Equal(t, "hello\n", s.UserMsg)
}

func TestNewAssignsArenaAndMsgID(t *testing.T) {
	s := New("alice")
	require.NotNil(t, s.Arena)
	require.NotEmpty(t, s.MsgID)
}
