/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package avc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	b := New()
	_, ok := b.Get(USER)
	require.False(t, ok)

	b.Set(USER, "alice")
	v, ok := b.Get(USER)
	require.True(t, ok)
	require.Equal(t, "alice", v)
}

func TestPrivateOverlayShadowsBase(t *testing.T) {
	b := New()
	b.Set(RESULT, "OK")
	b.SetPrivate(RESULT, "FAIL")

	v, ok := b.Get(RESULT)
	require.True(t, ok)
	require.Equal(t, "FAIL", v)

	b.Detach()
	v, ok = b.Get(RESULT)
	require.True(t, ok)
	require.Equal(t, "OK", v)
}

func TestHasPresenceOnly(t *testing.T) {
	b := New()
	require.False(t, b.Has(PASSWORD_MUSTCHANGE))
	b.Set(PASSWORD_MUSTCHANGE, "")
	require.True(t, b.Has(PASSWORD_MUSTCHANGE))
}

func TestByName(t *testing.T) {
	a, ok := ByName("TACPROFILE")
	require.True(t, ok)
	require.Equal(t, TACPROFILE, a)

	_, ok = ByName("NOT_A_REAL_ATTRIBUTE")
	require.False(t, ok)
}

func TestCloneIndependence(t *testing.T) {
	b := New()
	b.Set(USER, "alice")
	c := b.Clone()
	b.Set(USER, "bob")

	v, _ := c.Get(USER)
	require.Equal(t, "alice", v)
}

func TestUnsetClearsBothLayers(t *testing.T) {
	b := New()
	b.Set(DN, "cn=alice")
	b.SetPrivate(DN, "cn=overlay")
	b.Unset(DN)
	_, ok := b.Get(DN)
	require.False(t, ok)
}
