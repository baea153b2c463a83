/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArenaReleaseRunsInReverseOrder(t *testing.T) {
	a := NewArena()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		a.Track(func() error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, a.Release())
	require.Equal(t, []int{2, 1, 0}, order)
}

func TestArenaReleaseIsIdempotent(t *testing.T) {
	a := NewArena()
	calls := 0
	a.Track(func() error {
		calls++
		return nil
	})
	require.NoError(t, a.Release())
	require.NoError(t, a.Release())
	require.Equal(t, 1, calls)
}

func TestArenaReleaseCollectsFirstError(t *testing.T) {
	a := NewArena()
	boom := errors.New("boom")
	ran := false
	// Release runs in reverse order: boom runs first, the ran cleanup after it.
	a.Track(func() error { ran = true; return nil })
	a.Track(func() error { return boom })
	err := a.Release()
	require.Equal(t, boom, err)
	require.True(t, ran, "later cleanups still run even if an earlier one errors")
}

type fakeCloser struct{ closed bool }

func (f *fakeCloser) Close() error {
	f.closed = true
	return nil
}

func TestPoolFreeClosesAndRemoves(t *testing.T) {
	p := NewPool()
	c := &fakeCloser{}
	p.Track("k", c)
	require.Equal(t, 1, p.Len())
	require.NoError(t, p.Free("k"))
	require.True(t, c.closed)
	require.Equal(t, 0, p.Len())
}

func TestPoolDoubleFreeReportedNotFatal(t *testing.T) {
	p := NewPool()
	var reported string
	p.DoubleFree = func(key string) { reported = key }
	require.NoError(t, p.Free("missing"))
	require.Equal(t, "missing", reported)
}

func TestPoolDetachDoesNotClose(t *testing.T) {
	p := NewPool()
	c := &fakeCloser{}
	p.Track("k", c)
	got, ok := p.Detach("k")
	require.True(t, ok)
	require.Equal(t, c, got)
	require.False(t, c.closed)
	require.Equal(t, 0, p.Len())
}
