/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package realm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWalkChildToParent(t *testing.T) {
	root := NewRealm("root", nil)
	mid := NewRealm("mid", root)
	leaf := NewRealm("leaf", mid)

	var order []string
	leaf.Walk(func(r *Realm) bool {
		order = append(order, r.Name)
		return true
	})
	require.Equal(t, []string{"leaf", "mid", "root"}, order)
}

func TestInsertAndLookup(t *testing.T) {
	r := NewRealm("r", nil)
	r.CachingPeriod = 60
	u := &User{Name: "alice"}
	r.Insert(u)

	found, owner := r.LookupUser("alice", time.Now())
	require.NotNil(t, found)
	require.Equal(t, r, owner)
	require.Equal(t, "alice", found.Name)
}

func TestExpiredEntryEvictedOnLookup(t *testing.T) {
	r := NewRealm("r", nil)
	r.CachingPeriod = 60
	u := &User{Name: "alice", Dynamic: time.Now().Add(-time.Hour).Unix()}
	r.Insert(u)

	found, _ := r.LookupUser("alice", time.Now())
	require.Nil(t, found)
}

func TestCachingDisabledNeverInserted(t *testing.T) {
	// property 3: realm with caching_period = 0 never gets a usertable
	// insertion for a materialized user; this is enforced by the caller
	// (internal/mavis) not calling Insert when !CachingEnabled(), but the
	// realm itself must still report CachingEnabled()==false correctly.
	r := NewRealm("r", nil)
	require.False(t, r.CachingEnabled())
	r.CachingPeriod = 1
	require.True(t, r.CachingEnabled())
}

func TestParentLookupFindsInheritedUser(t *testing.T) {
	root := NewRealm("root", nil)
	child := NewRealm("child", root)
	u := &User{Name: "bob"}
	root.Insert(u)

	found, owner := child.LookupUser("bob", time.Now())
	require.NotNil(t, found)
	require.Equal(t, root, owner)
}

func TestRefreshTTL(t *testing.T) {
	r := NewRealm("r", nil)
	r.CachingPeriod = 60
	u := &User{Name: "alice"}
	now := time.Now()
	r.RefreshTTL(u, now)
	require.Equal(t, now.Unix()+60, u.Dynamic)
}
