/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package realm implements the realm tree and per-realm user cache (spec
// §3 "Realm", §4.I, §8 properties 3-4), grounded directly on spec.md's data
// model — there is no single corpus file to imitate here beyond the shape
// of a parent-linked tree, so this package follows spec.md's invariants
// literally.
package realm

import (
	"sync"
	"time"

	"github.com/tacplusng/tacd/internal/aclmatch"
	"github.com/tacplusng/tacd/internal/logdest"
)

// Tri is a tri-state boolean: unset/false/true, matching fields like
// mavis_userdb and mavis_noauthcache that distinguish "not configured" from
// an explicit false (spec §3).
type Tri int

const (
	TriUnset Tri = iota
	TriFalse
	TriTrue
)

func (t Tri) Bool(def bool) bool {
	switch t {
	case TriTrue:
		return true
	case TriFalse:
		return false
	default:
		return def
	}
}

// PwIx identifies a password slot purpose (spec §3 "passwd[pw_ix]").
type PwIx int

const (
	PwLogin PwIx = iota
	PwPAP
	PwMavis
	PwChpw
	numPwIx
)

// PwType is the credential representation for a password slot.
type PwType int

const (
	PwTypeNone PwType = iota
	PwTypeClear
	PwTypeCrypt
	PwTypeMavis
	PwTypeLogin
)

func (t PwType) String() string {
	switch t {
	case PwTypeClear:
		return "clear"
	case PwTypeCrypt:
		return "crypt"
	case PwTypeMavis:
		return "mavis"
	case PwTypeLogin:
		return "login"
	default:
		return "none"
	}
}

// Password is one {type, value} password slot (spec §3).
type Password struct {
	Type  PwType
	Value string
}

// ChalResp is the tri-state challenge-response capability flag on a User.
type ChalResp int

const (
	ChalUnset ChalResp = iota
	ChalNo
	ChalYes
)

// AttrBundle describes read access by integer slot to the attribute bundle
// a User retains post-materialization (spec §9 "ownership of the attribute
// bundle ... transferred to the user object"). User.Bundle is declared as
// any, not as AttrBundle, and *avc.Bundle (whose Get takes an avc.Attr)
// does not satisfy this interface.
type AttrBundle interface {
	Get(attr int) (string, bool)
}

// User is an authentication profile (spec §3 "User (U)").
type User struct {
	Name  string
	Realm *Realm

	Passwd [numPwIx]Password

	ChalResp       ChalResp
	Challenge      string
	PasswdOneshot  bool
	PasswdMustchg  bool
	PasswdChgeable bool
	PasswordExpiry int64

	// Dynamic is 0 for a static config entry, or the epoch-seconds expiry
	// of a backend-populated entry (spec §3 "dynamic").
	Dynamic int64

	Bundle any // *avc.Bundle, stored untyped; see internal/mavis for the concrete type.
}

// Expired reports whether a dynamic user's TTL has elapsed as of now.
func (u *User) Expired(now time.Time) bool {
	if u.Dynamic == 0 {
		return false
	}
	return now.Unix() > u.Dynamic
}

// Realm is a configuration-tree node (spec §3 "Realm (R)").
type Realm struct {
	Name   string
	Parent *Realm

	MavisUserdb     Tri
	MavisNoauthCache Tri
	MavisUserACL    string       // configured "permit <glob>"/"deny <glob>" lines, joined with "; "
	ACL             *aclmatch.ACL // compiled form of MavisUserACL, evaluated at spec §4.G gate 3
	CachingPeriod   int64        // seconds; 0 disables caching

	LastBackendFailure int64

	// Per-event-class destination sets (spec §3 "four per-event-class
	// destination sets (accesslog, authorlog, acctlog, connlog,
	// logdestinations for uniqueness keyed by name)"). Parent inheritance
	// is additive and is applied by the caller walking Walk, not here.
	AccessLog []*logdest.Destination
	AuthorLog []*logdest.Destination
	AcctLog   []*logdest.Destination
	ConnLog   []*logdest.Destination

	// LogDestinations dedupes by name across all four sets above, matching
	// the original's "logdestinations for uniqueness keyed by name".
	LogDestinations map[string]*logdest.Destination

	mu        sync.Mutex
	usertable map[string]*User
}

// NewRealm constructs an empty realm node.
func NewRealm(name string, parent *Realm) *Realm {
	return &Realm{
		Name:            name,
		Parent:          parent,
		usertable:       make(map[string]*User),
		LogDestinations: make(map[string]*logdest.Destination),
	}
}

// AddDestination registers d under r for the given event class, deduping by
// name in r.LogDestinations (spec §3 "logdestinations for uniqueness keyed
// by name").
func (r *Realm) AddDestination(class logdest.EventClass, d *logdest.Destination) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LogDestinations[d.Name] = d
	switch class {
	case logdest.ClassAccess:
		r.AccessLog = append(r.AccessLog, d)
	case logdest.ClassAuthor:
		r.AuthorLog = append(r.AuthorLog, d)
	case logdest.ClassAcct:
		r.AcctLog = append(r.AcctLog, d)
	case logdest.ClassConn:
		r.ConnLog = append(r.ConnLog, d)
	}
}

// DestinationsFor returns r's own destination set for the given event
// class (not including ancestors; callers wanting the additive union walk
// Walk themselves, per spec §4.F).
func (r *Realm) DestinationsFor(class logdest.EventClass) []*logdest.Destination {
	switch class {
	case logdest.ClassAccess:
		return r.AccessLog
	case logdest.ClassAuthor:
		return r.AuthorLog
	case logdest.ClassAcct:
		return r.AcctLog
	case logdest.ClassConn:
		return r.ConnLog
	default:
		return nil
	}
}

// Walk calls fn for r and then each ancestor up to the root, stopping early
// if fn returns false. This is the "child → parent" walk spec §4.F and
// §4.H both rely on.
func (r *Realm) Walk(fn func(*Realm) bool) {
	for cur := r; cur != nil; cur = cur.Parent {
		if !fn(cur) {
			return
		}
	}
}

// LookupUser searches r.usertable, walking parent realms the way the cache
// lookup does (spec §4.H step 1), evicting an expired dynamic entry found
// along the way. It returns the user and the realm that owns it.
func (r *Realm) LookupUser(name string, now time.Time) (*User, *Realm) {
	var found *User
	var owner *Realm
	r.Walk(func(cur *Realm) bool {
		cur.mu.Lock()
		u, ok := cur.usertable[name]
		if ok && u.Expired(now) {
			delete(cur.usertable, name)
			cur.mu.Unlock()
			return true // keep walking up; this entry no longer counts as found
		}
		cur.mu.Unlock()
		if ok {
			found = u
			owner = cur
			return false
		}
		return true
	})
	return found, owner
}

// Insert installs u into r's usertable, evicting any existing (possibly
// expired) entry of the same name first (spec §4.H step 2: "if an expired
// entry already exists in R.usertable, remove it").
func (r *Realm) Insert(u *User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.usertable, u.Name)
	u.Realm = r
	r.usertable[u.Name] = u
}

// Remove deletes the named entry from r's usertable, if present.
func (r *Realm) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.usertable, name)
}

// CachingEnabled reports whether this realm caches backend-materialized
// users (spec §3 "caching_period (seconds; 0 disables caching)").
func (r *Realm) CachingEnabled() bool {
	return r.CachingPeriod > 0
}

// RefreshTTL sets u.Dynamic to now+r.CachingPeriod (spec §4.H step 3).
func (r *Realm) RefreshTTL(u *User, now time.Time) {
	u.Dynamic = now.Unix() + r.CachingPeriod
}
