/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package avc implements the MAVIS attribute bundle: a sparse, enum-indexed
// set of optional strings carrying a MAVIS request or response (spec §3,
// §6). The attribute set is closed; there is no way to set an attribute
// outside the enumeration below.
package avc

// Attr identifies one slot in a Bundle.
type Attr int

const (
	TYPE Attr = iota
	USER
	TIMESTAMP
	TACTYPE
	SERVERIP
	IPADDR
	REALM
	PASSWORD
	PASSWORD_NEW
	RESULT
	VERDICT
	CHALLENGE
	PASSWORD_EXPIRY
	PASSWORD_MUSTCHANGE
	PASSWORD_ONESHOT
	USER_RESPONSE
	ARGS
	RARGS
	TACMEMBER
	SSHKEY
	SSHKEYHASH
	SSHKEYID
	TACPROFILE
	DN
	MEMBEROF
	PATH
	UID
	GID
	GIDS
	HOME
	ROOT
	SHELL
	IDENTITY_SOURCE
	CALLER_CAP
	CUSTOM_0
	CUSTOM_1
	CUSTOM_2
	CUSTOM_3

	numAttr
)

var names = [numAttr]string{
	TYPE:                "TYPE",
	USER:                "USER",
	TIMESTAMP:           "TIMESTAMP",
	TACTYPE:             "TACTYPE",
	SERVERIP:            "SERVERIP",
	IPADDR:              "IPADDR",
	REALM:               "REALM",
	PASSWORD:            "PASSWORD",
	PASSWORD_NEW:        "PASSWORD_NEW",
	RESULT:              "RESULT",
	VERDICT:             "VERDICT",
	CHALLENGE:           "CHALLENGE",
	PASSWORD_EXPIRY:     "PASSWORD_EXPIRY",
	PASSWORD_MUSTCHANGE: "PASSWORD_MUSTCHANGE",
	PASSWORD_ONESHOT:    "PASSWORD_ONESHOT",
	USER_RESPONSE:       "USER_RESPONSE",
	ARGS:                "ARGS",
	RARGS:               "RARGS",
	TACMEMBER:           "TACMEMBER",
	SSHKEY:              "SSHKEY",
	SSHKEYHASH:          "SSHKEYHASH",
	SSHKEYID:            "SSHKEYID",
	TACPROFILE:          "TACPROFILE",
	DN:                  "DN",
	MEMBEROF:            "MEMBEROF",
	PATH:                "PATH",
	UID:                 "UID",
	GID:                 "GID",
	GIDS:                "GIDS",
	HOME:                "HOME",
	ROOT:                "ROOT",
	SHELL:               "SHELL",
	IDENTITY_SOURCE:     "IDENTITY_SOURCE",
	CALLER_CAP:          "CALLER_CAP",
	CUSTOM_0:            "CUSTOM_0",
	CUSTOM_1:            "CUSTOM_1",
	CUSTOM_2:            "CUSTOM_2",
	CUSTOM_3:            "CUSTOM_3",
}

func (a Attr) String() string {
	if a < 0 || a >= numAttr {
		return "INVALID"
	}
	return names[a]
}

// ByName resolves a wire attribute name to its Attr. ok is false for
// anything outside the closed enumeration.
func ByName(name string) (a Attr, ok bool) {
	for i, n := range names {
		if n == name {
			return Attr(i), true
		}
	}
	return 0, false
}

// Bundle is a fixed-size, enum-indexed array of nullable owned strings, plus
// a "private" overlay that shadows the base slots and is discarded on
// Detach (spec §3 "supports private overlay values freed on reuse").
type Bundle struct {
	base    [numAttr]*string
	private [numAttr]*string
	havePv  bool
}

// New returns an empty bundle.
func New() *Bundle {
	return &Bundle{}
}

// Set installs value into slot a, replacing any previous value there.
func (b *Bundle) Set(a Attr, value string) {
	if a < 0 || a >= numAttr {
		return
	}
	v := value
	b.base[a] = &v
}

// SetPrivate installs a private-overlay value for slot a; Get prefers the
// overlay over the base value until Detach is called.
func (b *Bundle) SetPrivate(a Attr, value string) {
	if a < 0 || a >= numAttr {
		return
	}
	v := value
	b.private[a] = &v
	b.havePv = true
}

// Unset clears slot a (both base and overlay).
func (b *Bundle) Unset(a Attr) {
	if a < 0 || a >= numAttr {
		return
	}
	b.base[a] = nil
	b.private[a] = nil
}

// Get returns the value at a and whether it is present. The private overlay
// takes priority when set.
func (b *Bundle) Get(a Attr) (string, bool) {
	if a < 0 || a >= numAttr {
		return "", false
	}
	if b.private[a] != nil {
		return *b.private[a], true
	}
	if b.base[a] != nil {
		return *b.base[a], true
	}
	return "", false
}

// Has reports whether a is present (base or overlay), matching the
// original's "presence = true" attributes such as PASSWORD_MUSTCHANGE.
func (b *Bundle) Has(a Attr) bool {
	_, ok := b.Get(a)
	return ok
}

// Detach discards the private overlay, exposing base values again. Called
// on MAVIS FINAL completion (spec §4.H: "detach the private overlay of the
// attribute bundle").
func (b *Bundle) Detach() {
	if !b.havePv {
		return
	}
	for i := range b.private {
		b.private[i] = nil
	}
	b.havePv = false
}

// Clone returns a deep copy sharing no string pointers with b, used when
// the bundle is handed off to a cached User (spec §9: "ownership of the
// attribute bundle" is transferred post-materialization).
func (b *Bundle) Clone() *Bundle {
	c := &Bundle{havePv: b.havePv}
	for i := range b.base {
		if b.base[i] != nil {
			v := *b.base[i]
			c.base[i] = &v
		}
		if b.private[i] != nil {
			v := *b.private[i]
			c.private[i] = &v
		}
	}
	return c
}
