/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package pwhash implements the $1$ MD5-crypt transform tacd uses to cache
// a MAVIS-verified cleartext credential locally (spec §4.H step 8, §9
// design note "MD5-crypt", §8 property 8). No example or reference repo in
// the corpus carries this legacy, deliberately-weak algorithm — every
// crypto import in the pack targets bcrypt/scrypt/ssh key material — so it
// is built directly on crypto/md5, matching the original C implementation
// byte-for-byte rather than delegating to a generic hashing library (see
// DESIGN.md).
package pwhash

import (
	"crypto/md5"
	"crypto/rand"
	"strings"
)

// saltAlphabet is the exact 64-character ordering the original source uses
// (mavis.c: "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"),
// preserved literally for interoperability with existing persisted hashes.
const saltAlphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const magic = "$1$"

// GenerateSalt returns a random "$1$xxxxxxxx$" salt string: 8 characters
// drawn uniformly from saltAlphabet, matching spec §8 property 8.
func GenerateSalt() (string, error) {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(12)
	b.WriteString(magic)
	for _, r := range raw {
		b.WriteByte(saltAlphabet[int(r)%len(saltAlphabet)])
	}
	b.WriteByte('$')
	return b.String(), nil
}

// Crypt computes the classic $1$ MD5-crypt digest of password under salt.
// salt may be a bare 8-character string or a full "$1$salt$" prefix (only
// the salt component between the second and third '$' is used, matching
// crypt(3) semantics); the returned string is the complete "$1$salt$hash"
// form.
func Crypt(password, salt string) string {
	salt = extractSalt(salt)
	if len(salt) > 8 {
		salt = salt[:8]
	}

	pwBytes := []byte(password)
	saltBytes := []byte(salt)

	// Alternate digest: used only to feed trailing bytes into ctx1.
	altCtx := md5.New()
	altCtx.Write(pwBytes)
	altCtx.Write(saltBytes)
	altCtx.Write(pwBytes)
	altSum := altCtx.Sum(nil)

	ctx := md5.New()
	ctx.Write(pwBytes)
	ctx.Write([]byte(magic))
	ctx.Write(saltBytes)

	for pl := len(pwBytes); pl > 0; pl -= 16 {
		if pl > 16 {
			ctx.Write(altSum)
		} else {
			ctx.Write(altSum[:pl])
		}
	}

	for i := len(pwBytes); i != 0; i >>= 1 {
		if i&1 != 0 {
			ctx.Write([]byte{0})
		} else {
			ctx.Write([]byte{pwBytes[0]})
		}
	}

	sum := ctx.Sum(nil)

	for i := 0; i < 1000; i++ {
		c2 := md5.New()
		if i&1 != 0 {
			c2.Write(pwBytes)
		} else {
			c2.Write(sum)
		}
		if i%3 != 0 {
			c2.Write(saltBytes)
		}
		if i%7 != 0 {
			c2.Write(pwBytes)
		}
		if i&1 != 0 {
			c2.Write(sum)
		} else {
			c2.Write(pwBytes)
		}
		sum = c2.Sum(nil)
	}

	var out strings.Builder
	out.WriteString(magic)
	out.WriteString(salt)
	out.WriteByte('$')
	out.WriteString(to64Group(sum))
	return out.String()
}

// extractSalt pulls the salt characters out of either a bare salt or a
// full "$1$salt$hash" / "$1$salt$" string.
func extractSalt(s string) string {
	if !strings.HasPrefix(s, magic) {
		return s
	}
	rest := s[len(magic):]
	if idx := strings.IndexByte(rest, '$'); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

const to64chars = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func to64(value uint32, n int) string {
	b := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b = append(b, to64chars[value&0x3f])
		value >>= 6
	}
	return string(b)
}

// to64Group reassembles the 16-byte MD5 sum into the original's
// permuted base64-like encoding.
func to64Group(sum []byte) string {
	var b strings.Builder
	triples := [][3]int{
		{0, 6, 12},
		{1, 7, 13},
		{2, 8, 14},
		{3, 9, 15},
		{4, 10, 5},
	}
	for _, t := range triples {
		v := uint32(sum[t[0]])<<16 | uint32(sum[t[1]])<<8 | uint32(sum[t[2]])
		b.WriteString(to64(v, 4))
	}
	v := uint32(sum[11])
	b.WriteString(to64(v, 2))
	return b.String()
}

// Verify reports whether password hashes to the same digest encoded in
// stored (a full "$1$salt$hash" string).
func Verify(password, stored string) bool {
	salt := extractSalt(stored)
	return Crypt(password, salt) == stored
}
