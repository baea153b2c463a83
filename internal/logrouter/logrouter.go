/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package logrouter implements the log router (spec component F): given a
// session, its connection, an event class, and a timestamp, it walks the
// realm tree from the connection's realm up through every parent,
// collecting the additive union of destinations registered for that event
// class, and for each one evaluates the destination's compiled format and
// writes the result. Grounded on utils.c's log_exec.
package logrouter

import (
	"strconv"
	"time"

	"github.com/tacplusng/tacd/internal/logdest"
	"github.com/tacplusng/tacd/internal/logfmt"
	"github.com/tacplusng/tacd/internal/realm"
	"github.com/tacplusng/tacd/internal/session"
)

// Event carries the event-class-specific fields a wire-protocol decision
// layer (out of scope for this core, spec §1 "TACACS+ wire codec... ACL
// evaluator... deliberately out of scope") has already computed and wants
// logged: the AAA result/type/service, argument vectors, and a free-text
// message. The router only binds these against a destination's compiled
// format; it never derives them itself.
type Event struct {
	Result  string
	Type    string
	Service string

	InboundArgs  []string
	OutboundArgs []string

	IsShellService bool

	Message string

	Devices *logfmt.DeviceMessages

	// Raw forces sanitization bypass for this entire event, mirroring
	// spec §4.D's "eval_log_raw" flag.
	Raw bool
}

// Exec dispatches one event into every destination reachable from
// conn.Realm's position in the realm tree, for the given event class
// (spec §4.F: "walks the realm chain from ctx.realm upward through
// parents... parent inheritance is additive"). Per-destination write
// errors are collected but do not stop the walk — one bad destination must
// not suppress delivery to the rest (spec §7 "errors never cross component
// boundaries as exceptions").
func Exec(sess *session.Session, conn *session.Connection, ev Event, class logdest.EventClass, now time.Time) []error {
	if conn == nil || conn.Realm == nil {
		return nil
	}

	var errs []error
	seen := make(map[*logdest.Destination]bool)

	conn.Realm.Walk(func(r *realm.Realm) bool {
		for _, d := range r.DestinationsFor(class) {
			if seen[d] {
				continue
			}
			seen[d] = true

			format := d.FormatFor(class)
			if format == nil {
				continue
			}

			ctx := buildContext(sess, conn, r, ev, now)
			line := logfmt.Evaluate(format, ctx)
			if err := d.Write(line, now); err != nil {
				errs = append(errs, err)
			}
		}
		return true
	})

	return errs
}

// buildContext binds session/connection/realm/event state into the flat
// logfmt.Context shape (spec §4.D); logfmt has no dependency on session or
// realm, so this translation lives here.
func buildContext(sess *session.Session, conn *session.Connection, r *realm.Realm, ev Event, now time.Time) *logfmt.Context {
	ctx := &logfmt.Context{
		Now: now,

		NAS:    conn.PeerAddressASCII,
		Client: conn.ProxyAddressASCII,
		Server: conn.ServerAddressASCII,
		Realm:  r.Name,
		Host:   conn.Host,

		Result:  ev.Result,
		Type:    ev.Type,
		Service: ev.Service,

		InboundArgs:    ev.InboundArgs,
		OutboundArgs:   ev.OutboundArgs,
		IsShellService: ev.IsShellService,

		Message: ev.Message,

		Devices: ev.Devices,
		Raw:     ev.Raw,
	}

	if sess != nil {
		ctx.User = sess.Username
		if sess.SessionID != 0 {
			ctx.SessionID = strconv.FormatInt(sess.SessionID, 10)
		}
		ctx.MsgID = sess.MsgID
	}

	if conn.TLS != nil {
		ctx.TLSVersion = conn.TLS.Version
		ctx.TLSCipher = conn.TLS.Cipher
		ctx.TLSSNI = conn.TLS.SNI
		ctx.TLSPeerCertIssuer = conn.TLS.PeerCertIssuer
		ctx.TLSPeerCertSubject = conn.TLS.PeerCertSubject
		ctx.TLSPeerCertCN = conn.TLS.PeerCertCN
		ctx.TLSPSKIdentity = conn.TLS.PSKIdentity
	}

	return ctx
}
