/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package mavis

import (
	"strconv"
	"strings"

	"github.com/tacplusng/tacd/internal/aclmatch"
	"github.com/tacplusng/tacd/internal/avc"
	"github.com/tacplusng/tacd/internal/realm"
	"github.com/tacplusng/tacd/internal/session"
)

// Request-type tokens (spec §4.G "closed set").
const (
	ReqTACPLUS = "TACPLUS"
	ReqINFO    = "INFO"
	ReqCHPW    = "CHPW"
	ReqCHAL    = "CHAL"
	ReqLOGIN   = "LOGIN"
	ReqPAP     = "PAP"
)

// Lookup is the MAVIS request orchestrator's entry point (spec §4.G
// "lookup(session, continuation, request-type, password-slot)"). continuation
// is invoked synchronously when gate 1, 3 or 4 ends the lookup; gate 2 (a
// lookup already pending) returns without invoking it. Otherwise it is
// invoked from Complete, either directly for a synchronous outcome or from
// the goroutine that waits on the backend's completion channel.
func (o *Orchestrator) Lookup(sess *session.Session, conn *session.Connection, continuation func(*session.Session), requestType string, pwIx realm.PwIx) {
	r := sess.Realm

	// Gate 1: no backend at all configured for this daemon.
	if o.Backend == nil {
		continuation(sess)
		return
	}

	// Gate 2: idempotent re-entry guard.
	if sess.MavisPending {
		return
	}

	// Gate 3: mavis_user_acl, if configured, must permit this username.
	if r != nil && r.ACL != nil {
		if r.ACL.Eval(sess.Username) != aclmatch.Permit {
			o.logf("mavis: bogus username %q rejected by realm %q ACL", sess.Username, r.Name)
			continuation(sess)
			return
		}
	}

	// Gate 4: skip the backend when the realm doesn't delegate identity and
	// the session has no locally-bound user.
	if (r == nil || !r.MavisUserdb.Bool(false)) && sess.User == nil {
		continuation(sess)
		return
	}

	sess.MavisData = &session.MavisData{
		Continuation: continuation,
		RequestType:  requestType,
		PwIx:         pwIx,
	}

	req := o.buildRequest(sess, conn, r, requestType)

	done := make(chan Completion, 1)
	outcome, resp := o.Backend.Submit(req, done)

	switch outcome {
	case OutcomeDeferred:
		sess.MavisPending = true
		go o.awaitCompletion(sess, done)
	case OutcomeIgnore:
		// Transport took ownership; nothing further to do here (spec §4.G:
		// "IGNORE is a no-op").
	default:
		o.Complete(sess, outcome, resp)
	}
}

// awaitCompletion blocks for the single Completion a deferred Submit
// promises, then runs it through the same completion path as a synchronous
// outcome.
func (o *Orchestrator) awaitCompletion(sess *session.Session, done <-chan Completion) {
	c := <-done
	o.Complete(sess, c.Outcome, c.Response)
}

// buildRequest constructs the outbound attribute bundle (spec §4.G
// "constructs an attribute bundle with, at minimum: ...").
func (o *Orchestrator) buildRequest(sess *session.Session, conn *session.Connection, r *realm.Realm, requestType string) *avc.Bundle {
	b := avc.New()

	b.Set(avc.TYPE, "tacplus")
	b.Set(avc.USER, sess.Username)
	b.Set(avc.TIMESTAMP, strconv.FormatInt(sess.SessionID, 10))
	b.Set(avc.TACTYPE, requestType)

	if conn != nil {
		b.Set(avc.SERVERIP, conn.PeerAddressASCII)
	}

	if sess.PasswdChangeable {
		b.Set(avc.CALLER_CAP, ":chpw:")
	}
	if sess.NacAddressValid {
		b.Set(avc.IPADDR, sess.NacAddressASCII)
	}
	if r != nil && r.Name != "" {
		b.Set(avc.REALM, r.Name)
	}
	if sess.Password != "" && requestType != ReqINFO {
		b.Set(avc.PASSWORD, sess.Password)
	}
	if sess.PasswordNew != "" && requestType == ReqCHPW {
		b.Set(avc.PASSWORD_NEW, sess.PasswordNew)
	}
	if requestType == ReqINFO && (r == nil || !r.CachingEnabled()) && len(sess.AuthorData) > 0 {
		b.Set(avc.ARGS, strings.Join(sess.AuthorData, "\n"))
	}

	return b
}
