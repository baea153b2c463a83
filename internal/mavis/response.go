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
	"time"

	"github.com/tacplusng/tacd/internal/avc"
	"github.com/tacplusng/tacd/internal/pwhash"
	"github.com/tacplusng/tacd/internal/realm"
	"github.com/tacplusng/tacd/internal/session"
)

// Complete dispatches one MAVIS completion (synchronous or deferred)
// through the response materializer (spec §4.H "On completion the session
// transitions as follows based on the result code").
func (o *Orchestrator) Complete(sess *session.Session, outcome Outcome, resp *avc.Bundle) {
	md := sess.MavisData
	now := time.Now()

	switch outcome {
	case OutcomeFinal:
		sess.MavisPending = false
		o.finalize(sess, resp, now)

		if msg, ok := resp.Get(avc.USER_RESPONSE); ok {
			sess.SetUserMsg(msg)
		}
		resp.Detach()
		if sess.User != nil {
			sess.User.Bundle = resp.Clone()
		}
		o.invokeContinuation(sess, md)

	case OutcomeTimeout:
		o.logf("mavis: giving up on session %d for user %q", sess.SessionID, sess.Username)
		sess.MavisPending = false
		if sess.Realm != nil {
			sess.Realm.LastBackendFailure = now.Unix()
		}
		o.invokeContinuation(sess, md)

	case OutcomeDeferred:
		sess.MavisPending = true

	case OutcomeIgnore:
		// no-op

	default:
		sess.MavisPending = false
		o.invokeContinuation(sess, md)
	}
}

func (o *Orchestrator) invokeContinuation(sess *session.Session, md *session.MavisData) {
	if md == nil || md.Continuation == nil {
		return
	}
	md.Continuation(sess)
}

// finalize implements spec §4.H's finalization protocol, the correlation
// check and (on success) the full dynamic-profile materialization.
func (o *Orchestrator) finalize(sess *session.Session, resp *avc.Bundle, now time.Time) {
	if resp == nil {
		return
	}

	if !o.correlates(sess, resp) {
		o.handleCorrelationFailure(sess, resp, now)
		return
	}

	r := sess.Realm
	if r == nil {
		return
	}

	// Step 1: look up the user by name, walking parent realms; rebind the
	// working realm to the user's owning realm if found.
	u, owner := r.LookupUser(sess.Username, now)
	if u != nil {
		r = owner
		sess.Realm = owner
	}

	// Step 2: materialize a dynamic profile when the realm delegates
	// identity and either no user was cached or the cached entry is dynamic.
	materialized := false
	if r.MavisUserdb.Bool(false) && (u == nil || u.Dynamic > 0) {
		var ok bool
		u, ok = o.materialize(sess, r, resp, u, now)
		if !ok {
			return // materialization aborted; mavisauth_res/user_msg already set
		}
		materialized = true

		if result, ok := resp.Get(avc.RESULT); ok && result != "OK" {
			o.logf("mavis: result=%s user=%q realm=%q", result, sess.Username, r.Name)
			sess.BindUser(u, !r.CachingEnabled())
			return // spec §4.H step 2: "the profile is kept but the outcome is a failure"
		}
	}

	// session_specific only applies to a just-materialized, uncached user;
	// a user found already bound/cached via step 1 keeps its prior binding
	// discipline (spec §3 invariant: "a session whose user_is_session_specific
	// is true never aliases a cache entry").
	sess.BindUser(u, materialized && !r.CachingEnabled())

	// Step 3: refresh TTL for a dynamic entry.
	if u != nil && u.Dynamic > 0 {
		r.RefreshTTL(u, now)
	}

	// Step 4: password-change obligation.
	sess.PasswdMustchange = resp.Has(avc.PASSWORD_MUSTCHANGE)
	if sess.PasswdMustchange && !sess.PasswdChangeable {
		sess.PasswdMustchange = false
		resp.Set(avc.RESULT, "FAIL")
	}

	// Step 5: password expiry.
	if v, ok := resp.Get(avc.PASSWORD_EXPIRY); ok {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			sess.PasswordExpiry = secs
		}
	}

	// Step 6: passwd_oneshot.
	oneshot := !r.CachingEnabled() || resp.Has(avc.PASSWORD_ONESHOT) || sess.PasswdMustchange
	if u != nil {
		u.PasswdOneshot = oneshot
	}

	// Step 7: challenge path.
	if sess.MavisData != nil && sess.MavisData.RequestType == ReqCHAL {
		if chal, ok := resp.Get(avc.CHALLENGE); ok {
			if u != nil {
				u.ChalResp = realm.ChalYes
			}
			sess.Challenge = chal
		} else if u != nil {
			u.ChalResp = realm.ChalNo
		}
		result, _ := resp.Get(avc.RESULT)
		o.logf("mavis: challenge result=%s user=%q", result, sess.Username)
		return
	}

	// Step 8: non-INFO paths derive a cached credential.
	if sess.MavisData == nil || sess.MavisData.RequestType != ReqINFO {
		sess.MavisAuthRes = session.MavisPass
		if u != nil && u.ChalResp != realm.ChalYes && sess.Password != "" && !u.PasswdOneshot {
			o.seedCredential(u, sess)
		}
	}

	result, _ := resp.Get(avc.RESULT)
	o.logf("mavis: result=%s user=%q realm=%q", result, sess.Username, r.Name)
}

// correlates implements spec §4.H's correlation check: "TYPE == tacplus AND
// USER == session.username AND decimal(TIMESTAMP) == session.session_id AND
// RESULT == OK".
func (o *Orchestrator) correlates(sess *session.Session, resp *avc.Bundle) bool {
	typ, _ := resp.Get(avc.TYPE)
	user, _ := resp.Get(avc.USER)
	ts, _ := resp.Get(avc.TIMESTAMP)
	result, _ := resp.Get(avc.RESULT)

	tsNum, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	return typ == "tacplus" && user == sess.Username && tsNum == sess.SessionID && result == "OK"
}

func (o *Orchestrator) handleCorrelationFailure(sess *session.Session, resp *avc.Bundle, now time.Time) {
	result, _ := resp.Get(avc.RESULT)
	switch result {
	case "ERROR":
		sess.MavisAuthRes = session.MavisError
		if sess.Realm != nil {
			sess.Realm.LastBackendFailure = now.Unix()
		}
	case "FAIL":
		sess.MavisAuthRes = session.MavisFail
	}
}

// seedCredential derives a cached PW_MAVIS credential (spec §4.H step 8):
// MD5-crypt over the supplied password with a freshly generated salt,
// aliased into both the PW_MAVIS slot and the slot the lookup was issued
// against.
func (o *Orchestrator) seedCredential(u *realm.User, sess *session.Session) {
	pw := sess.Password
	if sess.PasswordNew != "" {
		pw = sess.PasswordNew
	}

	salt, err := pwhash.GenerateSalt()
	if err != nil {
		return
	}
	hash := pwhash.Crypt(pw, salt)

	cred := realm.Password{Type: realm.PwTypeCrypt, Value: hash}
	u.Passwd[realm.PwMavis] = cred
	if sess.MavisData != nil {
		u.Passwd[sess.MavisData.PwIx] = cred
	}
}
