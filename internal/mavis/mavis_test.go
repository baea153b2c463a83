/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package mavis

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tacplusng/tacd/internal/aclmatch"
	"github.com/tacplusng/tacd/internal/avc"
	"github.com/tacplusng/tacd/internal/realm"
	"github.com/tacplusng/tacd/internal/session"
)

// fakeBackend is a test double for Backend: it records the submitted
// request and replays a scripted synchronous outcome/response.
type fakeBackend struct {
	outcome  Outcome
	response *avc.Bundle
	lastReq  *avc.Bundle
	called   bool
}

func (f *fakeBackend) Submit(req *avc.Bundle, done chan<- Completion) (Outcome, *avc.Bundle) {
	f.called = true
	f.lastReq = req
	return f.outcome, f.response
}

// deferredBackend retains the done channel so a test can deliver a
// completion on its own schedule.
type deferredBackend struct {
	done chan<- Completion
}

func (d *deferredBackend) Submit(req *avc.Bundle, done chan<- Completion) (Outcome, *avc.Bundle) {
	d.done = done
	return OutcomeDeferred, nil
}

type parserFunc func(u *realm.User, class ProfileClass, line string) error

func (f parserFunc) Parse(u *realm.User, class ProfileClass, line string) error {
	return f(u, class, line)
}

func okResponse(username string, sessionID int64) *avc.Bundle {
	b := avc.New()
	b.Set(avc.TYPE, "tacplus")
	b.Set(avc.USER, username)
	b.Set(avc.TIMESTAMP, strconv.FormatInt(sessionID, 10))
	b.Set(avc.RESULT, "OK")
	return b
}

func TestLookupGateNoBackend(t *testing.T) {
	o := New(nil, nil, nil)
	sess := session.New("alice")

	called := false
	o.Lookup(sess, nil, func(*session.Session) { called = true }, ReqINFO, realm.PwLogin)
	require.True(t, called)
}

func TestLookupGatePending(t *testing.T) {
	backend := &fakeBackend{}
	o := New(backend, nil, nil)
	sess := session.New("alice")
	sess.MavisPending = true

	o.Lookup(sess, nil, func(*session.Session) {}, ReqINFO, realm.PwLogin)
	require.False(t, backend.called)
}

func TestLookupGateACLDenies(t *testing.T) {
	backend := &fakeBackend{}
	o := New(backend, nil, nil)

	r := realm.NewRealm("r", nil)
	acl, err := aclmatch.Compile([]aclmatch.Rule{{Pattern: "admin*", Verdict: aclmatch.Permit}})
	require.NoError(t, err)
	r.ACL = acl

	sess := session.New("bob")
	sess.Realm = r

	called := false
	o.Lookup(sess, nil, func(*session.Session) { called = true }, ReqINFO, realm.PwLogin)
	require.True(t, called)
	require.False(t, backend.called)
}

func TestLookupGateNoDelegationNoUser(t *testing.T) {
	backend := &fakeBackend{}
	o := New(backend, nil, nil)

	r := realm.NewRealm("r", nil) // MavisUserdb left unset -> false default
	sess := session.New("carol")
	sess.Realm = r

	called := false
	o.Lookup(sess, nil, func(*session.Session) { called = true }, ReqINFO, realm.PwLogin)
	require.True(t, called)
	require.False(t, backend.called)
}

func TestLookupSubmitsAndFinalizesSynchronously(t *testing.T) {
	r := realm.NewRealm("r", nil)
	r.MavisUserdb = realm.TriTrue
	r.CachingPeriod = 300

	o := New(nil, nil, nil)
	sess := session.New("dave")
	sess.Realm = r

	resp := okResponse("dave", sess.SessionID)
	backend := &fakeBackend{outcome: OutcomeFinal, response: resp}
	o.Backend = backend

	called := false
	o.Lookup(sess, nil, func(s *session.Session) { called = true }, ReqINFO, realm.PwLogin)

	require.True(t, backend.called)
	require.True(t, called)
	require.False(t, sess.MavisPending)
	require.NotNil(t, sess.User)
	require.Equal(t, "dave", sess.User.Name)
}

func TestLookupBuildsRequestAttributes(t *testing.T) {
	r := realm.NewRealm("billing", nil)
	r.MavisUserdb = realm.TriTrue

	backend := &fakeBackend{outcome: OutcomeIgnore}
	o := New(backend, nil, nil)

	sess := session.New("eve")
	sess.Realm = r
	sess.Password = "hunter2"
	sess.PasswdChangeable = true

	conn := session.NewConnection()
	conn.PeerAddressASCII = "10.0.0.1"

	o.Lookup(sess, conn, func(*session.Session) {}, ReqPAP, realm.PwPAP)

	require.True(t, backend.called)
	typ, _ := backend.lastReq.Get(avc.TYPE)
	require.Equal(t, "tacplus", typ)
	user, _ := backend.lastReq.Get(avc.USER)
	require.Equal(t, "eve", user)
	pw, _ := backend.lastReq.Get(avc.PASSWORD)
	require.Equal(t, "hunter2", pw)
	callerCap, _ := backend.lastReq.Get(avc.CALLER_CAP)
	require.Equal(t, ":chpw:", callerCap)
	serverip, _ := backend.lastReq.Get(avc.SERVERIP)
	require.Equal(t, "10.0.0.1", serverip)
}

func TestDeferredCompletionInvokesContinuation(t *testing.T) {
	r := realm.NewRealm("r", nil)
	r.MavisUserdb = realm.TriTrue

	backend := &deferredBackend{}
	o := New(backend, nil, nil)

	sess := session.New("frank")
	sess.Realm = r

	doneCh := make(chan struct{})
	o.Lookup(sess, nil, func(s *session.Session) { close(doneCh) }, ReqINFO, realm.PwLogin)
	require.True(t, sess.MavisPending)
	require.NotNil(t, backend.done)

	resp := okResponse("frank", sess.SessionID)
	backend.done <- Completion{Outcome: OutcomeFinal, Response: resp}

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("continuation was never invoked")
	}
	require.False(t, sess.MavisPending)
}

func TestFinalizeCorrelationFailureSetsError(t *testing.T) {
	o := New(nil, nil, nil)
	sess := session.New("grace")
	sess.Realm = realm.NewRealm("r", nil)

	resp := avc.New()
	resp.Set(avc.RESULT, "ERROR")

	o.Complete(sess, OutcomeFinal, resp)
	require.Equal(t, session.MavisError, sess.MavisAuthRes)
	require.NotEqual(t, int64(0), sess.Realm.LastBackendFailure)
}

func TestFinalizeParserErrorAbortsMaterialization(t *testing.T) {
	r := realm.NewRealm("r", nil)
	r.MavisUserdb = realm.TriTrue

	o := New(nil, parserFunc(func(u *realm.User, class ProfileClass, line string) error {
		return errors.New("boom")
	}), nil)

	sess := session.New("iris")
	sess.Realm = r
	resp := okResponse("iris", sess.SessionID)
	resp.Set(avc.TACMEMBER, "admins")

	o.finalize(sess, resp, time.Now())

	require.Equal(t, session.MavisError, sess.MavisAuthRes)
	require.Contains(t, sess.UserMsg, "iris")
	require.Nil(t, sess.User)
}

func TestFinalizeChallengePath(t *testing.T) {
	r := realm.NewRealm("r", nil)
	r.MavisUserdb = realm.TriTrue

	o := New(nil, nil, nil)
	sess := session.New("jack")
	sess.Realm = r
	sess.MavisData = &session.MavisData{RequestType: ReqCHAL}

	resp := okResponse("jack", sess.SessionID)
	resp.Set(avc.CHALLENGE, "please respond")

	o.finalize(sess, resp, time.Now())

	require.Equal(t, "please respond", sess.Challenge)
	require.NotNil(t, sess.User)
	require.Equal(t, realm.ChalYes, sess.User.ChalResp)
	require.Equal(t, session.MavisNone, sess.MavisAuthRes) // challenge path returns before step 8
}

func TestFinalizeSeedsCredentialOnNonInfoPass(t *testing.T) {
	r := realm.NewRealm("r", nil)
	r.MavisUserdb = realm.TriTrue
	r.CachingPeriod = 300 // passwd_oneshot (step 6) is forced true when caching is off, which would block step 8's seeding

	o := New(nil, nil, nil)
	sess := session.New("karen")
	sess.Realm = r
	sess.Password = "s3cret"
	sess.MavisData = &session.MavisData{RequestType: ReqPAP, PwIx: realm.PwPAP}

	resp := okResponse("karen", sess.SessionID)

	o.finalize(sess, resp, time.Now())

	require.Equal(t, session.MavisPass, sess.MavisAuthRes)
	require.NotNil(t, sess.User)
	require.Equal(t, realm.PwTypeCrypt, sess.User.Passwd[realm.PwMavis].Type)
	require.NotEmpty(t, sess.User.Passwd[realm.PwMavis].Value)
	require.Equal(t, sess.User.Passwd[realm.PwMavis], sess.User.Passwd[realm.PwPAP])
}

func TestFinalizePasswordTypeConflict(t *testing.T) {
	r := realm.NewRealm("r", nil)
	r.MavisUserdb = realm.TriTrue

	// Simulates a profile fragment that declares a non-mavis PAP password
	// (e.g. "password pap = clear ...") via the out-of-scope config parser.
	o := New(nil, parserFunc(func(u *realm.User, class ProfileClass, line string) error {
		if class == ClassTACPROFILE {
			u.Passwd[realm.PwPAP] = realm.Password{Type: realm.PwTypeClear, Value: "x"}
		}
		return nil
	}), nil)

	sess := session.New("leo")
	sess.Realm = r
	sess.Password = "hunter2"
	sess.MavisData = &session.MavisData{RequestType: ReqPAP, PwIx: realm.PwPAP}

	resp := okResponse("leo", sess.SessionID)
	resp.Set(avc.TACPROFILE, "password pap = clear x")

	o.finalize(sess, resp, time.Now())

	require.Equal(t, session.MavisFail, sess.MavisAuthRes)
	result, _ := resp.Get(avc.RESULT)
	require.Equal(t, "FAIL", result)
}
