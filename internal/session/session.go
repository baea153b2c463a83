/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package session

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tacplusng/tacd/internal/realm"
)

// MavisOutcome is the per-session MAVIS verdict (spec §3 "mavisauth_res").
type MavisOutcome int

const (
	MavisNone MavisOutcome = iota
	MavisPass
	MavisFail
	MavisError
)

// MavisData is the suspended continuation for an in-flight MAVIS lookup
// (spec §3 "mavis_data (the pending operation's continuation: callback,
// request-type token, password-slot index)"), arena-owned in the original;
// here it is a plain struct held by Session.MavisData and left to the GC
// (it is not registered with the session's Arena).
type MavisData struct {
	Continuation func(*Session)
	RequestType  string
	PwIx         realm.PwIx
}

// Session is per-request state (spec §3 "Session (S)").
type Session struct {
	Arena *Arena

	Username  string
	SessionID int64 // monotonically-unique correlator, spec §3

	Password    string
	PasswordNew string

	PasswdChangeable bool
	PasswdMustchange bool

	NacAddressASCII    string
	NacAddressValid    bool
	NacAddressASCIILen int

	AuthorData []string // inbound authorization arg vector

	Realm *realm.Realm
	User  *realm.User

	UserIsSessionSpecific bool

	MavisPending bool
	MavisData    *MavisData
	MavisAuthRes MavisOutcome

	Challenge  string
	Authorized bool

	PasswordExpiry int64

	UserMsg    string
	UserMsgLen int

	MsgID string // RFC5424 MSGID, spec §3 denormalized log field
}

var sessionIDCounter int64

// NewSessionID returns a fresh monotonically-increasing correlator for
// Session.SessionID. A UUID cannot serve this role directly: spec §4.G/§4.H
// require decimal-integer correlation against the MAVIS response's
// TIMESTAMP attribute, so a simple process-wide counter is used instead
// (see DESIGN.md); UUIDs back MsgID below.
func NewSessionID() int64 {
	return atomic.AddInt64(&sessionIDCounter, 1)
}

// NewMsgID returns a fresh RFC5424 MSGID value for a session's log records.
func NewMsgID() string {
	return uuid.NewString()
}

// New constructs a Session with a fresh Arena, session ID, and msgid.
func New(username string) *Session {
	return &Session{
		Arena:     NewArena(),
		Username:  username,
		SessionID: NewSessionID(),
		MsgID:     NewMsgID(),
	}
}

// SetUserMsg stores msg as the session's user-facing message, appending a
// trailing newline if absent (spec §4.H FINAL handling: "extract
// USER_RESPONSE into session.user_msg (appending a newline if absent,
// length-tagged)").
func (s *Session) SetUserMsg(msg string) {
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	s.UserMsg = msg
	s.UserMsgLen = len(msg)
}

// BindUser installs u as the session's current user binding. If the
// session previously held a session-specific (uncached) user, the caller
// is responsible for considering it freed (spec §3 invariant: "any user
// shared via R.usertable is never freed by the session" — only a
// session-specific user may be discarded here).
func (s *Session) BindUser(u *realm.User, sessionSpecific bool) {
	s.User = u
	s.UserIsSessionSpecific = sessionSpecific
}

// TLSInfo carries the TLS attributes surfaced to the log formatter (spec
// §3 Connection context "TLS attributes...present only when TLS is
// compiled in"; spec §1 Non-goals "no TLS termination logic (only TLS
// attributes are surfaced)"). A nil *TLSInfo on a Connection means TLS is
// not in use for that connection.
type TLSInfo struct {
	Version         string
	Cipher          string
	SNI             string
	PeerCertIssuer  string
	PeerCertSubject string
	PeerCertCN      string
	PSKIdentity     string
}

// Connection is per-TCP-connection state (spec §3 "Connection context
// (C)"), sharing process-pool allocation via Pool rather than an arena
// (the original ties it to the process-wide mempool, not the per-request
// memlist).
type Connection struct {
	Pool *Pool

	PeerAddressASCII   string
	ProxyAddressASCII  string
	ServerAddressASCII string

	Host string // resolved device ("host") record name

	Realm *realm.Realm

	AcctType string // accounting-type string

	TLS *TLSInfo
}

// NewConnection constructs a Connection with a fresh Pool.
func NewConnection() *Connection {
	return &Connection{Pool: NewPool()}
}
