/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package mavis implements the MAVIS request orchestrator and response
// materializer (spec components G and H): submitting an attribute-bundle
// request to an external identity backend, and, on completion, validating
// correlation, materializing a dynamic user profile, refreshing the realm
// cache, and deriving cached credential material. Grounded on mavis.c in
// full (mavis_lookup, mavis_callback, mavis_lookup_final,
// parse_user_profile_multi).
package mavis

import (
	"github.com/shirou/gopsutil/v4/host"

	"github.com/tacplusng/tacd/internal/avc"
	"github.com/tacplusng/tacd/internal/realm"
)

// Outcome is a MAVIS submission/completion result code (spec §4.G
// "Submission returns one of {FINAL, TIMEOUT, DEFERRED, IGNORE, <other>}").
type Outcome int

const (
	OutcomeFinal Outcome = iota
	OutcomeTimeout
	OutcomeDeferred
	OutcomeIgnore
	OutcomeOther
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFinal:
		return "FINAL"
	case OutcomeTimeout:
		return "TIMEOUT"
	case OutcomeDeferred:
		return "DEFERRED"
	case OutcomeIgnore:
		return "IGNORE"
	default:
		return "OTHER"
	}
}

// Completion is what a deferred backend exchange eventually delivers (spec
// §4.H "on completion the session transitions..."). Response is nil for
// Outcome values that carry no attribute bundle (TIMEOUT, IGNORE).
type Completion struct {
	Outcome  Outcome
	Response *avc.Bundle
}

// Backend is the capability interface onto the MAVIS transport itself,
// deliberately out of scope for this core (spec §1 "The MAVIS transport
// itself (we specify only the request/response attribute contract)").
// Submit may resolve synchronously (returning a non-nil response and an
// Outcome other than Deferred/Ignore) or asynchronously: for
// OutcomeDeferred, Submit must eventually send exactly one Completion on
// done; for OutcomeIgnore, the transport has taken ownership and tacd
// expects no further signal through done for this request.
type Backend interface {
	Submit(req *avc.Bundle, done chan<- Completion) (Outcome, *avc.Bundle)
}

// ProfileClass identifies one of the five attribute classes the dynamic
// profile materializer parses (spec §4.H step 2).
type ProfileClass int

const (
	ClassTACMEMBER ProfileClass = iota
	ClassSSHKEY
	ClassSSHKEYHASH
	ClassSSHKEYID
	ClassTACPROFILE
)

// ProfileParser is the capability interface onto the (out-of-scope)
// configuration parser/tokenizer that turns a materialized attribute
// fragment into actual profile state — ACL membership, authorized
// commands, and so on (spec §1 "configuration parser/tokenizer (sym,
// parse_error, keycode) ... treated as capability interfaces"). A non-nil
// error aborts materialization (spec §4.H step 2 "Any parser error aborts
// materialization").
type ProfileParser interface {
	Parse(u *realm.User, class ProfileClass, line string) error
}

// Logger is the minimal diagnostic sink the orchestrator/materializer use
// for operator-visible events (bogus-username, giving-up, password-type
// mismatch); cmd/tacd wires this to an adapter over oplog.KVLogger.
type Logger interface {
	Errorf(format string, args ...any)
}

// Orchestrator owns the MAVIS request/response lifecycle for one daemon
// (spec components G and H).
type Orchestrator struct {
	Backend Backend // nil means no MAVIS backend is configured at all (spec §4.G gate 1)
	Parser  ProfileParser
	Log     Logger
}

// New constructs an Orchestrator.
func New(backend Backend, parser ProfileParser, log Logger) *Orchestrator {
	return &Orchestrator{Backend: backend, Parser: parser, Log: log}
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.Log != nil {
		o.Log.Errorf(format, args...)
	}
}

// localHostname resolves the host name for diagnostic messages (spec §4.H
// step 2 parser-error path: "a fixed multi-line diagnostic containing
// hostname, username, and timestamp").
func localHostname() string {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	return "localhost"
}
