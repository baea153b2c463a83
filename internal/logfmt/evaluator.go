/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logfmt

import (
	"strings"
	"time"

	"github.com/tacplusng/tacd/internal/strftime"
)

// outputBudget is the fixed bound on evaluator output (spec §3 invariant:
// "never emit more than a fixed bound of bytes per event (implementation
// budget ~8 KiB)").
const outputBudget = 8 * 1024

// Source identifies where an evaluation originates, distinguishing the two
// sources that bypass sanitization entirely (spec §4.D: "unless the event
// was flagged eval_log_raw or the source is umessage / AUTHFAIL_BANNER").
type Source int

const (
	SourceNormal Source = iota
	SourceUMessage
	SourceAuthFailBanner
)

// DeviceMessages is the closed table of operator-facing prompts a device
// record carries, resolved for UI-message fields (spec §4.D "UI-message
// fields ... resolved against the connection's device record's message
// table").
type DeviceMessages struct {
	Password        string
	ChangePassword  string
	AccountExpires  string
	AuthFailBanner  *Format
}

// Context is the (session, connection, destination) triple plus ambient
// state an evaluation binds against (spec §4.D). Fields are plain strings/
// structs rather than importing internal/session directly, so that logfmt
// has no dependency on the session package; callers (internal/logrouter)
// populate a Context from a *session.Session / *session.Connection.
type Context struct {
	Now time.Time

	User      string
	NAS       string
	Client    string
	Server    string
	Realm     string
	Host      string
	SessionID string
	MsgID     string
	Result    string
	Type      string
	Service   string

	// InboundArgs is the inbound authorization argument vector (cmd/args
	// source); OutboundArgs is the outbound vector (rargs source), spec
	// §4.D "Argument formatting".
	InboundArgs  []string
	OutboundArgs []string

	IsShellService bool

	Message string // session.user_msg or similar free-text

	TLSVersion        string
	TLSCipher         string
	TLSSNI            string
	TLSPeerCertIssuer string
	TLSPeerCertSubject string
	TLSPeerCertCN     string
	TLSPSKIdentity    string

	Devices *DeviceMessages

	Raw    bool
	Source Source
}

// Evaluate binds f against ctx, producing a sanitized, bounded string.
func Evaluate(f *Format, ctx *Context) string {
	var b strings.Builder
	remaining := outputBudget

	raw := ctx.Raw || ctx.Source == SourceUMessage || ctx.Source == SourceAuthFailBanner

	for _, n := range f.Nodes {
		if remaining < 10 {
			break
		}
		switch n.Kind {
		case NodeLiteral:
			expanded := strftime.Format(n.Literal, ctx.Now)
			remaining = appendLiteral(&b, expanded, remaining)
		case NodeField:
			val, ok := extract(n.Field, n.Sep, ctx)
			if !ok {
				continue
			}
			fieldRaw := raw || rawToken(n.Field)
			if fieldRaw {
				remaining = appendLiteral(&b, val, remaining)
			} else {
				remaining = Sanitize(&b, val, remaining)
			}
		}
	}
	return b.String()
}

// appendLiteral copies s verbatim (no sanitization — used for strftime-
// expanded literal template text, which spec §4.C treats as trusted
// template content, not session-derived data).
func appendLiteral(b *strings.Builder, s string, remaining int) int {
	if len(s) > remaining {
		s = s[:remaining]
	}
	b.WriteString(s)
	return remaining - len(s)
}

func extract(t Token, sep string, ctx *Context) (string, bool) {
	switch t {
	case TokUser:
		return ctx.User, ctx.User != ""
	case TokNAS:
		return ctx.NAS, ctx.NAS != ""
	case TokClientAddr:
		return ctx.Client, ctx.Client != ""
	case TokServerAddr:
		return ctx.Server, ctx.Server != ""
	case TokRealm:
		return ctx.Realm, ctx.Realm != ""
	case TokHost:
		return ctx.Host, ctx.Host != ""
	case TokSessionID:
		return ctx.SessionID, ctx.SessionID != ""
	case TokMsgID:
		return ctx.MsgID, ctx.MsgID != ""
	case TokResult:
		return ctx.Result, ctx.Result != ""
	case TokType:
		return ctx.Type, ctx.Type != ""
	case TokService:
		return ctx.Service, ctx.Service != ""
	case TokMessage:
		return ctx.Message, ctx.Message != ""
	case TokUMessage:
		return ctx.Message, ctx.Message != ""
	case TokTLSVersion:
		return ctx.TLSVersion, ctx.TLSVersion != ""
	case TokTLSCipher:
		return ctx.TLSCipher, ctx.TLSCipher != ""
	case TokTLSSNI:
		return ctx.TLSSNI, ctx.TLSSNI != ""
	case TokTLSPeerCertIssuer:
		return ctx.TLSPeerCertIssuer, ctx.TLSPeerCertIssuer != ""
	case TokTLSPeerCertSubject:
		return ctx.TLSPeerCertSubject, ctx.TLSPeerCertSubject != ""
	case TokTLSPeerCertCN:
		return ctx.TLSPeerCertCN, ctx.TLSPeerCertCN != ""
	case TokTLSPSKIdentity:
		return ctx.TLSPSKIdentity, ctx.TLSPSKIdentity != ""
	case TokCmd, TokArgs, TokRArgs:
		return formatArgs(ctx, t, sep), true
	case TokUIPassword:
		if ctx.Devices == nil {
			return "", false
		}
		return ctx.Devices.Password, ctx.Devices.Password != ""
	case TokUIChangePassword:
		if ctx.Devices == nil {
			return "", false
		}
		return ctx.Devices.ChangePassword, ctx.Devices.ChangePassword != ""
	case TokUIAccountExpires:
		if ctx.Devices == nil {
			return "", false
		}
		return ctx.Devices.AccountExpires, ctx.Devices.AccountExpires != ""
	case TokUIAuthFailBanner:
		if ctx.Devices == nil || ctx.Devices.AuthFailBanner == nil {
			return "", false
		}
		// Recursive sub-template evaluation against the same session, with
		// ctx nulled (spec §4.D: "AUTHFAIL_BANNER is itself a compiled
		// sub-template and is evaluated recursively against the same
		// session with ctx nulled").
		sub := *ctx
		sub.NAS = ""
		sub.Server = ""
		sub.Client = ""
		sub.Host = ""
		sub.TLSVersion = ""
		sub.TLSCipher = ""
		sub.TLSSNI = ""
		sub.TLSPeerCertIssuer = ""
		sub.TLSPeerCertSubject = ""
		sub.TLSPeerCertCN = ""
		sub.TLSPSKIdentity = ""
		sub.Source = SourceAuthFailBanner
		return Evaluate(ctx.Devices.AuthFailBanner, &sub), true
	default:
		return "", false
	}
}

// formatArgs implements spec §4.D "Argument formatting for cmd, args,
// rargs": cmd applies only to shell-service sessions (aliasing to args for
// non-shell services); the source is the inbound vector for cmd/args, the
// outbound vector for rargs; entries prefixed "service=" are always
// skipped; for cmd, only entries whose key is cmd=, cmd*, or cmd-arg= are
// emitted with the key stripped; a per-item separator (the node's Sep) is
// interposed by the caller via strings.Join semantics reproduced here.
func formatArgs(ctx *Context, t Token, sep string) string {
	effective := t
	if t == TokCmd && !ctx.IsShellService {
		effective = TokArgs
	}

	var source []string
	if effective == TokRArgs {
		source = ctx.OutboundArgs
	} else {
		source = ctx.InboundArgs
	}

	var out []string
	for _, entry := range source {
		if strings.HasPrefix(entry, "service=") {
			continue
		}
		if effective == TokCmd {
			switch {
			case strings.HasPrefix(entry, "cmd="):
				out = append(out, entry[len("cmd="):])
			case strings.HasPrefix(entry, "cmd*"):
				out = append(out, entry[len("cmd*"):])
			case strings.HasPrefix(entry, "cmd-arg="):
				out = append(out, entry[len("cmd-arg="):])
			}
			continue
		}
		out = append(out, entry)
	}

	return strings.Join(out, sep)
}
