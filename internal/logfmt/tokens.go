/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logfmt

// Token identifies a field extractor in the closed whitelist a compiled
// template's ${name[,sep]} references resolve against (spec §4.C: "name
// must be in a closed whitelist (every AAA/connection/user/TLS/UI-message
// field enumerated in the source)").
type Token int

const (
	TokUser Token = iota
	TokNAS
	TokClientAddr
	TokServerAddr
	TokRealm
	TokHost
	TokSessionID
	TokMsgID
	TokResult
	TokType
	TokService
	TokCmd
	TokArgs
	TokRArgs
	TokMessage
	TokTLSVersion
	TokTLSCipher
	TokTLSSNI
	TokTLSPeerCertIssuer
	TokTLSPeerCertSubject
	TokTLSPeerCertCN
	TokTLSPSKIdentity
	// UI-message fields, resolved against the connection's device message
	// table (spec §4.D "UI-message fields").
	TokUIPassword
	TokUIChangePassword
	TokUIAccountExpires
	TokUIAuthFailBanner
	// umessage is the raw free-text user message (session.user_msg);
	// along with AUTHFAIL_BANNER it bypasses sanitization (spec §4.D).
	TokUMessage

	numTokens
)

// defaultSeparator is the separator implied when a template omits one;
// only cmd/args/rargs have a non-empty default (spec §4.C: "cmd, args,
// rargs default to a single-space separator when none is given").
func defaultSeparator(t Token) string {
	switch t {
	case TokCmd, TokArgs, TokRArgs:
		return " "
	default:
		return ""
	}
}

// rawToken reports whether a token's extracted value bypasses the
// sanitizer entirely (spec §4.D: "unless ... the source is umessage /
// AUTHFAIL_BANNER").
func rawToken(t Token) bool {
	return t == TokUMessage || t == TokUIAuthFailBanner
}

var tokenNames = map[string]Token{
	"user":                TokUser,
	"nas":                 TokNAS,
	"client":              TokClientAddr,
	"server":              TokServerAddr,
	"realm":               TokRealm,
	"host":                TokHost,
	"session_id":          TokSessionID,
	"msgid":               TokMsgID,
	"result":              TokResult,
	"type":                TokType,
	"service":             TokService,
	"cmd":                 TokCmd,
	"args":                TokArgs,
	"rargs":               TokRArgs,
	"message":             TokMessage,
	"tls_version":         TokTLSVersion,
	"tls_cipher":          TokTLSCipher,
	"tls_sni":             TokTLSSNI,
	"tls_peer_issuer":     TokTLSPeerCertIssuer,
	"tls_peer_subject":    TokTLSPeerCertSubject,
	"tls_peer_cn":         TokTLSPeerCertCN,
	"tls_psk_identity":    TokTLSPSKIdentity,
	"PASSWORD":            TokUIPassword,
	"CHANGE_PASSWORD":     TokUIChangePassword,
	"ACCOUNT_EXPIRES":     TokUIAccountExpires,
	"AUTHFAIL_BANNER":     TokUIAuthFailBanner,
	"umessage":            TokUMessage,
}

// lookupToken resolves a ${name} to its Token, or ok=false if name is
// outside the closed whitelist (spec §4.C: "an unknown ${name} is a hard
// parse error").
func lookupToken(name string) (Token, bool) {
	t, ok := tokenNames[name]
	return t, ok
}
