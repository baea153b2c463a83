/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package aclmatch is the reference evaluator for mavis_user_acl (spec
// §4.G gate 3: "If a mavis_user_acl exists, evaluate it against the
// session; unless it returns permit, log the bogus-username event..."). The
// general ACL evaluator is explicitly out of scope (spec §1); this is the
// one ACL surface the MAVIS orchestrator actually calls into, implemented
// as a glob allow/deny list over usernames.
package aclmatch

import "github.com/gobwas/glob"

// Verdict is the result of evaluating an ACL against a username.
type Verdict int

const (
	Deny Verdict = iota
	Permit
)

// Rule is one entry in an ACL: a glob pattern and the verdict it carries
// when the pattern matches.
type Rule struct {
	Pattern string
	Verdict Verdict

	compiled glob.Glob
}

// ACL is an ordered list of rules; the first matching rule wins, and a
// username matching nothing is denied (fail-closed, matching
// "unless it returns permit" in spec §4.G).
type ACL struct {
	rules []Rule
}

// Compile builds an ACL from rules, compiling each glob pattern up front so
// evaluation never returns a parse error.
func Compile(rules []Rule) (*ACL, error) {
	a := &ACL{rules: make([]Rule, len(rules))}
	for i, r := range rules {
		g, err := glob.Compile(r.Pattern)
		if err != nil {
			return nil, err
		}
		r.compiled = g
		a.rules[i] = r
	}
	return a, nil
}

// Eval returns the verdict for username: the verdict of the first matching
// rule, or Deny if nothing matches.
func (a *ACL) Eval(username string) Verdict {
	if a == nil {
		return Deny
	}
	for _, r := range a.rules {
		if r.compiled.Match(username) {
			return r.Verdict
		}
	}
	return Deny
}
