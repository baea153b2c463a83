/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"fmt"
	"strings"

	"github.com/tacplusng/tacd/internal/aclmatch"
	"github.com/tacplusng/tacd/internal/logdest"
	"github.com/tacplusng/tacd/internal/logfmt"
	"github.com/tacplusng/tacd/internal/realm"
)

// Tree is the resolved configuration: every named realm and every named log
// destination, ready to hand to internal/mavis, internal/logrouter, and the
// connection acceptor.
type Tree struct {
	Realms       map[string]*realm.Realm
	Destinations map[string]*logdest.Destination
}

// Build resolves f into a Tree: compiles every log destination's formats,
// links the realm tree by Parent name, and binds each realm's four
// per-event-class destination sets (spec.md §3, §4.E, §4.G gate 3).
func Build(f *File) (*Tree, error) {
	dests, err := buildDestinations(f.Logdest)
	if err != nil {
		return nil, err
	}

	realms, err := buildRealmTree(f.Realm)
	if err != nil {
		return nil, err
	}

	for name, sec := range f.Realm {
		r := realms[name]
		if err := applyRealmSettings(r, sec, dests); err != nil {
			return nil, fmt.Errorf("realm %q: %w", name, err)
		}
	}

	return &Tree{Realms: realms, Destinations: dests}, nil
}

func buildDestinations(secs map[string]*LogdestSection) (map[string]*logdest.Destination, error) {
	dests := make(map[string]*logdest.Destination, len(secs))
	for name, sec := range secs {
		d, err := logdest.New(name, sec.Destination)
		if err != nil {
			return nil, fmt.Errorf("logdest %q: %w", name, err)
		}
		d.SyslogPriority = sec.Syslog_Severity
		d.SyslogIdent = sec.Syslog_Ident

		if sec.Access_Format != "" {
			if d.FormatAccess, err = logfmt.Compile(sec.Access_Format); err != nil {
				return nil, fmt.Errorf("logdest %q: access format: %w", name, err)
			}
		}
		if sec.Authorization_Format != "" {
			if d.FormatAuthor, err = logfmt.Compile(sec.Authorization_Format); err != nil {
				return nil, fmt.Errorf("logdest %q: authorization format: %w", name, err)
			}
		}
		if sec.Accounting_Format != "" {
			if d.FormatAcct, err = logfmt.Compile(sec.Accounting_Format); err != nil {
				return nil, fmt.Errorf("logdest %q: accounting format: %w", name, err)
			}
		}
		if sec.Connection_Format != "" {
			if d.FormatConn, err = logfmt.Compile(sec.Connection_Format); err != nil {
				return nil, fmt.Errorf("logdest %q: connection format: %w", name, err)
			}
		}
		dests[name] = d
	}
	return dests, nil
}

// buildRealmTree allocates every named realm and links Parent references,
// resolving in dependency order so a child never links before its parent
// exists. A Parent naming an unknown or cyclic ancestor is an error.
func buildRealmTree(secs map[string]*RealmSection) (map[string]*realm.Realm, error) {
	realms := make(map[string]*realm.Realm, len(secs))
	for name := range secs {
		realms[name] = realm.NewRealm(name, nil)
	}

	linked := make(map[string]bool, len(secs))
	for progress := true; progress && len(linked) < len(secs); {
		progress = false
		for name, sec := range secs {
			if linked[name] {
				continue
			}
			if sec.Parent == "" {
				linked[name] = true
				progress = true
				continue
			}
			parent, ok := realms[sec.Parent]
			if !ok {
				return nil, fmt.Errorf("realm %q: unknown parent %q", name, sec.Parent)
			}
			if !linked[sec.Parent] {
				continue // parent not linked yet; retry next pass
			}
			realms[name].Parent = parent
			linked[name] = true
			progress = true
		}
	}
	if len(linked) < len(secs) {
		return nil, fmt.Errorf("config: cyclic realm parent chain among %d unresolved realm(s)", len(secs)-len(linked))
	}
	return realms, nil
}

func parseTri(s string) realm.Tri {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		return realm.TriTrue
	case "no", "false", "0":
		return realm.TriFalse
	default:
		return realm.TriUnset
	}
}

func applyRealmSettings(r *realm.Realm, sec *RealmSection, dests map[string]*logdest.Destination) error {
	r.MavisUserdb = parseTri(sec.Mavis_Userdb)
	r.MavisNoauthCache = parseTri(sec.Mavis_Noauthcache)
	r.CachingPeriod = sec.Caching_Period
	r.MavisUserACL = strings.Join(sec.Mavis_User_Acl, "; ")

	if len(sec.Mavis_User_Acl) > 0 {
		rules, err := parseACLRules(sec.Mavis_User_Acl)
		if err != nil {
			return err
		}
		acl, err := aclmatch.Compile(rules)
		if err != nil {
			return fmt.Errorf("mavis-user-acl: %w", err)
		}
		r.ACL = acl
	}

	if err := bindDestinations(r, sec.Access_Log, logdest.ClassAccess, dests); err != nil {
		return err
	}
	if err := bindDestinations(r, sec.Author_Log, logdest.ClassAuthor, dests); err != nil {
		return err
	}
	if err := bindDestinations(r, sec.Acct_Log, logdest.ClassAcct, dests); err != nil {
		return err
	}
	if err := bindDestinations(r, sec.Conn_Log, logdest.ClassConn, dests); err != nil {
		return err
	}
	return nil
}

func bindDestinations(r *realm.Realm, names []string, class logdest.EventClass, dests map[string]*logdest.Destination) error {
	for _, name := range names {
		d, ok := dests[name]
		if !ok {
			return fmt.Errorf("log destination %q not defined", name)
		}
		r.AddDestination(class, d)
	}
	return nil
}

// parseACLRules parses "permit <glob>" / "deny <glob>" lines into aclmatch
// rules, in the order given (first match wins, spec.md §4.G gate 3).
func parseACLRules(lines []string) ([]aclmatch.Rule, error) {
	rules := make([]aclmatch.Rule, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("mavis-user-acl entry %q: expected \"permit <glob>\" or \"deny <glob>\"", line)
		}
		var verdict aclmatch.Verdict
		switch strings.ToLower(fields[0]) {
		case "permit":
			verdict = aclmatch.Permit
		case "deny":
			verdict = aclmatch.Deny
		default:
			return nil, fmt.Errorf("mavis-user-acl entry %q: verdict must be permit or deny", line)
		}
		rules = append(rules, aclmatch.Rule{Pattern: fields[1], Verdict: verdict})
	}
	return rules, nil
}
