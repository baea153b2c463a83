/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package mavis

import (
	"fmt"
	"strings"
	"time"

	"github.com/tacplusng/tacd/internal/avc"
	"github.com/tacplusng/tacd/internal/realm"
	"github.com/tacplusng/tacd/internal/session"
)

// verdictTrue is the MAVIS wire token for a boolean-true VERDICT attribute.
const verdictTrue = "true"

// profileErrFmt is the fixed operator-facing diagnostic emitted when dynamic
// profile parsing fails, reproducing mavis_lookup_final's errfmt template
// byte-for-byte (host, user, ctime-style date).
const profileErrFmt = "\n" +
	"An error occured while parsing your user profile. Please ask your TACACS+\n" +
	"administrator to have a look at the TACACS+ logs and provide the following\n" +
	"information:\n" +
	"\n" +
	"        Host: %s\n" +
	"        User: %s\n" +
	"        Date: %s\n"

// profileErrBufSize bounds the rendered diagnostic (errbuf_size 1024 in the
// original); like snprintf's return-length check, a diagnostic that would
// overflow the buffer is dropped rather than truncated mid-word.
const profileErrBufSize = 1024

// classAttr maps a ProfileClass to the attribute bundle slot it is parsed
// from (spec §4.H step 2's five attribute classes).
var classAttr = map[ProfileClass]avc.Attr{
	ClassTACMEMBER:  avc.TACMEMBER,
	ClassSSHKEY:     avc.SSHKEY,
	ClassSSHKEYHASH: avc.SSHKEYHASH,
	ClassSSHKEYID:   avc.SSHKEYID,
	ClassTACPROFILE: avc.TACPROFILE,
}

// classTemplate is the per-class format template each value is wrapped in
// before being handed to the profile parser (spec §4.H step 2):
//
//	TACMEMBER  -> "{ member = %.*s }"   (newline-separated multi-value)
//	SSHKEY     -> "{ ssh-key = %.*s }"
//	SSHKEYHASH -> "{ ssh-key-hash = %.*s }"
//	SSHKEYID   -> "{ ssh-key-id = %.*s }"
//	TACPROFILE -> "%.*s"                (raw profile fragment, not split)
var classTemplate = map[ProfileClass]string{
	ClassTACMEMBER:  "{ member = %s }",
	ClassSSHKEY:     "{ ssh-key = %s }",
	ClassSSHKEYHASH: "{ ssh-key-hash = %s }",
	ClassSSHKEYID:   "{ ssh-key-id = %s }",
	ClassTACPROFILE: "%s",
}

// multiValue reports whether class's attribute value is newline-separated
// into independent lines (every class but TACPROFILE, which is one raw
// fragment).
func multiValue(class ProfileClass) bool {
	return class != ClassTACPROFILE
}

// parseProfile runs each of the five attribute classes present in resp
// through o.Parser, in enumeration order. The first parser error aborts the
// whole materialization (spec §4.H step 2 "Any parser error aborts
// materialization").
func (o *Orchestrator) parseProfile(u *realm.User, resp *avc.Bundle) error {
	classes := []ProfileClass{ClassTACMEMBER, ClassSSHKEY, ClassSSHKEYHASH, ClassSSHKEYID, ClassTACPROFILE}

	for _, class := range classes {
		value, ok := resp.Get(classAttr[class])
		if !ok || value == "" {
			continue
		}

		lines := []string{value}
		if multiValue(class) {
			lines = strings.Split(value, "\n")
		}

		tmpl := classTemplate[class]
		for _, line := range lines {
			if line == "" {
				continue
			}
			formatted := fmt.Sprintf(tmpl, line)
			if o.Parser == nil {
				continue // no profile-parser capability wired; treated as a no-op, not an error
			}
			if err := o.Parser.Parse(u, class, formatted); err != nil {
				return fmt.Errorf("class %d: %w", class, err)
			}
		}
	}

	return nil
}

// materialize implements spec §4.H step 2's dynamic-profile materialization.
// It returns (nil, false) when a parser error aborts materialization, with
// sess.MavisAuthRes and sess.UserMsg already populated.
func (o *Orchestrator) materialize(sess *session.Session, r *realm.Realm, resp *avc.Bundle, existing *realm.User, now time.Time) (*realm.User, bool) {
	if verdict, ok := resp.Get(avc.VERDICT); ok && verdict == verdictTrue && !r.CachingEnabled() {
		sess.Authorized = true
	}

	if existing != nil && sess.UserIsSessionSpecific && !r.CachingEnabled() {
		sess.User = nil
	}

	r.Remove(sess.Username) // evict a stale (possibly expired) entry first
	u := &realm.User{Name: sess.Username, Realm: r}
	u.Dynamic = now.Unix() + r.CachingPeriod

	if err := o.parseProfile(u, resp); err != nil {
		sess.MavisAuthRes = session.MavisError
		if msg, ok := formatProfileErr(localHostname(), sess.Username, now); ok {
			sess.SetUserMsg(msg)
		}
		o.logf("mavis: parsing dynamic profile failed for user %q: %v", sess.Username, err)
		return nil, false
	}

	if sess.MavisData != nil && sess.MavisData.RequestType != ReqINFO {
		o.checkPasswordTypeConflict(sess, r, u, resp)
	}

	if r.CachingEnabled() {
		r.Insert(u)
	}

	return u, true
}

// formatProfileErr renders profileErrFmt for host/user at now, mirroring
// ctime(3)'s day-month-date-time-year layout and trailing newline. ok is
// false when the rendered message would not have fit in errbuf_size, in
// which case the caller leaves the session without a user-facing message.
func formatProfileErr(host, user string, now time.Time) (msg string, ok bool) {
	date := now.Format(time.ANSIC) + "\n"
	msg = fmt.Sprintf(profileErrFmt, host, user, date)
	return msg, len(msg) < profileErrBufSize
}

// checkPasswordTypeConflict implements spec §4.H step 2's final bullet: a
// non-mavis password type at the requested slot is a hard authentication
// failure, with operator-facing remediation guidance logged.
func (o *Orchestrator) checkPasswordTypeConflict(sess *session.Session, r *realm.Realm, u *realm.User, resp *avc.Bundle) {
	idx := sess.MavisData.PwIx
	slot := u.Passwd[idx]
	if slot.Value == "" {
		return
	}

	effective := slot.Type
	if idx == realm.PwPAP && slot.Type == realm.PwTypeLogin {
		effective = u.Passwd[realm.PwLogin].Type
	}
	if effective == realm.PwTypeMavis {
		return
	}

	sess.MavisAuthRes = session.MavisFail
	resp.Set(avc.RESULT, "FAIL")
	o.logf("mavis: realm %q: set backend = mavis (or password <type> = mavis in the user's profile) to accept backend-derived credentials", r.Name)
	o.logf("mavis: user %q password slot %d is declared type %q, not mavis", sess.Username, idx, effective)
}
