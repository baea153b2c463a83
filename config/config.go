/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

// File is the on-disk shape of a tacd configuration file: one [daemon]
// section plus any number of named [realm "name"] and [logdest "name"]
// subsections (spec.md §6 "Log destination syntax", generalized to realms
// the same way). Field naming follows the teacher's gcfg convention
// (Ingest_Secret -> "Ingest-Secret" etc, see ingest/config/config.go).
type File struct {
	Daemon  DaemonSection
	Realm   map[string]*RealmSection
	Logdest map[string]*LogdestSection
}

// DaemonSection holds process-wide ambient settings: operational log level
// and destination (spec.md's own operational diagnostics, distinct from
// the domain log-destination pipeline it configures below).
type DaemonSection struct {
	Log_Level string
	Log_File  string // empty means stderr
}

// RealmSection is one [realm "name"] block (spec.md §3 "Realm (R)").
type RealmSection struct {
	Parent string // name of the parent realm, or empty for a root

	Mavis_Userdb      string // "yes" | "no" | "" (unset, spec.md's tri-state)
	Mavis_Noauthcache string
	Caching_Period    int64

	// Mavis_User_Acl entries are "permit <glob>" or "deny <glob>", evaluated
	// in order (spec.md §4.G gate 3).
	Mavis_User_Acl []string

	// Each entry names a [logdest "name"] section registered under this
	// realm for that event class (spec.md §3 "four per-event-class
	// destination sets").
	Access_Log []string
	Author_Log []string
	Acct_Log   []string
	Conn_Log   []string
}

// LogdestSection is one [logdest "name"] block (spec.md §6 "Log destination
// syntax").
type LogdestSection struct {
	Destination string // dest-spec: leading /, >, |, "syslog", or an address

	Syslog_Severity string
	Syslog_Ident    string

	Access_Format        string
	Authorization_Format string
	Accounting_Format    string
	Connection_Format    string
}
