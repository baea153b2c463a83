/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logdest

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/crewjam/rfc5424"
)

// localSyslogSockets are tried in order for the local-syslog destination
// kind (spec §4.E "syslog keyword -> local syslog via openlog/syslog").
var localSyslogSockets = []string{"/dev/log", "/var/run/syslog", "/var/run/log"}

// dialLocalSyslog connects to the host's local syslog datagram socket.
func dialLocalSyslog() (net.Conn, error) {
	var lastErr error
	for _, p := range localSyslogSockets {
		if _, err := os.Stat(p); err != nil {
			lastErr = err
			continue
		}
		conn, err := net.Dial("unixgram", p)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("logdest: no local syslog socket found")
	}
	return nil, lastErr
}

// dialRemoteSyslog connects to a UDP or Unix-domain syslog target (spec
// §4.E "Else if parseable as an IPv4/IPv6/Unix address -> UDP (or
// SOCK_DGRAM on Unix) syslog to that destination; a source socket is
// created and (for Unix) connected once").
func dialRemoteSyslog(addr string) (net.Conn, error) {
	if strings.HasPrefix(addr, "/") {
		return net.Dial("unixgram", addr)
	}
	return net.Dial("udp", addr)
}

// ensureOpenSyslog opens (once) the syslog connection for a syslog-kind
// destination.
func (d *Destination) ensureOpenSyslog() error {
	if d.ctx != nil && d.ctx.conn != nil {
		return nil
	}
	var conn net.Conn
	var err error
	if d.Kind == KindLocalSyslog {
		conn, err = dialLocalSyslog()
	} else {
		conn, err = dialRemoteSyslog(d.Spec)
	}
	if err != nil {
		return err
	}
	if d.ctx == nil {
		d.ctx = &runtimeContext{}
	}
	d.ctx.conn = conn
	return nil
}

// encodeSyslog wraps message as an RFC5424 structured syslog record (spec
// §4.E "remote-UDP syslog uses the RFC-3164-ish form"; tacd upgrades the
// wire form to RFC5424 since the encoder is already in hand via oplog —
// see SPEC_FULL.md domain stack).
func (d *Destination) encodeSyslog(message string, now time.Time) ([]byte, error) {
	msg := rfc5424.Message{
		Priority:  severityFromName(d.SyslogPriority),
		Timestamp: now,
		Hostname:  hostnameOrDash(),
		AppName:   d.SyslogIdent,
		Message:   []byte(message),
	}
	return msg.MarshalBinary()
}

func hostnameOrDash() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "-"
}

// severityFromName maps a configured severity name to an rfc5424.Priority
// under the User facility, matching the facility the teacher's own
// Logger.priority() uses for its own severities (spec §4.E "syslog {
// facility = <f>; severity = <l> }"; facility selection beyond User is a
// configuration detail outside this core's scope, see SPEC_FULL.md).
func severityFromName(name string) rfc5424.Priority {
	switch name {
	case "debug":
		return rfc5424.User | rfc5424.Debug
	case "warning", "warn":
		return rfc5424.User | rfc5424.Warning
	case "error", "err":
		return rfc5424.User | rfc5424.Error
	case "crit", "critical":
		return rfc5424.User | rfc5424.Crit
	case "emergency":
		return rfc5424.User | rfc5424.Emergency
	default:
		return rfc5424.User | rfc5424.Info
	}
}

// writeSyslogLocked sends one record; syslog destinations are never
// buffered (spec §4.E "Syslog: flush one record at a time via syslog(3) or
// a single send/sendto").
func (d *Destination) writeSyslogLocked(message string, now time.Time) error {
	if err := d.ensureOpenSyslog(); err != nil {
		return err
	}
	encoded, err := d.encodeSyslog(message, now)
	if err != nil {
		return err
	}
	if _, err := d.ctx.conn.Write(encoded); err != nil {
		_ = d.ctx.conn.Close()
		d.ctx.conn = nil
		return err
	}
	return nil
}
