/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package oplog is tacd's operational logger: RFC5424 structured output
// (host, appname, severity, structured-data key/value pairs) to stderr or a
// rotated file, used for daemon startup/shutdown, configuration-load, and
// MAVIS/realm diagnostic events. It is distinct from internal/logdest,
// which delivers TACACS+ accounting/authorization records to operator-
// configured destinations.
package oplog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"

	"github.com/tacplusng/tacd/oplog/rotate"
)

type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
	FATAL
)

func (l Level) String() string {
	switch l {
	case OFF:
		return "OFF"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	case FATAL:
		return "FATAL"
	}
	return "UNKNOWN"
}

func (l Level) valid() bool {
	return l >= OFF && l <= FATAL
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL:
		return rfc5424.User | rfc5424.Crit
	case FATAL:
		return rfc5424.User | rfc5424.Emergency
	}
	return rfc5424.User | rfc5424.Debug
}

func LevelFromString(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "OFF":
		return OFF, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "CRITICAL":
		return CRITICAL, nil
	case "FATAL":
		return FATAL, nil
	}
	return OFF, ErrInvalidLevel
}

const (
	// callDepth is the runtime.Caller skip count from callLoc, through
	// outputStructured, back to whichever exported Logger method the daemon
	// called directly. Every exported method calls outputStructured itself
	// (no intermediate helper), so this depth is the same for every one of
	// them.
	callDepth = 3

	sdID = "tacd@1"

	maxAppname  = 48
	maxHostname = 255
)

var (
	ErrNotOpen      = errors.New("logger is not open")
	ErrInvalidLevel = errors.New("log level is invalid")
)

// Logger is a single-writer RFC5424 logger with an optional ERROR+ mirror
// (used when the primary writer is a rotated file rather than the console).
type Logger struct {
	mu       sync.Mutex
	wtr      io.WriteCloser
	mirror   io.Writer
	hostname string
	appname  string
	lvl      Level
	open     bool
}

// New creates a logger writing to wtr at level INFO.
func New(wtr io.WriteCloser) *Logger {
	hostname, _ := os.Hostname()
	if len(hostname) > maxHostname {
		hostname = hostname[:maxHostname]
	}
	return &Logger{
		wtr:      wtr,
		hostname: hostname,
		lvl:      INFO,
		open:     true,
	}
}

// NewStderrLogger opens the operational logger. With no file override,
// output goes straight to stderr; with one, output is written to a rotated
// file (oplog/rotate) and ERROR-and-above records are additionally mirrored
// to stderr so an operator watching the console still sees trouble.
func NewStderrLogger(fileOverride string) (*Logger, error) {
	if fileOverride == "" {
		return New(os.Stderr), nil
	}
	fr, err := rotate.Open(fileOverride, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening operational log %q: %w", fileOverride, err)
	}
	lg := New(fr)
	lg.mirror = os.Stderr
	return lg, nil
}

func (l *Logger) ready() error {
	if !l.open {
		return ErrNotOpen
	}
	return nil
}

// SetHostname overrides the RFC5424 HOSTNAME field (default: os.Hostname()).
func (l *Logger) SetHostname(hostname string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(hostname) > maxHostname {
		hostname = hostname[:maxHostname]
	}
	l.hostname = hostname
}

// SetAppname sets the RFC5424 APP-NAME field.
func (l *Logger) SetAppname(appname string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(appname) > maxAppname {
		appname = appname[:maxAppname]
	}
	l.appname = appname
}

// SetLevelString sets the minimum logged level from a config-file string.
func (l *Logger) SetLevelString(s string) error {
	lvl, err := LevelFromString(s)
	if err != nil {
		return err
	}
	return l.SetLevel(lvl)
}

func (l *Logger) SetLevel(lvl Level) error {
	if !lvl.valid() {
		return ErrInvalidLevel
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lvl = lvl
	return nil
}

func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lvl
}

// Close closes the underlying writer; the mirror, if any, is left open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	l.open = false
	return l.wtr.Close()
}

// Format-string methods, for operator messages that don't carry structured
// fields (startup/shutdown banners, config-reload diagnostics).

func (l *Logger) Debugf(f string, args ...any) error {
	return l.outputStructured(DEBUG, fmt.Sprintf(f, args...))
}
func (l *Logger) Infof(f string, args ...any) error {
	return l.outputStructured(INFO, fmt.Sprintf(f, args...))
}
func (l *Logger) Warnf(f string, args ...any) error {
	return l.outputStructured(WARN, fmt.Sprintf(f, args...))
}
func (l *Logger) Errorf(f string, args ...any) error {
	return l.outputStructured(ERROR, fmt.Sprintf(f, args...))
}

// Fatalf logs at FATAL, closes the logger, and exits the process.
func (l *Logger) Fatalf(f string, args ...any) {
	l.outputStructured(FATAL, fmt.Sprintf(f, args...))
	l.Close()
	os.Exit(1)
}

// Structured methods, for events that carry operator-searchable key/value
// context (realm name, destination name, session id — see KV/KVErr).

func (l *Logger) Debug(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(DEBUG, msg, sds...)
}
func (l *Logger) Info(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(INFO, msg, sds...)
}
func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(WARN, msg, sds...)
}
func (l *Logger) Error(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(ERROR, msg, sds...)
}
func (l *Logger) Critical(msg string, sds ...rfc5424.SDParam) error {
	return l.outputStructured(CRITICAL, msg, sds...)
}

// Fatal logs at FATAL with structured fields, closes the logger, and exits.
func (l *Logger) Fatal(msg string, sds ...rfc5424.SDParam) {
	l.outputStructured(FATAL, msg, sds...)
	l.Close()
	os.Exit(1)
}

func (l *Logger) outputStructured(lvl Level, msg string, sds ...rfc5424.SDParam) error {
	l.mu.Lock()
	skipRecord := l.lvl == OFF || lvl < l.lvl
	hostname, appname := l.hostname, l.appname
	l.mu.Unlock()
	if skipRecord {
		return nil
	}
	b, err := GenRFCMessage(time.Now(), lvl.priority(), hostname, appname, callLoc(), msg, sds...)
	if err != nil || len(b) == 0 {
		return err
	}
	return l.write(lvl, b)
}

// Write implements io.Writer by passing b straight through to the
// underlying writer, unwrapped by RFC5424 framing. Used for pre-formatted
// banner text (PrintOSInfo) that isn't a discrete severity-leveled record.
func (l *Logger) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ready(); err != nil {
		return 0, err
	}
	return l.wtr.Write(b)
}

func (l *Logger) write(lvl Level, b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	line := append(b, '\n')
	_, err := l.wtr.Write(line)
	if lvl >= ERROR && l.mirror != nil {
		_, _ = l.mirror.Write(line)
	}
	return err
}

// GenRFCMessage builds one RFC5424 record, truncating HOSTNAME/APP-NAME/
// MSGID to the wire format's documented maximum lengths.
func GenRFCMessage(ts time.Time, prio rfc5424.Priority, hostname, appname, msgid, msg string, sds ...rfc5424.SDParam) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: ts,
		Hostname:  trimLength(maxHostname, hostname),
		AppName:   trimLength(maxAppname, appname),
		MessageID: trimLength(32, msgid),
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{ID: sdID, Parameters: sds}}
	}
	return m.MarshalBinary()
}

// callLoc returns "file.go:line" for the caller of the exported logging
// method the daemon invoked, used as the RFC5424 MSGID field.
func callLoc() string {
	_, file, line, ok := runtime.Caller(callDepth)
	if !ok {
		return ""
	}
	dir, base := filepath.Split(file)
	return fmt.Sprintf("%s:%d", filepath.Join(filepath.Base(dir), base), line)
}

func trimLength(n int, s string) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
