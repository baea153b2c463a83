/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package oplog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	pth := filepath.Join(t.TempDir(), "tacd.log")
	fout, err := os.Create(pth)
	if err != nil {
		t.Fatal(err)
	}
	return New(fout), pth
}

func TestLevelFiltering(t *testing.T) {
	lgr, pth := newTestLogger(t)
	if err := lgr.SetLevel(WARN); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Infof("realm load started"); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Warnf("realm %q has no destinations", "default"); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Close(); err != nil {
		t.Fatal(err)
	}

	bts, err := os.ReadFile(pth)
	if err != nil {
		t.Fatal(err)
	}
	s := string(bts)
	if strings.Contains(s, "realm load started") {
		t.Fatalf("INFO record logged below the WARN floor: %q", s)
	}
	if !strings.Contains(s, `realm "default" has no destinations`) {
		t.Fatalf("missing WARN record: %q", s)
	}
}

func TestStructuredFields(t *testing.T) {
	lgr, pth := newTestLogger(t)
	if err := lgr.Error("mavis backend failure", KV("realm", "default"), KVErr(os.ErrClosed)); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Close(); err != nil {
		t.Fatal(err)
	}

	bts, err := os.ReadFile(pth)
	if err != nil {
		t.Fatal(err)
	}
	s := string(bts)
	if !strings.Contains(s, `realm="default"`) {
		t.Fatalf("missing realm field: %q", s)
	}
	if !strings.Contains(s, "mavis backend failure") {
		t.Fatalf("missing message: %q", s)
	}
}

func TestKVLoggerBindsContext(t *testing.T) {
	lgr, pth := newTestLogger(t)
	kvl := NewLoggerWithKV(lgr, KV("component", "mavis"))
	if err := kvl.Error("profile parse failed", KV("user", "frank")); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Close(); err != nil {
		t.Fatal(err)
	}

	bts, err := os.ReadFile(pth)
	if err != nil {
		t.Fatal(err)
	}
	s := string(bts)
	if !strings.Contains(s, `component="mavis"`) {
		t.Fatalf("missing bound component field: %q", s)
	}
	if !strings.Contains(s, `user="frank"`) {
		t.Fatalf("missing call-specific field: %q", s)
	}
}

func TestSetLevelStringRejectsGarbage(t *testing.T) {
	lgr, _ := newTestLogger(t)
	defer lgr.Close()
	if err := lgr.SetLevelString("bogus"); err != ErrInvalidLevel {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
	if err := lgr.SetLevelString("warn"); err != nil {
		t.Fatalf("lowercase level string should be accepted: %v", err)
	}
	if lgr.GetLevel() != WARN {
		t.Fatalf("level not applied, got %v", lgr.GetLevel())
	}
}

func TestTrimLength(t *testing.T) {
	if got := trimLength(10, "twelve bytes"); got != "twelve byt" {
		t.Fatalf("trimLength: %q", got)
	}
	if got := trimLength(10, "short"); got != "short" {
		t.Fatalf("trimLength should not pad: %q", got)
	}
}

func TestFileBackedLogger(t *testing.T) {
	pth := filepath.Join(t.TempDir(), "op.log")
	lgr, err := NewStderrLogger(pth)
	if err != nil {
		t.Fatal(err)
	}
	lgr.SetAppname("tacd")
	if err := lgr.Infof("configuration loaded"); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Close(); err != nil {
		t.Fatal(err)
	}
	bts, err := os.ReadFile(pth)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bts), "configuration loaded") {
		t.Fatalf("file-backed logger missing record: %q", string(bts))
	}
}
