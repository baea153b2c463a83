/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logdest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseKindFile(t *testing.T) {
	k, spec, err := ParseKind("/var/log/tacd.log")
	require.NoError(t, err)
	require.Equal(t, KindFile, k)
	require.Equal(t, "/var/log/tacd.log", spec)
}

func TestParseKindSyncFile(t *testing.T) {
	k, spec, err := ParseKind(">/var/log/tacd-sync.log")
	require.NoError(t, err)
	require.Equal(t, KindSyncFile, k)
	require.Equal(t, "/var/log/tacd-sync.log", spec)
}

func TestParseKindPipe(t *testing.T) {
	k, spec, err := ParseKind("|/usr/bin/logger -t tacd")
	require.NoError(t, err)
	require.Equal(t, KindPipe, k)
	require.Equal(t, "/usr/bin/logger -t tacd", spec)
}

func TestParseKindLocalSyslog(t *testing.T) {
	k, _, err := ParseKind("syslog")
	require.NoError(t, err)
	require.Equal(t, KindLocalSyslog, k)
}

func TestParseKindRemoteSyslog(t *testing.T) {
	k, _, err := ParseKind("192.0.2.1:514")
	require.NoError(t, err)
	require.Equal(t, KindRemoteSyslog, k)
}

func TestParseKindInvalid(t *testing.T) {
	_, _, err := ParseKind("")
	require.Error(t, err)
}

func TestFileDestinationWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	d, err := New("t1", path)
	require.NoError(t, err)
	require.Equal(t, KindFile, d.Kind)
	require.True(t, d.StaticPath)

	require.NoError(t, d.Write("hello\n", time.Now()))
	require.NoError(t, d.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))
}

func TestFileDestinationRotationOnPathChange(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "%Y%m%d.log")

	d, err := New("t2", template)
	require.NoError(t, err)
	require.False(t, d.StaticPath)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, d.Write("day1\n", t1))
	require.NoError(t, d.Write("day2\n", t2))
	require.NoError(t, d.Close())

	p1 := filepath.Join(dir, "20240101.log")
	p2 := filepath.Join(dir, "20240102.log")

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	require.Equal(t, "day1\n", string(b1))

	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	require.Equal(t, "day2\n", string(b2))
}

func TestWriteAsyncOverflowDrops(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overflow.log")
	d, err := New("t3", path)
	require.NoError(t, err)

	huge := make([]byte, bufferLimit+1)
	err = d.writeAsync(huge, time.Now())
	require.ErrorIs(t, err, ErrOverflow)
}

func TestPipeRespawnRateLimit(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "piped.log")

	d, err := New("t4", "|cat >> \""+out+"\"")
	require.NoError(t, err)
	require.Equal(t, KindPipe, d.Kind)

	t0 := time.Now()
	require.NoError(t, d.Write("first\n", t0))

	// Simulate the child dying.
	d.mu.Lock()
	if d.ctx.cmd != nil {
		_ = d.ctx.cmd.close()
	}
	d.ctx.cmd = nil
	d.mu.Unlock()

	// 2 seconds later: must NOT respawn, write stays buffered.
	t1 := t0.Add(2 * time.Second)
	require.NoError(t, d.writeAsync([]byte("buffered\n"), t1))
	d.mu.Lock()
	noRespawnYet := d.ctx.cmd == nil
	d.mu.Unlock()
	require.True(t, noRespawnYet)

	// 5+ seconds later: respawns and flushes.
	t2 := t0.Add(6 * time.Second)
	require.NoError(t, d.writeAsync([]byte("flushed\n"), t2))
	d.mu.Lock()
	respawned := d.ctx.cmd != nil
	d.mu.Unlock()
	require.True(t, respawned)

	require.NoError(t, d.Close())
}
