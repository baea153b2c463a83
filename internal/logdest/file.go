/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logdest

import (
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// ensureOpenFile opens (or re-opens, on path change) the backing file for
// a file/sync-file destination. Rotation happens when the expanded path
// differs from the currently-open path (spec §4.E "a rotation occurs when
// the expanded path changes (old ctx drained then closed; new ctx
// opened)"); draining is the caller's responsibility before calling this
// with a new path.
func (d *Destination) ensureOpenFile(now time.Time) error {
	path := d.Spec
	if !d.StaticPath {
		path = expandPath(d.Spec, now)
	}

	if d.ctx != nil && d.ctx.file != nil && d.ctx.path == path {
		return nil // already open on the correct path
	}

	if d.ctx != nil && d.ctx.file != nil {
		d.closeFileLocked()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return err
	}
	if d.ctx == nil {
		d.ctx = &runtimeContext{}
	}
	d.ctx.file = f
	d.ctx.lock = flock.New(path)
	d.ctx.path = path
	return nil
}

// closeFileLocked releases the file lock and closes the fd. Caller holds
// d.mu.
func (d *Destination) closeFileLocked() {
	if d.ctx == nil {
		return
	}
	if d.ctx.lock != nil {
		_ = d.ctx.lock.Unlock()
	}
	if d.ctx.file != nil {
		_ = d.ctx.file.Close()
	}
	d.ctx.file = nil
	d.ctx.lock = nil
}

// writeFileLocked acquires the advisory write-lock, writes buf at EOF, and
// releases the lock (spec §3 invariant: "the backing fd is held with an
// advisory write-lock across each write() call and released before
// yielding"; grounds tac_lockfd/tac_unlockfd). A hard error closes the fd,
// left closed until the next rotation cycle (spec §7, §4.E).
func (d *Destination) writeFileLocked(buf []byte) error {
	if d.ctx == nil || d.ctx.file == nil {
		return os.ErrClosed
	}
	if d.ctx.lock != nil {
		if err := d.ctx.lock.Lock(); err != nil {
			return err
		}
		defer d.ctx.lock.Unlock()
	}
	if _, err := d.ctx.file.Seek(0, io.SeekEnd); err != nil {
		d.closeFileLocked()
		return err
	}
	if _, err := d.ctx.file.Write(buf); err != nil {
		d.closeFileLocked()
		return err
	}
	return nil
}

// writeSyncLocked drains buf through a single write (standing in for
// writev; spec §4.E "Sync file: drain the full buffer via writev before
// returning"). The caller (Write) discards a returned error without
// logging it rather than propagating it (spec §9 open question:
// logwrite_sync's ignored write errors, "FIXME. Disk full, probably." —
// preserved as documented in SPEC_FULL.md supplemented feature 4).
func (d *Destination) writeSyncLocked(buf []byte) error {
	if err := d.ensureOpenFile(time.Now()); err != nil {
		return err
	}
	return d.writeFileLocked(buf)
}
