/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logdest

import (
	"time"
)

// Write submits message for delivery through this destination (spec §4.E
// "Write discipline"). File/pipe destinations buffer and attempt an
// immediate flush; syslog destinations send one record directly; sync-file
// destinations drain synchronously before returning.
func (d *Destination) Write(message string, now time.Time) error {
	switch d.Kind {
	case KindLocalSyslog, KindRemoteSyslog:
		return d.writeSyslogLocked(message, now)
	case KindSyncFile:
		d.mu.Lock()
		defer d.mu.Unlock()
		err := d.writeSyncLocked([]byte(message))
		if err != nil {
			// Open question preserved: logwrite_sync swallows write
			// errors (SPEC_FULL.md supplemented feature 4). The error is
			// dropped here: it is not logged and OnDied is not invoked.
			return nil
		}
		return nil
	case KindFile:
		return d.writeAsync([]byte(message), now)
	case KindPipe:
		return d.writeAsync([]byte(message), now)
	default:
		return nil
	}
}

// writeAsync implements the async file/pipe path: append to the buffer
// chain (dropping it entirely past bufferLimit), then attempt delivery.
func (d *Destination) writeAsync(data []byte, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx == nil {
		d.ctx = &runtimeContext{}
	}
	if len(d.ctx.buffer)+len(data) > bufferLimit {
		d.ctx.buffer = nil // lossy overflow drop (spec §3/§4.E), operator-visible via OnDied
		if d.OnDied != nil {
			go d.OnDied(ErrOverflow)
		}
		return ErrOverflow
	}
	d.ctx.buffer = append(d.ctx.buffer, data...)

	return d.flushLocked(now)
}

// flushLocked attempts to drain d.ctx.buffer through the open fd. Caller
// holds d.mu.
func (d *Destination) flushLocked(now time.Time) error {
	if d.Kind == KindPipe {
		return d.flushPipeLocked(now)
	}
	return d.flushFileLocked(now)
}

func (d *Destination) flushFileLocked(now time.Time) error {
	if err := d.ensureOpenFile(now); err != nil {
		return err
	}
	buf := d.ctx.buffer
	if len(buf) == 0 {
		return nil
	}
	if err := d.writeFileLocked(buf); err != nil {
		// Hard error: close the fd; stays closed until next rotation
		// cycle (spec §7 "for files, leave closed until next rotation
		// cycle").
		if d.OnDied != nil {
			go d.OnDied(err)
		}
		return err
	}
	d.ctx.buffer = nil
	return nil
}

func (d *Destination) flushPipeLocked(now time.Time) error {
	if d.ctx.cmd == nil || d.ctx.cmd.isDead() {
		if !d.canRespawnLocked(now) {
			return nil // buffered, waiting out the respawn rate limit (spec §8 scenario 6)
		}
		pc, err := spawnPipe(d.Spec)
		if err != nil {
			return err
		}
		d.ctx.cmd = pc
		d.lastRespawn = now
	}

	buf := d.ctx.buffer
	if len(buf) == 0 {
		return nil
	}
	if _, err := d.ctx.cmd.stdin.Write(buf); err != nil {
		_ = d.ctx.cmd.close()
		d.ctx.cmd = nil
		if d.OnDied != nil {
			go d.OnDied(err)
		}
		return err
	}
	d.ctx.buffer = nil
	return nil
}

// canRespawnLocked enforces the 5-second minimum respawn interval (spec §3
// invariant, §8 property 7). Caller holds d.mu.
func (d *Destination) canRespawnLocked(now time.Time) bool {
	return d.lastRespawn.IsZero() || now.Sub(d.lastRespawn) >= respawnInterval
}

// Close marks the destination dying and releases its open fd, pipe child,
// or socket. It does not write out data still held in the buffer (left
// there by a failed write or a pipe waiting out the respawn limit).
func (d *Destination) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return nil
	}
	d.ctx.dying = true
	switch {
	case d.ctx.file != nil:
		d.closeFileLocked()
	case d.ctx.cmd != nil:
		_ = d.ctx.cmd.close()
		d.ctx.cmd = nil
	case d.ctx.conn != nil:
		_ = d.ctx.conn.Close()
		d.ctx.conn = nil
	}
	return nil
}
