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
	"os/exec"
)

// pipeChild is a spawned "/bin/sh -c <cmd>" child with its stdin connected
// to the destination (spec §4.E "spawn /bin/sh -c <cmd> (falling back to
// /usr/bin/sh), connect pipe to child stdin").
type pipeChild struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	dead  chan struct{}
}

// shPaths are tried in order, matching utils.c's fallback pair (see
// SPEC_FULL.md supplemented feature 5).
var shPaths = []string{"/bin/sh", "/usr/bin/sh"}

func resolveShell() string {
	for _, p := range shPaths {
		if _, err := exec.LookPath(p); err == nil {
			return p
		}
	}
	// Last resort: let exec.Command's own PATH search try "sh".
	return "sh"
}

// spawnPipe starts the shell command and wires its stdin for writing. The
// returned pipeChild's dead channel is closed when the child process exits,
// whether cleanly or not, so the destination manager can reap and respawn
// (spec §4.E: "reap on SIGCHLD via a death callback that restarts the
// child").
func spawnPipe(shellCmd string) (*pipeChild, error) {
	sh := resolveShell()
	cmd := exec.Command(sh, "-c", shellCmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	pc := &pipeChild{cmd: cmd, stdin: stdin, dead: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(pc.dead)
	}()
	return pc, nil
}

// isDead reports whether the child has exited, without blocking.
func (pc *pipeChild) isDead() bool {
	select {
	case <-pc.dead:
		return true
	default:
		return false
	}
}

func (pc *pipeChild) close() error {
	err := pc.stdin.Close()
	if pc.cmd.Process != nil {
		_ = pc.cmd.Process.Kill()
	}
	return err
}
