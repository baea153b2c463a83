/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package session holds the per-request (Session) and per-connection
// (Connection) state spec.md's data model describes (§3 "Session (S)",
// "Connection context (C)"), plus the Go-idiomatic replacements for the
// original's two manual memory structures: the arena (spec component A)
// and the tracked pool (spec component B). See DESIGN.md "Arena/Pool
// adaptation" for why these are cleanup registries rather than literal
// bump allocators: Go's GC already owns the memory, so what actually needs
// preserving is the *discipline* — bulk teardown at session end, and
// explicit mid-lifetime detach with double-free reported rather than
// fatal.
package session

import (
	"io"
	"sync"
)

// Arena is a session-scoped, single-owner registry of cleanup functions
// invoked in bulk when the session ends (spec §4.A "bulk destroy").
// Registration order is preserved; Release runs cleanups in reverse order,
// matching the usual last-acquired-first-released discipline.
type Arena struct {
	mu       sync.Mutex
	cleanups []func() error
	released bool
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Track registers fn to run when the arena is released. Track after
// Release is a no-op (the arena is already torn down).
func (a *Arena) Track(fn func() error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	a.cleanups = append(a.cleanups, fn)
}

// Release runs every tracked cleanup in reverse-registration order and
// returns the first error encountered (it still runs every cleanup even if
// one fails, matching the original's unconditional bulk-free). Calling
// Release more than once is a no-op.
func (a *Arena) Release() error {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return nil
	}
	a.released = true
	cleanups := a.cleanups
	a.cleanups = nil
	a.mu.Unlock()

	var first error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Pool is a connection-scoped, string-keyed registry supporting explicit
// mid-lifetime free and detach (spec §4.B "Pool (mempool)"). Double-free
// is reported via DoubleFree rather than treated as fatal, matching "double
// free attempts are reported, not fatal" (spec §4.B, §7).
type Pool struct {
	mu sync.Mutex
	// DoubleFree, if set, is called (outside the lock) whenever Free or
	// Detach targets a key that is not currently tracked.
	DoubleFree func(key string)

	items map[string]io.Closer
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{items: make(map[string]io.Closer)}
}

// Track registers c under key, for later Free/Detach.
func (p *Pool) Track(key string, c io.Closer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[key] = c
}

// Detach removes key from the pool without closing it, returning the
// removed value (nil, false if key was not tracked).
func (p *Pool) Detach(key string) (io.Closer, bool) {
	p.mu.Lock()
	c, ok := p.items[key]
	if ok {
		delete(p.items, key)
	}
	p.mu.Unlock()
	if !ok && p.DoubleFree != nil {
		p.DoubleFree(key)
	}
	return c, ok
}

// Free removes key from the pool and closes it. Freeing an untracked key
// invokes DoubleFree (if set) rather than returning an error, matching the
// original's "reported, not fatal" contract.
func (p *Pool) Free(key string) error {
	c, ok := p.Detach(key)
	if !ok {
		return nil
	}
	if c == nil {
		return nil
	}
	return c.Close()
}

// Len reports the number of currently-tracked items (for leak tracking /
// tests).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
