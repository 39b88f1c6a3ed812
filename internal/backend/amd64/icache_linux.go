// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package amd64

import (
	"golang.org/x/sys/unix"
)

// NewCodeBuffer mmaps size bytes of anonymous, writable (not yet
// executable) memory for a translation block's machine code, adapted from
// the xyproto-vibe67 arena allocator's mmap(PROT_READ|PROT_WRITE|
// PROT_EXEC, MAP_PRIVATE|MAP_ANONYMOUS) sequence, split here into a
// writable phase and an executable phase so the mapping is never
// simultaneously writable and executable.
func NewCodeBuffer(size int) (*CodeBuffer, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return &CodeBuffer{mem: mem[:0]}, nil
}

// Seal finalizes n written bytes: flips the mapping from writable to
// executable (x86-64 keeps its instruction cache coherent with stores, so
// no separate cache-flush syscall is needed once the permission change is
// visible) and returns the executable slice.
func (c *CodeBuffer) Seal(n int) ([]byte, error) {
	full := c.mem[:cap(c.mem)]
	if err := unix.Mprotect(full, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return nil, err
	}
	c.mem = full[:n]
	return c.mem, nil
}

// Release unmaps the buffer; callers must not touch the returned slices
// afterward.
func (c *CodeBuffer) Release() error {
	return unix.Munmap(c.mem[:cap(c.mem)])
}
