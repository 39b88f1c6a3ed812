// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arena implements bump-allocated scratch memory scoped to one
// translation block: fast fixed-size-chunk allocation with no individual
// free, reclaimed in bulk on Reset.
package arena

const defaultChunkSize = 64 * 1024

type chunk struct {
	buf  []byte
	used int
}

// Arena is a bump allocator. Small requests are served from a chain of
// fixed-size chunks that survive across Reset calls; oversize requests get
// their own slice and are dropped on Reset. There is no individual free.
type Arena struct {
	chunkSize int
	chunks    []*chunk
	cur       int // index into chunks of the chunk currently being filled
	oversize  [][]byte
}

// New creates an arena with the given chunk size (0 selects a default).
func New(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Arena{chunkSize: chunkSize}
}

// Alloc returns n zeroed bytes. The returned slice is valid until the next
// Reset.
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	if n > a.chunkSize {
		buf := make([]byte, n)
		a.oversize = append(a.oversize, buf)
		return buf
	}

	for a.cur < len(a.chunks) {
		c := a.chunks[a.cur]
		if c.used+n <= len(c.buf) {
			buf := c.buf[c.used : c.used+n]
			c.used += n
			clear(buf) // a chunk reused after Reset still holds old bytes
			return buf
		}
		a.cur++
	}

	c := &chunk{buf: make([]byte, a.chunkSize)}
	a.chunks = append(a.chunks, c)
	buf := c.buf[:n]
	c.used = n
	return buf
}

// Reset rewinds the bump pointer to the start of the first chunk and frees
// all oversize allocations. Chunks themselves are kept and reused by the
// next translation block.
func (a *Arena) Reset() {
	for _, c := range a.chunks {
		c.used = 0
	}
	a.cur = 0
	a.oversize = nil
}

// Chunks reports how many fixed-size chunks are currently held, for tests
// and diagnostics.
func (a *Arena) Chunks() int {
	return len(a.chunks)
}
