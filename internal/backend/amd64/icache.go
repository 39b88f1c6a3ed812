// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amd64

// CodeBuffer is an executable-memory region a Context.Gen result is
// written into, then handed to the executor. It starts writable and
// becomes executable via Seal: once a translation block is finalized its
// bytes become read-only for the executor, never simultaneously
// writable and executable.
type CodeBuffer struct {
	mem []byte
}

// Bytes returns the backing slice, writable until Seal and read-only
// (and executable) after.
func (c *CodeBuffer) Bytes() []byte { return c.mem }
