// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcgjit

import (
	"errors"

	"github.com/tcgjit/tcgjit/internal/ir"
)

// Error is the plain Go error Gen returns for any of the four fatal
// failure kinds (capacity, invariant violation, allocator starvation,
// out-of-range relocation). It wraps the internal *ir.Abort panic value
// that was recovered at this boundary.
type Error struct {
	Kind ir.Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Msg
}

// ErrBufferFull is returned by Gen, instead of an *Error, when the code
// buffer's high-water mark was crossed: unlike the four fatal Kinds this
// failure is explicitly retryable and does not invalidate the Context's
// op/temp/label state, so a caller may grow its buffer and call Gen again
// with the same Context and a fresh Emitter.
var ErrBufferFull = errors.New("tcgjit: code buffer overflow, retry with a larger buffer")

// overflowChecker is implemented by backends (e.g. amd64.Emitter) whose
// code buffer has a fixed capacity; Gen consults it after a successful
// Run to turn a crossed watermark into ErrBufferFull rather than letting
// truncated code escape silently.
type overflowChecker interface {
	Overflowed() bool
}

func recoverAbort(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if ab, ok := r.(*ir.Abort); ok {
		*err = &Error{Kind: ab.Kind, Msg: ab.Msg}
		return
	}
	panic(r)
}
