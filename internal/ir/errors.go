// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// Kind classifies a fatal core failure. Every kind here aborts the current
// translation block outright; code-buffer overflow is the one retryable
// failure and is reported as a plain sentinel error instead, never as an
// Abort.
type Kind int

const (
	// Capacity: temps/ops/labels/call-stack-args exceeded a preallocated
	// limit.
	Capacity Kind = iota
	// Invariant: a constraint, alias, or register-state invariant was
	// violated.
	Invariant
	// Starvation: the register allocator could not satisfy a constraint
	// even after spilling.
	Starvation
	// Relocation: the host emitter rejected a relocation as out of range.
	Relocation
)

func (k Kind) String() string {
	switch k {
	case Capacity:
		return "capacity"
	case Invariant:
		return "invariant violation"
	case Starvation:
		return "register starvation"
	case Relocation:
		return "relocation out of range"
	default:
		return "unknown"
	}
}

// Abort is the panic value raised for any of the four fatal Kinds. The
// public entry point recovers it and turns it into a plain error; see
// tcgjit.Context.Gen.
type Abort struct {
	Kind Kind
	Msg  string
}

func (e *Abort) Error() string {
	return e.Kind.String() + ": " + e.Msg
}

// Fail raises an Abort of the given kind. Used throughout the core instead
// of threading an error return through every call site that touches a
// tightly coupled invariant — the only recovery action is "discard the TB",
// so there is nothing a deep caller could usefully do with the error.
func Fail(kind Kind, msg string) {
	panic(&Abort{Kind: kind, Msg: msg})
}
