// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// RelocKind identifies the field shape a pending relocation must patch
// (near 8-bit displacement, far 32-bit displacement, absolute, ...). The
// concrete meaning of each value is host-specific; the core only threads
// it through to the backend's relocation patcher.
type RelocKind int32

// PendingReloc is one not-yet-resolved reference to a Label: a code
// position, the field kind to patch there, and an addend.
type PendingReloc struct {
	CodePos int32
	Kind    RelocKind
	Addend  int32
}

// Label is either resolved (holds a code address) or unresolved (holds the
// relocations waiting on it). A label is created unresolved; Set resolves
// it exactly once.
type Label struct {
	resolved bool
	addr     int32
	pending  []PendingReloc
}

// NewLabel allocates an unresolved label.
func NewLabel() *Label {
	return &Label{}
}

// Resolved reports whether Set has been called.
func (l *Label) Resolved() bool { return l.resolved }

// Addr returns the resolved code address. Panics if unresolved.
func (l *Label) Addr() int32 {
	if !l.resolved {
		Fail(Invariant, "label address read before it was set")
	}
	return l.addr
}

// AddReloc enqueues a pending relocation. If the label is already resolved,
// it is returned immediately instead of being queued — the caller is
// expected to patch it on the spot.
func (l *Label) AddReloc(codePos int32, kind RelocKind, addend int32) (resolved bool, addr int32) {
	if l.resolved {
		return true, l.addr
	}
	l.pending = append(l.pending, PendingReloc{CodePos: codePos, Kind: kind, Addend: addend})
	return false, 0
}

// Set resolves the label at addr and returns the relocations that were
// pending on it, for the caller to patch. A label may be set at most once.
func (l *Label) Set(addr int32) []PendingReloc {
	if l.resolved {
		Fail(Invariant, "label set twice")
	}
	l.resolved = true
	l.addr = addr
	pending := l.pending
	l.pending = nil
	return pending
}
