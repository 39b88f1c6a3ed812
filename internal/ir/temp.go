// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import "github.com/tcgjit/tcgjit/internal/regs"

// BaseType is a temp's width: 32 or 64 bit integer. There is no
// floating-point type; this IR only ever moves and computes on integers.
type BaseType int8

const (
	Type32 BaseType = iota
	Type64
)

func (t BaseType) String() string {
	if t == Type64 {
		return "i64"
	}
	return "i32"
}

// Size returns the width in bytes.
func (t BaseType) Size() int {
	if t == Type64 {
		return 8
	}
	return 4
}

// Locality classifies a temp's lifetime scope.
type Locality int8

const (
	Global Locality = iota // outlives a TB
	Local                  // must survive across basic blocks within one TB
	Scratch                // ordinary temp, dead across basic block boundaries
)

// ValState is where a temp's current value currently lives: nowhere yet
// (Dead), in a host register, in its backing memory slot, or known to be a
// compile-time constant not yet materialized anywhere.
type ValState int8

const (
	Dead ValState = iota
	Reg
	Mem
	Const
)

func (v ValState) String() string {
	switch v {
	case Dead:
		return "dead"
	case Reg:
		return "reg"
	case Mem:
		return "mem"
	case Const:
		return "const"
	default:
		return "?"
	}
}

// Temp is a symbolic value addressed by its Index, never copied by value
// once installed in a Context — every invariant the allocator and liveness
// passes maintain is about the *current* fields of the Temp a given index
// names, not about any snapshot of it.
type Temp struct {
	Index int
	Name  string

	Base BaseType // declared width
	Eff  BaseType // effective width (may be narrower; see 32-bit host splitting)

	Locality Locality
	Fixed    bool // pinned to a single host register for its entire lifetime
	Indirect bool // global whose home is reached through a pointer, not (base,offset) directly

	allocated bool // temp_allocated: whether this index is currently in use (freelist bookkeeping)

	// Liveness-analysis scratch, reset at the start of each pass.
	liveDead bool
	liveMem  bool // MEM-pending: memory copy is known current

	// Register-allocator state. At most one Temp at a time owns a given
	// entry in the Context's reg-to-temp inverse map.
	Val       ValState
	Reg       regs.R
	ConstVal  uint64
	MemBase   regs.R
	MemOffset int32
	MemAlloc  bool // a stack slot has been reserved for this temp
	MemCoherent bool
}

// IsGlobal reports whether t is a global temp: one of the fixed set
// declared before the first FuncStart, outliving every translation block.
func (t *Temp) IsGlobal() bool { return t.Locality == Global }

// reset restores a temp to its just-allocated, not-yet-assigned state. Used
// both when a fresh Temp slot is carved out and when a freelist slot is
// reused.
func (t *Temp) reset(index int, base BaseType, loc Locality, name string) {
	t.Index = index
	t.Name = name
	t.Base = base
	t.Eff = base
	t.Locality = loc
	t.Fixed = false
	t.Indirect = false
	t.allocated = true
	t.liveDead = false
	t.liveMem = false
	t.Val = Dead
	t.Reg = regs.None
	t.ConstVal = 0
	t.MemBase = regs.None
	t.MemOffset = 0
	t.MemAlloc = false
	t.MemCoherent = false
}
