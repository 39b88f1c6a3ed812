// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"

	"github.com/tcgjit/tcgjit/internal/arena"
	"github.com/tcgjit/tcgjit/internal/regs"
)

// OpDefTable holds one fully-resolved OpDef per Opcode. It is built once
// per Context by package constraints; two Contexts never share a mutable
// OpDefTable, since SortedArgs is specific to one host's register file.
type OpDefTable struct {
	Defs [numOpcodes]OpDef
}

func (t *OpDefTable) Def(op Opcode) *OpDef { return &t.Defs[op] }

// Sentinel is the op-list head/tail index: a dummy node whose Next is the
// first real op and whose Prev is the last.
const Sentinel int32 = 0

type freeKey struct {
	base BaseType
	loc  Locality
}

// Limits bounds the resources a single Context may consume, enforced as
// Capacity aborts.
type Limits struct {
	MaxTemps  int
	MaxOps    int
	MaxLabels int
}

// DefaultLimits mirrors typical guest TB sizes; generous enough that only
// a pathological or buggy front end would hit them.
var DefaultLimits = Limits{MaxTemps: 4096, MaxOps: 1 << 16, MaxLabels: 4096}

// Context owns one translation context's worth of IR state: the temp
// table (globals + per-TB temps), the op list, and the label table. One
// Context translates one translation block at a time; independent
// Contexts share nothing mutable, so several can run concurrently on
// separate goroutines.
type Context struct {
	Defs *OpDefTable

	Width32   bool // host integer registers are 32 bits wide
	BigEndian bool // affects which half of a split 64-bit global is "low"

	limits Limits

	Arena *arena.Arena

	Temps     []*Temp
	NbGlobals int
	free      map[freeKey][]int

	globalsClosed bool

	Ops []Op

	Labels []*Label
}

// NewContext creates a Context using defs for op metadata. defs must not be
// shared with another Context (see OpDefTable's doc comment).
func NewContext(defs *OpDefTable, width32, bigEndian bool, limits Limits) *Context {
	c := &Context{
		Defs:      defs,
		Width32:   width32,
		BigEndian: bigEndian,
		limits:    limits,
		Arena:     arena.New(0),
		Ops:       make([]Op, 1), // index 0: sentinel
		free:      make(map[freeKey][]int),
	}
	return c
}

// --- Globals ---

func (c *Context) newGlobal(base BaseType, name string) *Temp {
	if c.globalsClosed {
		Fail(Invariant, "global created after FuncStart; globals must be declared up front")
	}
	idx := len(c.Temps)
	t := &Temp{}
	t.reset(idx, base, Global, name)
	c.Temps = append(c.Temps, t)
	c.NbGlobals = idx + 1
	return t
}

// GlobalReg declares a global pinned to a host register for its entire
// lifetime (e.g. the CPU-state pointer). 64-bit globals cannot be pinned to
// a register on a 32-bit host, since no single host register holds 64 bits
// there.
func (c *Context) GlobalReg(base BaseType, reg regs.R, name string) *Temp {
	if base == Type64 && c.Width32 {
		Fail(Invariant, "64-bit fixed-register global is not representable on a 32-bit host")
	}
	t := c.newGlobal(base, name)
	t.Fixed = true
	t.Reg = reg
	t.Val = Reg
	return t
}

// GlobalMem declares a global anchored at (baseReg, offset), optionally
// indirect (its home is reached through a pointer rather than being the
// address itself). On a 32-bit host a 64-bit global is split into two
// independent 32-bit temps with endian-ordered offsets; the
// return slice then has length 2 (low half first, high half second,
// regardless of host endianness — callers index [0] and [1] consistently).
func (c *Context) GlobalMem(base BaseType, baseReg regs.R, offset int32, indirect bool, name string) []*Temp {
	if base == Type64 && c.Width32 {
		lo := c.newGlobal(Type32, name+"_lo")
		hi := c.newGlobal(Type32, name+"_hi")
		loOff, hiOff := offset, offset+4
		if c.BigEndian {
			loOff, hiOff = offset+4, offset
		}
		for t, off := range map[*Temp]int32{lo: loOff, hi: hiOff} {
			t.MemBase = baseReg
			t.MemOffset = off
			t.MemAlloc = true
			t.MemCoherent = true
			t.Indirect = indirect
			t.Val = Mem
		}
		return []*Temp{lo, hi}
	}

	t := c.newGlobal(base, name)
	t.MemBase = baseReg
	t.MemOffset = offset
	t.MemAlloc = true
	t.MemCoherent = true
	t.Indirect = indirect
	t.Val = Mem
	return []*Temp{t}
}

// --- Per-TB temps ---

// TempNew creates a fresh or reused temp. local requests a Local temp
// (must survive basic-block boundaries); otherwise the temp is Scratch
// (dead at every basic-block end).
func (c *Context) TempNew(base BaseType, local bool) *Temp {
	loc := Scratch
	if local {
		loc = Local
	}
	key := freeKey{base, loc}

	if stack := c.free[key]; len(stack) > 0 {
		idx := stack[len(stack)-1]
		c.free[key] = stack[:len(stack)-1]
		t := c.Temps[idx]
		t.reset(idx, base, loc, fmt.Sprintf("t%d", idx))
		return t
	}

	if len(c.Temps) >= c.limits.MaxTemps {
		Fail(Capacity, "too many temps in this translation block")
	}

	idx := len(c.Temps)
	t := &Temp{}
	t.reset(idx, base, loc, fmt.Sprintf("t%d", idx))
	c.Temps = append(c.Temps, t)
	return t
}

// TempFree releases a per-TB temp back to the freelist keyed by
// (base type, locality).
func (c *Context) TempFree(t *Temp) {
	if t.Locality == Global {
		Fail(Invariant, "cannot free a global temp")
	}
	if !t.allocated {
		Fail(Invariant, "double free of temp "+t.Name)
	}
	t.allocated = false
	key := freeKey{t.Base, t.Locality}
	c.free[key] = append(c.free[key], t.Index)
}

// --- Op list ---

func (c *Context) newOpSlot(opc Opcode, args []int32) int32 {
	if len(c.Ops) >= c.limits.MaxOps {
		Fail(Capacity, "too many ops in this translation block")
	}
	idx := int32(len(c.Ops))
	c.Ops = append(c.Ops, Op{Opcode: opc, Args: args})
	return idx
}

func (c *Context) linkAfter(prevIdx, idx int32) {
	op := &c.Ops[idx]
	nextIdx := c.Ops[prevIdx].Next
	op.Prev = prevIdx
	op.Next = nextIdx
	c.Ops[prevIdx].Next = idx
	c.Ops[nextIdx].Prev = idx
}

// OpAt returns the op at idx. Callers must re-derive this pointer after
// any call to Append/InsertBefore/InsertAfter/Remove rather than caching
// it across the mutation, since the backing array may have grown.
func (c *Context) OpAt(idx int32) *Op { return &c.Ops[idx] }

// Head is the index of the first op, or Sentinel if the list is empty.
func (c *Context) Head() int32 { return c.Ops[Sentinel].Next }

// Tail is the index of the last op, or Sentinel if the list is empty.
func (c *Context) Tail() int32 { return c.Ops[Sentinel].Prev }

// Append adds an op at the end of the list.
func (c *Context) Append(opc Opcode, args []int32) int32 {
	idx := c.newOpSlot(opc, args)
	c.linkAfter(c.Tail(), idx)
	return idx
}

// InsertBefore adds an op immediately before ref.
func (c *Context) InsertBefore(ref int32, opc Opcode, args []int32) int32 {
	idx := c.newOpSlot(opc, args)
	c.linkAfter(c.Ops[ref].Prev, idx)
	return idx
}

// InsertAfter adds an op immediately after ref.
func (c *Context) InsertAfter(ref int32, opc Opcode, args []int32) int32 {
	idx := c.newOpSlot(opc, args)
	c.linkAfter(ref, idx)
	return idx
}

// Remove unlinks idx from the list. The slot's memory is cleared but the
// index is never reused within this translation block.
func (c *Context) Remove(idx int32) {
	op := &c.Ops[idx]
	prev, next := op.Prev, op.Next
	c.Ops[prev].Next = next
	c.Ops[next].Prev = prev

	op.Args = nil
	op.Life = 0
	op.Callo, op.Calli = 0, 0
	op.Label = nil
	op.removed = true
	op.Prev, op.Next = -1, -1
}

// --- Labels ---

func (c *Context) GenLabel() *Label {
	if len(c.Labels) >= c.limits.MaxLabels {
		Fail(Capacity, "too many labels in this translation block")
	}
	l := NewLabel()
	c.Labels = append(c.Labels, l)
	return l
}

// --- Lifecycle ---

// FuncStart resets everything scoped to one translation block: the arena,
// the temp freelist and non-global temps, the op list, and the label
// table. Globals survive; once FuncStart has been called, no more globals
// may be declared on this Context.
func (c *Context) FuncStart() {
	c.globalsClosed = true

	c.Arena.Reset()

	c.Temps = c.Temps[:c.NbGlobals]
	c.free = make(map[freeKey][]int)

	for i := 0; i < c.NbGlobals; i++ {
		g := c.Temps[i]
		if g.Fixed {
			g.Val = Reg
		} else {
			g.Val = Mem
			g.MemCoherent = true
		}
	}

	c.Ops = c.Ops[:1]
	c.Ops[0] = Op{}

	c.Labels = c.Labels[:0]
}
