// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package liveness implements the two liveness-analysis passes that run
// between op-list construction and register allocation: a backward pass
// that deletes dead ops and narrows wide (64-on-32-bit-host) arithmetic
// when its high half goes unused, and a forward pass that converts
// indirect globals to direct shadow temps where doing so pays off.
package liveness

import "github.com/tcgjit/tcgjit/internal/ir"

// Target carries the handful of host facts the passes need: whether the
// host can compute a multiply's high word directly (muluh/mulsh) rather
// than only through the wide mulu2/muls2 form.
type Target struct {
	HasMuluh bool
	HasMulsh bool
}

const (
	tsDead uint8 = 1 << iota
	tsMem
)

// state is one byte of liveness bits per temp index, indexed the same as
// ir.Context.Temps.
type state []uint8

func newState(c *ir.Context) state {
	return make(state, len(c.Temps))
}

func (s state) isDead(i int32) bool     { return s[i]&tsDead != 0 }
func (s state) isDeadOnly(i int32) bool { return s[i] == tsDead }
func (s state) isMem(i int32) bool      { return s[i]&tsMem != 0 }

func (s state) setDead(i int32)      { s[i] = tsDead }
func (s state) setDeadMem(i int32)   { s[i] = tsDead | tsMem }
func (s state) addMem(i int32)       { s[i] |= tsMem }
func (s state) clearDead(i int32)    { s[i] &^= tsDead }

// funcEnd re-initializes state to the end-of-translation-block condition:
// every temp dead, globals additionally flagged memory-pending (their
// register copy, if any, must be considered stale relative to memory).
func funcEnd(c *ir.Context, s state) {
	for i := range s {
		s[i] = tsDead
	}
	for i := 0; i < c.NbGlobals; i++ {
		s.addMem(int32(i))
	}
}

// NewShadowTemps allocates one direct Local temp per indirect global,
// matching its declared width, for Pass2 to rewrite references through.
// Globals that are not Indirect keep their entry as ir.DummyArg: they are
// already reached directly and need no shadow.
func NewShadowTemps(c *ir.Context) []int32 {
	shadow := make([]int32, c.NbGlobals)
	for i := 0; i < c.NbGlobals; i++ {
		t := c.Temps[i]
		if !t.Indirect {
			shadow[i] = ir.DummyArg
			continue
		}
		dt := c.TempNew(t.Base, true)
		shadow[i] = int32(dt.Index)
	}
	return shadow
}

// bbEnd re-initializes state to the end-of-basic-block condition: globals
// dead and memory-pending, locals memory-pending only (they must survive
// to the next basic block), everything else dead.
func bbEnd(c *ir.Context, s state) {
	for i := 0; i < c.NbGlobals; i++ {
		s.setDeadMem(int32(i))
	}
	for i := c.NbGlobals; i < len(s); i++ {
		if c.Temps[i].Locality == ir.Local {
			s[i] = tsMem
		} else {
			s[i] = tsDead
		}
	}
}
