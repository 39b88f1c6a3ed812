// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package liveness

import "github.com/tcgjit/tcgjit/internal/ir"

// indirect global -> shadow direct temp availability, tracked only for the
// duration of Pass2. Distinct from Pass1's per-temp state: this one is
// indexed by global number and only ever holds dead/mem/live-in-shadow.
const (
	g2Dead uint8 = 1 << iota
	g2Mem
)

// Pass2 walks the op list head-to-tail, replacing references to indirect
// globals with a direct shadow temp, loading the shadow from memory before
// a read that needs it and storing it back after a write that Pass1 marked
// as needing to sync. It reports whether it rewrote anything; a true result
// means Pass1 must run again, since narrowing opportunities only become
// visible once indirect globals are gone.
func Pass2(c *ir.Context, shadow []int32) bool {
	g := make([]uint8, c.NbGlobals)
	for i := range g {
		g[i] = g2Dead
	}

	changes := false

	for idx := c.Head(); idx != ir.Sentinel; {
		next := c.OpAt(idx).Next

		var nbO, nbI int
		var flags ir.Flags
		var life ir.Life
		{
			op := c.OpAt(idx)
			life = op.Life
			if op.Opcode == ir.OpCall {
				nbO, nbI = op.Callo, op.Calli
				flags = ir.Flags(op.CallFlags())
			} else {
				def := c.Defs.Def(op.Opcode)
				nbO, nbI = def.Oargs, def.Iargs
				flags = syntheticFlags(def.Flags)
			}
		}

		// op is re-derived after every InsertBefore/InsertAfter, since
		// either may grow the Ops slice and relocate its backing array.

		// Make sure input arguments are available.
		for i := nbO; i < nbO+nbI; i++ {
			arg := c.OpAt(idx).Args[i]
			if arg == ir.DummyArg || int(arg) >= c.NbGlobals {
				continue
			}
			dir := shadow[arg]
			if dir == ir.DummyArg {
				continue
			}
			if g[arg] == g2Dead {
				t := c.Temps[arg]
				c.InsertBefore(idx, ir.OpLd, []int32{dir, int32(t.MemBase), t.MemOffset})
				g[arg] = g2Mem
			}
		}

		// Perform input replacement, and mark inputs that became dead.
		for i := nbO; i < nbO+nbI; i++ {
			arg := c.OpAt(idx).Args[i]
			if arg == ir.DummyArg || int(arg) >= c.NbGlobals {
				continue
			}
			dir := shadow[arg]
			if dir == ir.DummyArg {
				continue
			}
			c.OpAt(idx).Args[i] = dir
			changes = true
			if life.Died(i) {
				g[arg] = g2Dead
			}
		}

		// By this point Pass1 must already have synced every global this
		// op can see back to memory; these are sanity checks on that
		// guarantee, not corrective logic.
		switch {
		case flags&ir.NoReadGlobals != 0:
		case flags&ir.NoWriteGlobals != 0:
			for i, dir := range shadow {
				if dir != ir.DummyArg && g[i] == 0 {
					ir.Fail(ir.Invariant, "global not synced to memory before an op that may read it")
				}
			}
		default:
			for i, dir := range shadow {
				if dir != ir.DummyArg && g[i] != g2Dead {
					ir.Fail(ir.Invariant, "global not saved back to memory before an op that may write it")
				}
			}
		}

		// Outputs become available.
		for i := 0; i < nbO; i++ {
			arg := c.OpAt(idx).Args[i]
			if arg == ir.DummyArg || int(arg) >= c.NbGlobals {
				continue
			}
			dir := shadow[arg]
			if dir == ir.DummyArg {
				continue
			}
			c.OpAt(idx).Args[i] = dir
			changes = true

			// The output is now live and modified.
			g[arg] = 0

			if life.Sync(i) {
				t := c.Temps[arg]
				c.InsertAfter(idx, ir.OpSt, []int32{dir, int32(t.MemBase), t.MemOffset})
				g[arg] = g2Mem
			}
			if life.Died(i) {
				g[arg] = g2Dead
			}
		}

		idx = next
	}

	return changes
}

// syntheticFlags derives the read/write-globals behavior Pass2 needs for a
// non-call op from its static Flags: a basic-block end behaves like an op
// that both reads and writes every global (control may resume anywhere, so
// nothing can be assumed stale or fresh across it); a side-effecting,
// non-BBEnd op behaves like one that reads but does not write them; every
// other op touches no globals at all.
func syntheticFlags(f ir.Flags) ir.Flags {
	switch {
	case f&ir.BBEnd != 0:
		return 0
	case f&ir.SideEffects != 0:
		return ir.NoWriteGlobals
	default:
		return ir.NoReadGlobals | ir.NoWriteGlobals
	}
}
