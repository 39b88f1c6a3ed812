// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package liveness

import "github.com/tcgjit/tcgjit/internal/ir"

// Pass1 walks the op list tail-to-head, computing each remaining op's
// Life (per-arg "died here" / per-output "must sync to memory" bits),
// deleting ops whose outputs are all provably unused, and narrowing wide
// add2/sub2/mulu2/muls2 ops to their single-word form when the high
// output is dead.
func Pass1(c *ir.Context, target Target) {
	s := newState(c)
	funcEnd(c, s)

	for idx := c.Tail(); idx != ir.Sentinel; {
		op := c.OpAt(idx)
		prev := op.Prev

		switch op.Opcode {
		case ir.OpCall:
			pass1Call(c, s, idx)
		case ir.OpDiscard:
			s.setDead(op.Args[0])
		case ir.OpAdd2, ir.OpSub2:
			pass1AddSub2(c, s, idx)
		case ir.OpMulu2, ir.OpMuls2:
			pass1Mul2(c, s, idx, target)
		default:
			pass1Default(c, s, idx)
		}

		idx = prev
	}
}

func pass1Call(c *ir.Context, s state, idx int32) {
	op := c.OpAt(idx)
	nbO, nbI := op.Callo, op.Calli
	flags := op.CallFlags()

	if flags&int32(ir.SideEffects) == 0 {
		allDead := true
		for i := 0; i < nbO; i++ {
			if !s.isDeadOnly(op.Args[i]) {
				allDead = false
				break
			}
		}
		if allDead {
			c.Remove(idx)
			return
		}
	}

	var life ir.Life
	for i := 0; i < nbO; i++ {
		arg := op.Args[i]
		if s.isDead(arg) {
			life = life.WithDied(i)
		}
		if s.isMem(arg) {
			life = life.WithSync(i)
		}
		s.setDead(arg)
	}

	// CALL_CLOBBER marks a call as reading/writing globals broadly; the
	// finer-grained NoRead/NoWriteGlobals flags narrow that when a helper
	// is known not to touch them.
	noRead := flags&int32(ir.NoReadGlobals) != 0
	noWrite := flags&int32(ir.NoWriteGlobals) != 0
	switch {
	case !noRead && !noWrite:
		for i := 0; i < c.NbGlobals; i++ {
			s.setDeadMem(int32(i))
		}
	case !noRead:
		for i := 0; i < c.NbGlobals; i++ {
			s.addMem(int32(i))
		}
	}

	for i := nbO; i < nbO+nbI; i++ {
		arg := op.Args[i]
		if arg != ir.DummyArg && s.isDead(arg) {
			life = life.WithDied(i)
		}
	}
	for i := nbO; i < nbO+nbI; i++ {
		arg := op.Args[i]
		if arg != ir.DummyArg {
			s.clearDead(arg)
		}
	}

	op.Life = life
}

func pass1AddSub2(c *ir.Context, s state, idx int32) {
	op := c.OpAt(idx)
	hi, lo := op.Args[1], op.Args[0]

	nbO, nbI := 2, 4
	if s.isDeadOnly(hi) {
		if s.isDeadOnly(lo) {
			c.Remove(idx)
			return
		}
		if op.Opcode == ir.OpAdd2 {
			op.Opcode = ir.OpAdd
		} else {
			op.Opcode = ir.OpSub
		}
		op.Args[1] = op.Args[2]
		op.Args[2] = op.Args[4]
		nbO, nbI = 1, 2
	}

	pass1Finish(c, s, idx, nbO, nbI, ir.CoreSpecs[ir.OpAdd2].Flags)
}

func pass1Mul2(c *ir.Context, s state, idx int32, target Target) {
	op := c.OpAt(idx)
	hi, lo := op.Args[1], op.Args[0]
	nbO, nbI := 2, 2

	narrowOpc, haveHighForm, highOpc := narrowMulOpcodes(op.Opcode, target)

	switch {
	case s.isDeadOnly(hi):
		if s.isDeadOnly(lo) {
			c.Remove(idx)
			return
		}
		op.Opcode = narrowOpc
		op.Args[1] = op.Args[2]
		op.Args[2] = op.Args[3]
		nbO = 1
	case s.isDeadOnly(lo) && haveHighForm:
		op.Opcode = highOpc
		op.Args[0] = op.Args[1]
		op.Args[1] = op.Args[2]
		op.Args[2] = op.Args[3]
		nbO = 1
	}

	pass1Finish(c, s, idx, nbO, nbI, ir.CoreSpecs[ir.OpMulu2].Flags)
}

func narrowMulOpcodes(opc ir.Opcode, target Target) (narrow ir.Opcode, haveHigh bool, high ir.Opcode) {
	if opc == ir.OpMulu2 {
		return ir.OpMul, target.HasMuluh, ir.OpMuluh
	}
	return ir.OpMul, target.HasMulsh, ir.OpMulsh
}

func pass1Default(c *ir.Context, s state, idx int32) {
	op := c.OpAt(idx)
	def := c.Defs.Def(op.Opcode)
	nbO, nbI := def.Oargs, def.Iargs

	if def.Flags&ir.SideEffects == 0 && nbO != 0 {
		allDead := true
		for i := 0; i < nbO; i++ {
			if !s.isDeadOnly(op.Args[i]) {
				allDead = false
				break
			}
		}
		if allDead {
			c.Remove(idx)
			return
		}
	}

	pass1Finish(c, s, idx, nbO, nbI, def.Flags)
}

// pass1Finish implements the "do_not_remove" block shared by the default
// path and the narrowed wide-op paths: compute die/sync bits for outputs,
// re-initialize at basic-block ends or mark globals memory-pending on a
// side-effecting op, then compute die bits for inputs and mark them live
// upward.
func pass1Finish(c *ir.Context, s state, idx int32, nbO, nbI int, flags ir.Flags) {
	op := c.OpAt(idx)
	var life ir.Life

	for i := 0; i < nbO; i++ {
		arg := op.Args[i]
		if s.isDead(arg) {
			life = life.WithDied(i)
		}
		if s.isMem(arg) {
			life = life.WithSync(i)
		}
		s.setDead(arg)
	}

	switch {
	case flags&ir.BBEnd != 0:
		bbEnd(c, s)
	case flags&ir.SideEffects != 0:
		for i := 0; i < c.NbGlobals; i++ {
			s.addMem(int32(i))
		}
	}

	for i := nbO; i < nbO+nbI; i++ {
		if s.isDead(op.Args[i]) {
			life = life.WithDied(i)
		}
	}
	for i := nbO; i < nbO+nbI; i++ {
		s.clearDead(op.Args[i])
	}

	op.Life = life
}
