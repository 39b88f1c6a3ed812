// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regalloc

import (
	"github.com/sirupsen/logrus"

	"github.com/tcgjit/tcgjit/internal/debug"
	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/regs"
)

// Alloc drives one Context's op list through register allocation exactly
// once. It owns the inverse register-to-temp map and the spill-frame
// cursor; Run discards it once the op list has been fully walked.
type Alloc struct {
	c      *ir.Context
	target Target
	emit   Emitter

	regToTemp [regs.MaxRegs]int32 // -1: register is free
	frameOff  int32
}

// Run allocates registers for every op in c, in list order, emitting the
// resulting instruction stream through emit. It panics with an *ir.Abort
// (via ir.Fail) on any unrecoverable condition — capacity exhaustion,
// register starvation, or a violated liveness invariant.
func Run(c *ir.Context, target Target, emit Emitter) {
	a := newAlloc(c, target, emit)
	tracer := &debug.Tracer{}

	for idx := c.Head(); idx != ir.Sentinel; {
		op := c.OpAt(idx)
		next := op.Next

		tracer.Enter("alloc op", logrus.Fields{"op": op.Opcode.String(), "idx": idx})

		switch op.Opcode {
		case ir.OpMovi:
			a.allocMovi(idx)
		case ir.OpMov:
			a.allocMov(idx)
		case ir.OpDiscard:
			a.tempDead(op.Args[0])
		case ir.OpCall:
			a.allocCall(idx)
		default:
			a.allocOp(idx)
		}

		tracer.Exit()
		idx = next
	}
}

func newAlloc(c *ir.Context, target Target, emit Emitter) *Alloc {
	a := &Alloc{c: c, target: target, emit: emit, frameOff: target.FrameStart}
	for i := range a.regToTemp {
		a.regToTemp[i] = -1
	}
	for i, t := range c.Temps {
		if t.Fixed && t.Val == ir.Reg {
			a.regToTemp[t.Reg] = int32(i)
		}
	}
	return a
}

// --- temp/register bookkeeping, mirroring the source's temp_*/tcg_reg_*
// helpers one-to-one. ---

func (a *Alloc) allocateFrame(t *ir.Temp) {
	align := a.target.WordSize
	a.frameOff = (a.frameOff + align - 1) &^ (align - 1)
	if a.frameOff+align > a.target.FrameEnd {
		ir.Fail(ir.Capacity, "spill frame exhausted")
	}
	t.MemBase = a.target.FrameReg
	t.MemOffset = a.frameOff
	t.MemAlloc = true
	a.frameOff += align
}

// regAlloc picks a register admitted by want and not in excl, preferring
// an already-free one; failing that it spills the first candidate in
// a.target.AllocOrder.
func (a *Alloc) regAlloc(want, excl regs.Set) regs.R {
	ct := want.Minus(excl)
	for r := range regs.InOrder(a.target.AllocOrder, ct) {
		if a.regToTemp[r] == -1 {
			return r
		}
	}
	for r := range regs.InOrder(a.target.AllocOrder, ct) {
		a.regFree(r)
		return r
	}
	ir.Fail(ir.Starvation, "no register satisfies this constraint")
	return regs.None
}

// regSync writes r's temp back to memory if it is not already coherent.
func (a *Alloc) regSync(r regs.R) {
	ti := a.regToTemp[r]
	t := a.c.Temps[ti]
	if t.Val != ir.Reg {
		ir.Fail(ir.Invariant, "register sync on a temp not resident in that register")
	}
	if !t.MemCoherent && !t.Fixed {
		if !t.MemAlloc {
			a.allocateFrame(t)
		}
		a.emit.St(t.Base, r, t.MemBase, t.MemOffset)
	}
	t.MemCoherent = true
}

// regFree spills r's occupant (if any) and marks r available.
func (a *Alloc) regFree(r regs.R) {
	ti := a.regToTemp[r]
	if ti < 0 {
		return
	}
	a.regSync(r)
	a.c.Temps[ti].Val = ir.Mem
	a.regToTemp[r] = -1
}

// tempDead marks ti dead: a global or Local temp reverts to Mem (its
// canonical home), anything else reverts to Dead outright.
func (a *Alloc) tempDead(ti int32) {
	t := a.c.Temps[ti]
	if t.Fixed {
		return
	}
	if t.Val == ir.Reg {
		a.regToTemp[t.Reg] = -1
	}
	if int(ti) < a.c.NbGlobals || t.Locality == ir.Local {
		t.Val = ir.Mem
	} else {
		t.Val = ir.Dead
	}
}

// tempSync materializes ti (if it is only known as a constant) and writes
// it back to memory.
func (a *Alloc) tempSync(ti int32, excl regs.Set) {
	t := a.c.Temps[ti]
	if t.Fixed {
		return
	}
	if t.Val == ir.Const {
		r := a.regAlloc(a.target.Available[t.Base], excl)
		a.emit.Movi(t.Base, r, t.ConstVal)
		t.Val, t.Reg, t.MemCoherent = ir.Reg, r, false
		a.regToTemp[r] = ti
	}
	if t.Val == ir.Reg {
		a.regSync(t.Reg)
	}
}

// tempSave asserts the liveness-analysis guarantee that ti is already back
// in memory at a point a basic-block boundary or call demands it.
func (a *Alloc) tempSave(ti int32) {
	t := a.c.Temps[ti]
	if t.Val != ir.Mem && !t.Fixed {
		ir.Fail(ir.Invariant, "temp not synced to memory where liveness analysis promised it would be")
	}
}

func (a *Alloc) saveGlobals() {
	for i := 0; i < a.c.NbGlobals; i++ {
		a.tempSave(int32(i))
	}
}

func (a *Alloc) syncGlobals() {
	for i := 0; i < a.c.NbGlobals; i++ {
		t := a.c.Temps[i]
		if t.Val == ir.Reg && !t.Fixed && !t.MemCoherent {
			ir.Fail(ir.Invariant, "global not synced to memory before a read-only globals barrier")
		}
	}
}

// bbEnd re-establishes the end-of-basic-block invariant: every Local temp
// written back to memory (stored first if not yet coherent) and released
// from its register, every Scratch temp already dead, every global saved.
func (a *Alloc) bbEnd() {
	for i := a.c.NbGlobals; i < len(a.c.Temps); i++ {
		t := a.c.Temps[i]
		if t.Locality == ir.Local {
			if t.Val == ir.Reg || t.Val == ir.Const {
				a.tempSync(int32(i), a.target.Reserved)
				a.regToTemp[t.Reg] = -1
				t.Val = ir.Mem
			}
			a.tempSave(int32(i))
		} else if t.Val != ir.Dead {
			ir.Fail(ir.Invariant, "scratch temp not dead at a basic-block end")
		}
	}
	a.saveGlobals()
}

// --- op-kind dispatch ---

func (a *Alloc) allocMovi(idx int32) {
	op := a.c.OpAt(idx)
	ti := op.Args[0]
	val := uint64(uint32(op.Args[1]))
	t := a.c.Temps[ti]
	if t.Base == ir.Type64 {
		val = uint64(int64(op.Args[1]))
	}
	life := op.Life

	if t.Fixed {
		a.emit.Movi(t.Base, t.Reg, val)
	} else {
		if t.Val == ir.Reg {
			a.regToTemp[t.Reg] = -1
		}
		t.Val = ir.Const
		t.ConstVal = val
	}
	if life.Sync(0) {
		a.tempSync(ti, a.target.Reserved)
	}
	if life.Died(0) {
		a.tempDead(ti)
	}
}

func (a *Alloc) allocMov(idx int32) {
	op := a.c.OpAt(idx)
	life := op.Life
	oti, iti := op.Args[0], op.Args[1]
	ot, it := a.c.Temps[oti], a.c.Temps[iti]

	allocated := a.target.Reserved

	if it.Val == ir.Mem || ((life.Sync(0) || ot.Fixed) && it.Val != ir.Reg) {
		r := a.regAlloc(a.target.Available[it.Base], allocated)
		switch it.Val {
		case ir.Mem:
			a.emit.Ld(it.Base, r, it.MemBase, it.MemOffset)
			it.MemCoherent = true
		case ir.Const:
			a.emit.Movi(it.Base, r, it.ConstVal)
			it.MemCoherent = false
		}
		a.regToTemp[r] = iti
		it.Val, it.Reg = ir.Reg, r
	}

	switch {
	case life.Died(0) && !ot.Fixed:
		// The mov's destination dies immediately: store the source
		// straight to the destination's memory slot and skip the move.
		if !life.Sync(0) || it.Val != ir.Reg {
			ir.Fail(ir.Invariant, "mov: destination dies without having been synced to a resident source register")
		}
		if !ot.MemAlloc {
			a.allocateFrame(ot)
		}
		a.emit.St(ot.Base, it.Reg, ot.MemBase, ot.MemOffset)
		if life.Died(1) {
			a.tempDead(iti)
		}
		a.tempDead(oti)

	case it.Val == ir.Const:
		if ot.Val == ir.Reg {
			a.regToTemp[ot.Reg] = -1
		}
		ot.Val, ot.ConstVal = ir.Const, it.ConstVal

	default:
		if it.Val != ir.Reg {
			ir.Fail(ir.Invariant, "mov: source not resident in a register")
		}
		if life.Died(1) && !it.Fixed && !ot.Fixed {
			if ot.Val == ir.Reg {
				a.regToTemp[ot.Reg] = -1
			}
			ot.Reg = it.Reg
			a.tempDead(iti)
		} else {
			if ot.Val != ir.Reg {
				allocated = allocated.With(it.Reg)
				ot.Reg = a.regAlloc(a.target.Available[ot.Base], allocated)
			}
			a.emit.Mov(ot.Base, ot.Reg, it.Reg)
		}
		ot.Val, ot.MemCoherent = ir.Reg, false
		a.regToTemp[ot.Reg] = oti
		if life.Sync(0) {
			a.regSync(ot.Reg)
		}
	}
}

// allocOp handles every non-call, non-movi, non-mov, non-discard op,
// including the basic-block-end forms (OpSetLabel, OpBr, OpBrcond).
func (a *Alloc) allocOp(idx int32) {
	op := a.c.OpAt(idx)
	def := a.c.Defs.Def(op.Opcode)
	nbO, nbI := def.Oargs, def.Iargs
	life := op.Life

	newArgs := make([]regs.R, nbO+nbI)
	isConst := make([]bool, nbO+nbI)
	imm := make([]uint64, nbO+nbI)

	allocated := a.target.Reserved

	for k := 0; k < nbI; k++ {
		i := def.SortedArgs[nbO+k]
		ti := op.Args[i]
		ct := &def.ArgCt[i]
		t := a.c.Temps[ti]

		usedConst := false
		switch t.Val {
		case ir.Mem:
			r := a.regAlloc(ct.Regs, allocated)
			a.emit.Ld(t.Base, r, t.MemBase, t.MemOffset)
			t.Val, t.Reg, t.MemCoherent = ir.Reg, r, true
			a.regToTemp[r] = ti
		case ir.Const:
			if ct.AcceptsConst && a.target.ConstMatch(t.ConstVal, t.Base, ct) {
				isConst[i], imm[i] = true, t.ConstVal
				usedConst = true
			} else {
				r := a.regAlloc(ct.Regs, allocated)
				a.emit.Movi(t.Base, r, t.ConstVal)
				t.Val, t.Reg, t.MemCoherent = ir.Reg, r, false
				a.regToTemp[r] = ti
			}
		}

		if usedConst {
			continue
		}
		if t.Val != ir.Reg {
			ir.Fail(ir.Invariant, "input temp not resident in a register after materialization")
		}

		reg := t.Reg
		needNew := false
		if ct.IAlias {
			if t.Fixed {
				needNew = ti != op.Args[ct.AliasIndex]
			} else {
				needNew = !life.Died(i)
			}
		}
		if !needNew && !ct.Regs.Has(reg) {
			needNew = true
		}
		if needNew {
			r := a.regAlloc(ct.Regs, allocated)
			a.emit.Mov(t.Base, r, reg)
			reg = r
		}

		newArgs[i] = reg
		allocated = allocated.With(reg)
	}

	for i := nbO; i < nbO+nbI; i++ {
		if life.Died(i) {
			a.tempDead(op.Args[i])
		}
	}

	if def.Flags&ir.BBEnd != 0 {
		a.bbEnd()
	} else {
		if def.Flags&ir.CallClobber != 0 {
			for _, r := range a.target.AllocOrder {
				if a.target.CallClobber.Has(r) {
					a.regFree(r)
				}
			}
		}
		if def.Flags&ir.SideEffects != 0 {
			a.syncGlobals()
		}

		allocated = a.target.Reserved
		for k := 0; k < nbO; k++ {
			i := def.SortedArgs[k]
			ti := op.Args[i]
			ct := &def.ArgCt[i]
			t := a.c.Temps[ti]

			var reg regs.R
			skip := false
			if ct.Alias {
				reg = newArgs[ct.AliasIndex]
			} else {
				reg = t.Reg
				if t.Fixed && ct.Regs.Has(reg) {
					skip = true
				} else {
					reg = a.regAlloc(ct.Regs, allocated)
				}
			}
			allocated = allocated.With(reg)
			if !skip && !t.Fixed {
				if t.Val == ir.Reg {
					a.regToTemp[t.Reg] = -1
				}
				t.Val, t.Reg, t.MemCoherent = ir.Reg, reg, false
				a.regToTemp[reg] = ti
			}
			newArgs[i] = reg
		}
	}

	a.emitOp(op, def, nbO, nbI, newArgs, isConst, imm)

	if def.Flags&ir.BBEnd == 0 {
		for i := 0; i < nbO; i++ {
			ti := op.Args[i]
			t := a.c.Temps[ti]
			reg := newArgs[i]
			if t.Fixed && t.Reg != reg {
				a.emit.Mov(t.Base, t.Reg, reg)
			}
			if life.Sync(i) {
				a.regSync(reg)
			}
			if life.Died(i) {
				a.tempDead(ti)
			}
		}
	}
}

func (a *Alloc) emitOp(op *ir.Op, def *ir.OpDef, nbO, nbI int, newArgs []regs.R, isConst []bool, imm []uint64) {
	switch op.Opcode {
	case ir.OpSetLabel:
		a.emit.ResolveLabel(op.Label)
	case ir.OpBr:
		a.emit.Branch(op.Label)
	case ir.OpBrcond:
		cond := ir.Cond(op.Args[nbO+nbI])
		a.emit.BranchCond(cond, operandOf(newArgs, isConst, imm, nbO), operandOf(newArgs, isConst, imm, nbO+1), op.Label)
	default:
		iargs := make([]Operand, nbI)
		for k := 0; k < nbI; k++ {
			iargs[k] = operandOf(newArgs, isConst, imm, nbO+k)
		}
		cargs := op.Args[nbO+nbI : nbO+nbI+def.Cargs]
		a.emit.Op(op.Opcode, newArgs[:nbO], iargs, cargs)
	}
}

func operandOf(newArgs []regs.R, isConst []bool, imm []uint64, i int) Operand {
	if isConst[i] {
		return Operand{Const: true, Imm: imm[i]}
	}
	return Operand{Reg: newArgs[i]}
}

func (a *Alloc) allocCall(idx int32) {
	op := a.c.OpAt(idx)
	nbO, nbI := op.Callo, op.Calli
	funcPtr := op.CallFuncPtr()
	flags := op.CallFlags()
	life := op.Life

	nbRegs := len(a.target.CallIargRegs)
	if nbRegs > nbI {
		nbRegs = nbI
	}

	stackSize := int32(nbI-nbRegs) * a.target.WordSize
	stackSize = (stackSize + a.target.StackAlign - 1) &^ (a.target.StackAlign - 1)
	if stackSize > a.target.StaticArgsSize {
		ir.Fail(ir.Capacity, "call argument stack area exceeds the preallocated size")
	}

	stackOff := a.target.StackOffset
	for i := nbRegs; i < nbI; i++ {
		ti := op.Args[nbO+i]
		if a.target.StackGrowsUp {
			stackOff -= a.target.WordSize
		}
		if ti != ir.DummyArg {
			a.storeCallArg(a.c.Temps[ti], stackOff)
		}
		if !a.target.StackGrowsUp {
			stackOff += a.target.WordSize
		}
	}

	for i := 0; i < nbRegs; i++ {
		ti := op.Args[nbO+i]
		if ti == ir.DummyArg {
			continue
		}
		t := a.c.Temps[ti]
		r := a.target.CallIargRegs[i]
		a.regFree(r)
		switch t.Val {
		case ir.Reg:
			if t.Reg != r {
				a.emit.Mov(t.Base, r, t.Reg)
			}
		case ir.Mem:
			a.emit.Ld(t.Base, r, t.MemBase, t.MemOffset)
		case ir.Const:
			a.emit.Movi(t.Base, r, t.ConstVal)
		default:
			ir.Fail(ir.Invariant, "call argument temp has no materializable value")
		}
	}

	for i := nbO; i < nbO+nbI; i++ {
		if life.Died(i) {
			a.tempDead(op.Args[i])
		}
	}

	for _, r := range a.target.AllocOrder {
		if a.target.CallClobber.Has(r) {
			a.regFree(r)
		}
	}

	switch {
	case flags&int32(ir.NoReadGlobals) != 0:
	case flags&int32(ir.NoWriteGlobals) != 0:
		a.syncGlobals()
	default:
		a.saveGlobals()
	}

	a.emit.Call(funcPtr)

	for i := 0; i < nbO; i++ {
		ti := op.Args[i]
		t := a.c.Temps[ti]
		r := a.target.CallOargRegs[i]
		if a.regToTemp[r] != -1 {
			ir.Fail(ir.Invariant, "call return register is still occupied")
		}
		if t.Fixed {
			if t.Reg != r {
				a.emit.Mov(t.Base, t.Reg, r)
			}
			continue
		}
		if t.Val == ir.Reg {
			a.regToTemp[t.Reg] = -1
		}
		t.Val, t.Reg, t.MemCoherent = ir.Reg, r, false
		a.regToTemp[r] = ti
		if life.Sync(i) {
			a.regSync(r)
		}
		if life.Died(i) {
			a.tempDead(ti)
		}
	}
}

// storeCallArg spills t (materializing it first if it's only a register
// value or a constant) into the outgoing stack-argument slot at offset.
func (a *Alloc) storeCallArg(t *ir.Temp, offset int32) {
	switch t.Val {
	case ir.Reg:
		a.emit.St(t.Base, t.Reg, a.target.StackReg, offset)
	case ir.Mem:
		r := a.regAlloc(a.target.Available[t.Base], a.target.Reserved)
		a.emit.Ld(t.Base, r, t.MemBase, t.MemOffset)
		a.emit.St(t.Base, r, a.target.StackReg, offset)
	case ir.Const:
		r := a.regAlloc(a.target.Available[t.Base], a.target.Reserved)
		a.emit.Movi(t.Base, r, t.ConstVal)
		a.emit.St(t.Base, r, a.target.StackReg, offset)
	default:
		ir.Fail(ir.Invariant, "call argument temp has no materializable value")
	}
}
