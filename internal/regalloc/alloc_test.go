// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regalloc

import (
	"testing"

	"github.com/tcgjit/tcgjit/internal/constraints"
	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/regs"
)

// testParse gives every constraint letter the core op set uses a small,
// fixed register class so tests can reason about exact register numbers.
func testParse(ch byte) (regs.Set, bool) {
	switch ch {
	case 'r', 'c':
		return regs.Of(0, 1, 2, 3), true
	case 'a':
		return regs.Of(0), true
	case 'd':
		return regs.Of(1), true
	}
	return regs.Empty, false
}

func testDefs() *ir.OpDefTable {
	return constraints.Build(testParse)
}

func testTarget() Target {
	return Target{
		Available:      [2]regs.Set{regs.Of(0, 1, 2, 3), regs.Of(0, 1, 2, 3)},
		AllocOrder:     []regs.R{0, 1, 2, 3},
		Reserved:       regs.Empty,
		CallClobber:    regs.Of(0, 1, 2, 3),
		CallIargRegs:   []regs.R{0, 1},
		CallOargRegs:   []regs.R{0},
		StackReg:       regs.R(9),
		StackAlign:     4,
		StackOffset:    0,
		StaticArgsSize: 256,
		FrameReg:       regs.R(9),
		FrameStart:     0,
		FrameEnd:       4096,
		WordSize:       4,
		ConstMatch: func(val uint64, width ir.BaseType, ct *ir.ArgConstraint) bool {
			return ct.AcceptsConst
		},
	}
}

type opEvent struct {
	opc   ir.Opcode
	oargs []regs.R
	iargs []Operand
	cargs []int32
}

type fakeEmitter struct {
	movi    [][2]uint64 // [reg, val]
	mov     [][2]regs.R // [dst, src]
	ld      []struct{ dst, base regs.R; off int32 }
	st      []struct{ src, base regs.R; off int32 }
	ops     []opEvent
	calls   []int32
	brs     []*ir.Label
	brconds []struct {
		cond ir.Cond
		a, b Operand
		l    *ir.Label
	}
	resolved []*ir.Label
	pos      int32
}

func (f *fakeEmitter) Movi(width ir.BaseType, dst regs.R, val uint64) {
	f.movi = append(f.movi, [2]uint64{uint64(dst), val})
	f.pos++
}
func (f *fakeEmitter) Mov(width ir.BaseType, dst, src regs.R) {
	f.mov = append(f.mov, [2]regs.R{dst, src})
	f.pos++
}
func (f *fakeEmitter) Ld(width ir.BaseType, dst, base regs.R, offset int32) {
	f.ld = append(f.ld, struct{ dst, base regs.R; off int32 }{dst, base, offset})
	f.pos++
}
func (f *fakeEmitter) St(width ir.BaseType, src, base regs.R, offset int32) {
	f.st = append(f.st, struct{ src, base regs.R; off int32 }{src, base, offset})
	f.pos++
}
func (f *fakeEmitter) Op(opc ir.Opcode, oargs []regs.R, iargs []Operand, cargs []int32) {
	f.ops = append(f.ops, opEvent{opc, append([]regs.R{}, oargs...), append([]Operand{}, iargs...), append([]int32{}, cargs...)})
	f.pos++
}
func (f *fakeEmitter) Call(funcPtr int32) {
	f.calls = append(f.calls, funcPtr)
	f.pos++
}
func (f *fakeEmitter) Branch(l *ir.Label) {
	f.brs = append(f.brs, l)
	f.pos++
}
func (f *fakeEmitter) BranchCond(cond ir.Cond, a, b Operand, l *ir.Label) {
	f.brconds = append(f.brconds, struct {
		cond ir.Cond
		a, b Operand
		l    *ir.Label
	}{cond, a, b, l})
	f.pos++
}
func (f *fakeEmitter) ResolveLabel(l *ir.Label) {
	f.resolved = append(f.resolved, l)
	l.Set(f.pos)
}

func newTestContext() *ir.Context {
	return ir.NewContext(testDefs(), false, false, ir.DefaultLimits)
}

func TestAllocOpAliasesOutputToFirstInputRegister(t *testing.T) {
	c := newTestContext()
	a := c.TempNew(ir.Type32, false)
	b := c.TempNew(ir.Type32, false)
	r := c.TempNew(ir.Type32, false)
	a.Val, a.Reg = ir.Reg, regs.R(2)
	b.Val, b.Reg = ir.Reg, regs.R(3)

	idx := c.Append(ir.OpAdd, []int32{int32(r.Index), int32(a.Index), int32(b.Index)})
	op := c.OpAt(idx)
	op.Life = ir.Life(0).WithDied(1).WithDied(2).WithSync(0)

	fe := &fakeEmitter{}
	al := newAlloc(c, testTarget(), fe)
	al.regToTemp[2] = int32(a.Index)
	al.regToTemp[3] = int32(b.Index)

	al.allocOp(idx)

	if len(fe.ops) != 1 {
		t.Fatalf("got %d emitted ops, want 1", len(fe.ops))
	}
	ev := fe.ops[0]
	if ev.oargs[0] != ev.iargs[0].Reg {
		t.Fatalf("add's output register %v must alias its first input %v (x86-style two-operand add)", ev.oargs[0], ev.iargs[0].Reg)
	}
	if r.Val != ir.Reg || r.Reg != ev.oargs[0] {
		t.Fatalf("result temp must end up resident in the emitted output register")
	}
	if len(fe.st) != 1 || fe.st[0].src != ev.oargs[0] {
		t.Fatalf("expected exactly one sync store of the live, synced result, got %v", fe.st)
	}
}

func TestAllocOpSpillsWhenNoFreeRegisterRemains(t *testing.T) {
	c := newTestContext()
	in := c.TempNew(ir.Type32, false)
	r := c.TempNew(ir.Type32, false)
	in.Val, in.Reg = ir.Reg, regs.R(0)

	// Occupy every other available register with unrelated live temps, so
	// ext32s's output has nothing free to claim without spilling.
	holders := make([]*ir.Temp, 3)
	for i := range holders {
		ht := c.TempNew(ir.Type32, false)
		ht.Val, ht.Reg = ir.Reg, regs.R(i+1)
		holders[i] = ht
	}

	idx := c.Append(ir.OpExt32s, []int32{int32(r.Index), int32(in.Index)})
	op := c.OpAt(idx)
	op.Life = ir.Life(0) // nothing dies here

	fe := &fakeEmitter{}
	al := newAlloc(c, testTarget(), fe)
	al.regToTemp[0] = int32(in.Index)
	for i, ht := range holders {
		al.regToTemp[i+1] = int32(ht.Index)
	}

	al.allocOp(idx)

	if len(fe.st) == 0 {
		t.Fatalf("expected a spill store when every candidate register was occupied")
	}
	if r.Val != ir.Reg {
		t.Fatalf("output should still land in a register after the spill freed one")
	}
}

func TestAllocMoviPropagatesConstantUntilSynced(t *testing.T) {
	c := newTestContext()
	r := c.TempNew(ir.Type32, false)

	idx := c.Append(ir.OpMovi, []int32{int32(r.Index), 42})

	al := newAlloc(c, testTarget(), &fakeEmitter{})
	al.allocMovi(idx)

	if r.Val != ir.Const || r.ConstVal != 42 {
		t.Fatalf("movi with no sync/dead bits should leave the temp as an unmaterialized constant")
	}
}

func TestAllocMovSuppressedWhenSourceDiesAndDestDoesNot(t *testing.T) {
	c := newTestContext()
	src := c.TempNew(ir.Type32, false)
	dst := c.TempNew(ir.Type32, false)
	src.Val, src.Reg = ir.Reg, regs.R(0)

	idx := c.Append(ir.OpMov, []int32{int32(dst.Index), int32(src.Index)})
	op := c.OpAt(idx)
	op.Life = ir.Life(0).WithDied(1) // source dies, dest lives on

	fe := &fakeEmitter{}
	al := newAlloc(c, testTarget(), fe)
	al.regToTemp[0] = int32(src.Index)

	al.allocMov(idx)

	if len(fe.mov) != 0 {
		t.Fatalf("mov should be suppressed by renaming the register when the source dies here")
	}
	if dst.Val != ir.Reg || dst.Reg != regs.R(0) {
		t.Fatalf("destination should simply take over the source's register")
	}
}

func TestAllocCallAssignsArgAndReturnRegisters(t *testing.T) {
	c := newTestContext()
	a0 := c.TempNew(ir.Type32, false)
	ret := c.TempNew(ir.Type32, false)
	a0.Val, a0.Reg = ir.Reg, regs.R(2)

	idx := c.Append(ir.OpCall, []int32{int32(ret.Index), int32(a0.Index), 0x1234, 0})
	op := c.OpAt(idx)
	op.Callo, op.Calli = 1, 1
	op.Life = ir.Life(0).WithSync(0)

	fe := &fakeEmitter{}
	al := newAlloc(c, testTarget(), fe)
	al.regToTemp[2] = int32(a0.Index)

	al.allocCall(idx)

	if len(fe.calls) != 1 || fe.calls[0] != 0x1234 {
		t.Fatalf("expected a call to func pointer 0x1234, got %v", fe.calls)
	}
	if len(fe.mov) != 1 || fe.mov[0][0] != regs.R(0) || fe.mov[0][1] != regs.R(2) {
		t.Fatalf("argument should be moved into the first call-arg register (reg 0), got %v", fe.mov)
	}
	if ret.Val != ir.Reg || ret.Reg != regs.R(0) {
		t.Fatalf("return value should land in the first call-oarg register")
	}
	// One store spills a0 out of its call-clobbered register (reg 2, freed
	// before the call), a second syncs the Sync-flagged return value.
	if len(fe.st) != 2 {
		t.Fatalf("expected 2 sync stores (clobber spill + return sync), got %v", fe.st)
	}
	last := fe.st[len(fe.st)-1]
	if last.src != regs.R(0) {
		t.Fatalf("expected the final store to sync the return value's register, got %v", last)
	}
}

func TestAllocOpResolvesBBEndLabelAndFlushesGlobals(t *testing.T) {
	c := newTestContext()
	g := c.GlobalReg(ir.Type32, regs.R(5), "pc")
	g.Val = ir.Mem // not currently cached in its fixed register

	lbl := ir.NewLabel()
	idx := c.Append(ir.OpSetLabel, nil)
	c.OpAt(idx).Label = lbl

	fe := &fakeEmitter{pos: 7}
	al := newAlloc(c, testTarget(), fe)

	al.allocOp(idx)

	if len(fe.resolved) != 1 || fe.resolved[0] != lbl {
		t.Fatalf("set_label must resolve its label through the emitter")
	}
	if !lbl.Resolved() || lbl.Addr() != 7 {
		t.Fatalf("label should resolve at the emitter's reported position")
	}
}
