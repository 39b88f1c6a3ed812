// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package liveness

import (
	"testing"

	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/regs"
)

func newTestDefs() *ir.OpDefTable {
	t := &ir.OpDefTable{}
	for i := range t.Defs {
		t.Defs[i].Spec = ir.CoreSpecs[i]
	}
	return t
}

func newTestContext(width32 bool) *ir.Context {
	return ir.NewContext(newTestDefs(), width32, false, ir.DefaultLimits)
}

func isRemoved(c *ir.Context, idx int32) bool {
	for i := c.Head(); i != ir.Sentinel; i = c.OpAt(i).Next {
		if i == idx {
			return false
		}
	}
	return true
}

// sideCall appends a trivial call flagged SideEffects, reading ins as
// inputs. It exists purely to give a temp a genuine downstream use without
// pulling in the call package's ABI lowering.
func sideCall(c *ir.Context, ins ...int32) int32 {
	args := append(append([]int32{}, ins...), 0, int32(ir.SideEffects))
	idx := c.Append(ir.OpCall, args)
	op := c.OpAt(idx)
	op.Callo, op.Calli = 0, len(ins)
	return idx
}

func TestPass1RemovesOpWhoseOutputIsNeverUsed(t *testing.T) {
	c := newTestContext(false)
	a := c.TempNew(ir.Type32, false)
	b := c.TempNew(ir.Type32, false)
	dead := c.TempNew(ir.Type32, false)

	idx := c.Append(ir.OpAdd, []int32{int32(dead.Index), int32(a.Index), int32(b.Index)})

	Pass1(c, Target{})

	if !isRemoved(c, idx) {
		t.Fatalf("expected add with dead output to be removed")
	}
}

func TestPass1KeepsOpWhoseOutputIsReadLater(t *testing.T) {
	c := newTestContext(false)
	a := c.TempNew(ir.Type32, false)
	b := c.TempNew(ir.Type32, false)
	r := c.TempNew(ir.Type32, false)

	addIdx := c.Append(ir.OpAdd, []int32{int32(r.Index), int32(a.Index), int32(b.Index)})
	sideCall(c, int32(r.Index))

	Pass1(c, Target{})

	if isRemoved(c, addIdx) {
		t.Fatalf("add whose output is read by a later op must not be removed")
	}
}

func TestPass1DiscardNeverRemovesItself(t *testing.T) {
	c := newTestContext(false)
	r := c.TempNew(ir.Type32, false)

	discardIdx := c.Append(ir.OpDiscard, []int32{int32(r.Index)})

	Pass1(c, Target{})

	if isRemoved(c, discardIdx) {
		t.Fatalf("discard is never a removal candidate")
	}
}

func TestPass1RemovesRedundantEarlierGlobalWrite(t *testing.T) {
	c := newTestContext(false)
	g := c.GlobalReg(ir.Type32, regs.R(1), "pc")
	src1 := c.TempNew(ir.Type32, false)
	src2 := c.TempNew(ir.Type32, false)

	firstWrite := c.Append(ir.OpMov, []int32{int32(g.Index), int32(src1.Index)})
	secondWrite := c.Append(ir.OpMov, []int32{int32(g.Index), int32(src2.Index)})

	Pass1(c, Target{})

	if !isRemoved(c, firstWrite) {
		t.Fatalf("a write to a global fully overwritten before any read must be removed")
	}
	if isRemoved(c, secondWrite) {
		t.Fatalf("the surviving write to the global must not be removed")
	}
}

func TestPass1NarrowsAdd2ToAddWhenOnlyHighOutputIsDead(t *testing.T) {
	c := newTestContext(true)
	loA := c.TempNew(ir.Type32, false)
	hiA := c.TempNew(ir.Type32, false)
	loB := c.TempNew(ir.Type32, false)
	hiB := c.TempNew(ir.Type32, false)
	loOut := c.TempNew(ir.Type32, false)
	hiOut := c.TempNew(ir.Type32, false)

	idx := c.Append(ir.OpAdd2, []int32{
		int32(loOut.Index), int32(hiOut.Index),
		int32(loA.Index), int32(hiA.Index),
		int32(loB.Index), int32(hiB.Index),
	})
	sideCall(c, int32(loOut.Index)) // loOut survives; hiOut stays unused

	Pass1(c, Target{})

	op := c.OpAt(idx)
	if op.Opcode != ir.OpAdd {
		t.Fatalf("opcode = %v, want OpAdd after narrowing", op.Opcode)
	}
	if op.Args[0] != int32(loOut.Index) || op.Args[1] != int32(loA.Index) || op.Args[2] != int32(loB.Index) {
		t.Fatalf("narrowed args = %v, want [loOut, loA, loB]", op.Args)
	}
}

func TestPass1RemovesAdd2WhenBothOutputsDead(t *testing.T) {
	c := newTestContext(true)
	loA := c.TempNew(ir.Type32, false)
	hiA := c.TempNew(ir.Type32, false)
	loB := c.TempNew(ir.Type32, false)
	hiB := c.TempNew(ir.Type32, false)
	loOut := c.TempNew(ir.Type32, false)
	hiOut := c.TempNew(ir.Type32, false)

	idx := c.Append(ir.OpAdd2, []int32{
		int32(loOut.Index), int32(hiOut.Index),
		int32(loA.Index), int32(hiA.Index),
		int32(loB.Index), int32(hiB.Index),
	})

	Pass1(c, Target{})

	if !isRemoved(c, idx) {
		t.Fatalf("add2 with both outputs unused should be removed entirely")
	}
}

func TestPass1NarrowsMulu2ToMulWhenHighOutputDeadAndNoMuluh(t *testing.T) {
	c := newTestContext(false)
	a := c.TempNew(ir.Type32, false)
	b := c.TempNew(ir.Type32, false)
	lo := c.TempNew(ir.Type32, false)
	hi := c.TempNew(ir.Type32, false)

	idx := c.Append(ir.OpMulu2, []int32{int32(lo.Index), int32(hi.Index), int32(a.Index), int32(b.Index)})
	sideCall(c, int32(lo.Index))

	Pass1(c, Target{HasMuluh: false})

	op := c.OpAt(idx)
	if op.Opcode != ir.OpMul {
		t.Fatalf("opcode = %v, want OpMul", op.Opcode)
	}
}

func TestPass1KeepsWideMuluWhenBothOutputsLive(t *testing.T) {
	c := newTestContext(false)
	a := c.TempNew(ir.Type32, false)
	b := c.TempNew(ir.Type32, false)
	lo := c.TempNew(ir.Type32, false)
	hi := c.TempNew(ir.Type32, false)

	idx := c.Append(ir.OpMulu2, []int32{int32(lo.Index), int32(hi.Index), int32(a.Index), int32(b.Index)})
	sideCall(c, int32(lo.Index), int32(hi.Index))

	Pass1(c, Target{})

	op := c.OpAt(idx)
	if op.Opcode != ir.OpMulu2 {
		t.Fatalf("opcode = %v, want OpMulu2 (both outputs live)", op.Opcode)
	}
}

func TestPass1CallWithSideEffectsSurvivesDeadOutputs(t *testing.T) {
	c := newTestContext(false)
	r := c.TempNew(ir.Type32, false)

	idx := c.Append(ir.OpCall, []int32{int32(r.Index), 0, int32(ir.SideEffects)})
	c.OpAt(idx).Callo, c.OpAt(idx).Calli = 1, 0

	Pass1(c, Target{})

	if isRemoved(c, idx) {
		t.Fatalf("a call flagged SideEffects must not be removed even with a dead return value")
	}
}

func TestPass1CallWithoutSideEffectsRemovedWhenOutputsDead(t *testing.T) {
	c := newTestContext(false)
	r := c.TempNew(ir.Type32, false)

	idx := c.Append(ir.OpCall, []int32{int32(r.Index), 0, 0})
	c.OpAt(idx).Callo, c.OpAt(idx).Calli = 1, 0

	Pass1(c, Target{})

	if !isRemoved(c, idx) {
		t.Fatalf("a pure call with a dead return value should be removed")
	}
}

func TestPass2RewritesIndirectGlobalReadAndInsertsLoad(t *testing.T) {
	c := newTestContext(false)
	envPtrReg := regs.R(3)
	g := c.GlobalMem(ir.Type32, envPtrReg, 16, true, "x")[0]

	callIdx := sideCall(c, int32(g.Index))

	Pass1(c, Target{})
	shadow := NewShadowTemps(c)
	changed := Pass2(c, shadow)

	if !changed {
		t.Fatalf("expected Pass2 to report a change")
	}

	call := c.OpAt(callIdx)
	if call.Args[0] != shadow[g.Index] {
		t.Fatalf("rewritten arg = %d, want shadow temp %d", call.Args[0], shadow[g.Index])
	}

	ld := c.OpAt(c.Head())
	if ld.Opcode != ir.OpLd {
		t.Fatalf("expected a load inserted before the first use of the indirect global, got %v", ld.Opcode)
	}
	if ld.Args[0] != shadow[g.Index] {
		t.Fatalf("load target = %d, want shadow temp %d", ld.Args[0], shadow[g.Index])
	}
	if ld.Args[1] != int32(envPtrReg) || ld.Args[2] != 16 {
		t.Fatalf("load base/offset = %d/%d, want %d/16", ld.Args[1], ld.Args[2], envPtrReg)
	}
}

func TestPass2InsertsStoreAfterSyncedWrite(t *testing.T) {
	c := newTestContext(false)
	envPtrReg := regs.R(3)
	g := c.GlobalMem(ir.Type32, envPtrReg, 24, true, "y")[0]
	src := c.TempNew(ir.Type32, false)

	writeIdx := c.Append(ir.OpMov, []int32{int32(g.Index), int32(src.Index)})
	sideCall(c) // a later side-effecting op, just to keep the list non-trivial

	Pass1(c, Target{})
	shadow := NewShadowTemps(c)
	Pass2(c, shadow)

	write := c.OpAt(writeIdx)
	if write.Args[0] != shadow[g.Index] {
		t.Fatalf("write target = %d, want shadow temp %d", write.Args[0], shadow[g.Index])
	}

	st := c.OpAt(write.Next)
	if st.Opcode != ir.OpSt {
		t.Fatalf("expected a store immediately after the synced write, got %v", st.Opcode)
	}
	if st.Args[0] != shadow[g.Index] || st.Args[1] != int32(envPtrReg) || st.Args[2] != 24 {
		t.Fatalf("store args = %v, want [%d, %d, 24]", st.Args, shadow[g.Index], envPtrReg)
	}
}

func TestPass2LeavesDirectGlobalsUntouched(t *testing.T) {
	c := newTestContext(false)
	g := c.GlobalReg(ir.Type32, regs.R(2), "fixed")

	callIdx := sideCall(c, int32(g.Index))

	Pass1(c, Target{})
	shadow := NewShadowTemps(c)

	if shadow[g.Index] != ir.DummyArg {
		t.Fatalf("a non-indirect global must not get a shadow temp")
	}

	changed := Pass2(c, shadow)
	if changed {
		t.Fatalf("Pass2 must report no change when no indirect global is touched")
	}
	if c.OpAt(callIdx).Args[0] != int32(g.Index) {
		t.Fatalf("a direct global's arg must be left unrewritten")
	}
}

func TestNewShadowTempsOnlyCoversIndirectGlobals(t *testing.T) {
	c := newTestContext(false)
	direct := c.GlobalReg(ir.Type32, regs.R(1), "direct")
	indirect := c.GlobalMem(ir.Type32, regs.R(5), 8, true, "indirect")[0]

	shadow := NewShadowTemps(c)

	if shadow[direct.Index] != ir.DummyArg {
		t.Fatalf("direct global must have no shadow")
	}
	if shadow[indirect.Index] == ir.DummyArg {
		t.Fatalf("indirect global must get a shadow")
	}
}
