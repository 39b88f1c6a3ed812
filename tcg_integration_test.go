// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcgjit

import (
	"testing"

	"github.com/tcgjit/tcgjit/internal/backend"
	"github.com/tcgjit/tcgjit/internal/backend/amd64"
	"github.com/tcgjit/tcgjit/internal/call"
	"github.com/tcgjit/tcgjit/internal/ir"
)

// newAmd64Context builds one translation block's Context against the real
// amd64 backend.Target, the composition every other test in this tree
// exercises one layer of in isolation: constraints.Build, liveness,
// regalloc.Run, and the amd64 encoder, strung together exactly the way a
// front end would call them through Context.Gen.
func newAmd64Context(cfg backend.Config) *Context {
	return NewContext(cfg, amd64.NewTarget(cfg), ir.DefaultLimits)
}

func gen(t *testing.T, c *Context) []byte {
	t.Helper()
	emit := amd64.NewEmitter(make([]byte, 0, 4096))
	if err := c.Gen(emit); err != nil {
		t.Fatalf("Gen: %v", err)
	}
	code := emit.Bytes()
	if len(code) == 0 {
		t.Fatal("Gen produced no code")
	}
	return code
}

// S1: a constant materialized straight into a mov's source. This op set
// has no constant-folding pass of its own; "through mov" here means the
// allocator must still be able to place the movi's output and feed it to
// the copy without either op ever reaching the encoder with an
// unallocated operand. b is stored to memory so liveness keeps the chain.
func TestScenarioConstantThroughMov(t *testing.T) {
	c := newAmd64Context(backend.Config{EnableLiveness: true})
	c.FuncStart()

	a := c.ConstI32(42)
	b := c.TempNew(ir.Type32, false)
	c.Mov(b, a)
	c.St(b, int32(amd64.RegFramePtr), 0)

	gen(t, c)
}

// S2: an add whose result is never read again. Liveness pass 1 finds its
// output dead and deletes it, and with it the two movis that only fed it,
// so Gen succeeds and emits no host code at all.
func TestScenarioDeadAddElided(t *testing.T) {
	c := newAmd64Context(backend.Config{EnableLiveness: true})
	c.FuncStart()

	x := c.ConstI32(1)
	y := c.ConstI32(2)
	dead := c.TempNew(ir.Type32, false)
	c.Add(dead, x, y)
	// dead's result is never read or discarded: pass1 must still handle it.

	emit := amd64.NewEmitter(make([]byte, 0, 4096))
	if err := c.Gen(emit); err != nil {
		t.Fatalf("Gen: %v", err)
	}
	if code := emit.Bytes(); len(code) != 0 {
		t.Fatalf("dead add emitted % x, want no code", code)
	}
}

// S3: an add/const sequence run on a Context built with Width32 set. It
// declares no global and makes no call, so neither global splitting nor
// call lowering is exercised; it checks that the 32-bit values still
// allocate and encode with the flag on. dst is stored so it stays live.
func TestScenarioWidth32Target(t *testing.T) {
	c := newAmd64Context(backend.Config{EnableLiveness: true, Width32: true})
	c.FuncStart()

	a := c.ConstI32(10)
	b := c.ConstI32(20)
	dst := c.TempNew(ir.Type32, false)
	c.Add(dst, a, b)
	c.St(dst, int32(amd64.RegFramePtr), 0)

	gen(t, c)
}

// S4: a global synced back to memory at a basic-block boundary: Brcond
// ends the block, so a global live across it must be coherent in memory
// by the time the branch is reached.
func TestScenarioGlobalSyncAtBlockEnd(t *testing.T) {
	c := newAmd64Context(backend.Config{EnableLiveness: true})
	g := c.GlobalMem(ir.Type64, amd64.RegFramePtr, 0, true, "g")[0]
	c.FuncStart()

	one := c.ConstI32(1)
	c.Add(g, g, one)

	taken := ir.NewLabel()
	c.Brcond(ir.CondEQ, one, one, taken)
	c.SetLabel(taken)
	c.Discard(g)

	gen(t, c)
}

// S5: a helper call clobbers the caller-saved set; a temp still needed
// afterward must survive the call regardless. This exercises call.Lower
// feeding a real ir.OpCall into the same Context the allocator and
// liveness pass already touched.
func TestScenarioCallClobber(t *testing.T) {
	c := newAmd64Context(backend.Config{EnableLiveness: true})
	c.FuncStart()

	survivor := c.ConstI32(7)
	arg := c.ConstI32(9)

	ret := c.TempNew(ir.Type32, false)
	c.Call(true, call.Arg{Lo: int32(ret.Index)}, 0x1000, 0, []call.Arg{{Lo: int32(arg.Index)}})

	sum := c.TempNew(ir.Type32, false)
	c.Add(sum, survivor, ret)
	c.St(sum, int32(amd64.RegFramePtr), 0)

	gen(t, c)
}

// S6: a mov whose source is never referenced again after it. Whether the
// allocator suppresses the host copy (renaming dst onto src's register)
// or emits it, Gen must still produce a valid, non-empty stream.
func TestScenarioSuppressedMov(t *testing.T) {
	c := newAmd64Context(backend.Config{EnableLiveness: true})
	c.FuncStart()

	src := c.ConstI32(5)
	dst := c.TempNew(ir.Type32, false)
	c.Mov(dst, src)
	c.St(dst, int32(amd64.RegFramePtr), 0)

	gen(t, c)
}

// TestGenBufferFullRetry exercises the retryable buffer-overflow failure
// end to end: a code buffer too small to hold the translation block must
// surface ErrBufferFull, not a panic, and must leave the Context intact
// so a second Gen call (with a bigger buffer) succeeds.
func TestGenBufferFullRetry(t *testing.T) {
	c := newAmd64Context(backend.Config{EnableLiveness: true})
	c.FuncStart()

	a := c.ConstI32(1)
	b := c.ConstI32(2)
	dst := c.TempNew(ir.Type32, false)
	c.Add(dst, a, b)
	c.St(dst, int32(amd64.RegFramePtr), 0)

	tiny := amd64.NewEmitter(make([]byte, 0, 1))
	err := c.Gen(tiny)
	if err != ErrBufferFull {
		t.Fatalf("Gen with undersized buffer: got %v, want ErrBufferFull", err)
	}

	big := amd64.NewEmitter(make([]byte, 0, 4096))
	if err := c.Gen(big); err != nil {
		t.Fatalf("retry Gen: %v", err)
	}
	if len(big.Bytes()) == 0 {
		t.Fatal("retry Gen produced no code")
	}
}
