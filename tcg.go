// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcgjit

import (
	"github.com/tcgjit/tcgjit/internal/backend"
	"github.com/tcgjit/tcgjit/internal/call"
	"github.com/tcgjit/tcgjit/internal/constraints"
	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/liveness"
	"github.com/tcgjit/tcgjit/internal/regalloc"
)

// Context owns one translation block's worth of IR state (embedding
// internal/ir.Context, so every ingress call — GlobalReg, GlobalMem,
// TempNew, TempFree, GenLabel, FuncStart — is available directly) plus
// the backend.Target/backend.Config Gen drives allocation and liveness
// with. One Context translates one TB at a time; independent Contexts
// share nothing mutable and may run on independent goroutines
// concurrently.
type Context struct {
	*ir.Context

	cfg    backend.Config
	target backend.Target
}

// NewContext builds a Context for one host target. cfg and target
// typically come from a single backend package's constructor (e.g.
// amd64.NewTarget); target.Constraints is parsed once here into a private
// *ir.OpDefTable, per the "Open Question decisions" in DESIGN.md.
func NewContext(cfg backend.Config, target backend.Target, limits ir.Limits) *Context {
	defs := constraints.Build(target.Constraints)
	return &Context{
		Context: ir.NewContext(defs, cfg.Width32, cfg.BigEndian, limits),
		cfg:     cfg,
		target:  target,
	}
}

// --- gen_op… ingress helpers ---

func (c *Context) appendArgs(opc ir.Opcode, oargs, iargs []*ir.Temp, cargs []int32) int32 {
	args := make([]int32, 0, len(oargs)+len(iargs)+len(cargs))
	for _, t := range oargs {
		args = append(args, int32(t.Index))
	}
	for _, t := range iargs {
		args = append(args, int32(t.Index))
	}
	args = append(args, cargs...)
	return c.Append(opc, args)
}

// binOp appends one of the two-input arithmetic/logical ops (add, sub,
// mul, and, or, xor, shl, shr, sar).
func (c *Context) binOp(opc ir.Opcode, dst, a, b *ir.Temp) {
	c.appendArgs(opc, []*ir.Temp{dst}, []*ir.Temp{a, b}, nil)
}

func (c *Context) Add(dst, a, b *ir.Temp) { c.binOp(ir.OpAdd, dst, a, b) }
func (c *Context) Sub(dst, a, b *ir.Temp) { c.binOp(ir.OpSub, dst, a, b) }
func (c *Context) Mul(dst, a, b *ir.Temp) { c.binOp(ir.OpMul, dst, a, b) }
func (c *Context) And(dst, a, b *ir.Temp) { c.binOp(ir.OpAnd, dst, a, b) }
func (c *Context) Or(dst, a, b *ir.Temp)  { c.binOp(ir.OpOr, dst, a, b) }
func (c *Context) Xor(dst, a, b *ir.Temp) { c.binOp(ir.OpXor, dst, a, b) }
func (c *Context) Shl(dst, a, b *ir.Temp) { c.binOp(ir.OpShl, dst, a, b) }
func (c *Context) Shr(dst, a, b *ir.Temp) { c.binOp(ir.OpShr, dst, a, b) }
func (c *Context) Sar(dst, a, b *ir.Temp) { c.binOp(ir.OpSar, dst, a, b) }

// Mov appends a plain register-to-register copy. Pass1/allocMov may
// suppress the host instruction entirely when src dies here.
func (c *Context) Mov(dst, src *ir.Temp) {
	c.appendArgs(ir.OpMov, []*ir.Temp{dst}, []*ir.Temp{src}, nil)
}

func (c *Context) Ext32s(dst, src *ir.Temp) { c.appendArgs(ir.OpExt32s, []*ir.Temp{dst}, []*ir.Temp{src}, nil) }
func (c *Context) Ext32u(dst, src *ir.Temp) { c.appendArgs(ir.OpExt32u, []*ir.Temp{dst}, []*ir.Temp{src}, nil) }

// ConstI32/ConstI64 create a fresh temp holding a constant via movi
// (const_i32/const_i64). A 64-bit host value wider than
// int32 cannot be carried as movi's single carg today — see
// DESIGN.md's "Known simplification" note on internal/regalloc — so the
// caller must split it (e.g. through two ConstI32 temps and Add2) rather
// than calling ConstI64 with it.
func (c *Context) ConstI32(val int32) *ir.Temp {
	t := c.TempNew(ir.Type32, false)
	c.appendArgs(ir.OpMovi, []*ir.Temp{t}, nil, []int32{val})
	return t
}

func (c *Context) ConstI64(val int32) *ir.Temp {
	t := c.TempNew(ir.Type64, false)
	c.appendArgs(ir.OpMovi, []*ir.Temp{t}, nil, []int32{val})
	return t
}

// Discard marks t's current value as no longer needed without reading it,
// the explicit death marker ir.OpDiscard names.
func (c *Context) Discard(t *ir.Temp) {
	c.appendArgs(ir.OpDiscard, nil, []*ir.Temp{t}, nil)
}

// Ld/St address a (base register, byte offset) memory operand directly,
// per ir.CoreSpecs[OpLd/OpSt]'s cargs layout.
func (c *Context) Ld(dst *ir.Temp, base int32, offset int32) {
	c.appendArgs(ir.OpLd, []*ir.Temp{dst}, nil, []int32{base, offset})
}

func (c *Context) St(src *ir.Temp, base int32, offset int32) {
	c.appendArgs(ir.OpSt, nil, []*ir.Temp{src}, []int32{base, offset})
}

// Br/Brcond/SetLabel wrap the three label-bearing pseudo/control ops:
// gen_label is internal/ir.Context.GenLabel (promoted by embedding),
// set_label resolves it into the op stream here.
func (c *Context) Br(l *ir.Label) {
	idx := c.Append(ir.OpBr, nil)
	c.OpAt(idx).Label = l
}

func (c *Context) Brcond(cond ir.Cond, a, b *ir.Temp, l *ir.Label) {
	idx := c.Append(ir.OpBrcond, []int32{int32(a.Index), int32(b.Index), int32(cond)})
	c.OpAt(idx).Label = l
}

func (c *Context) SetLabel(l *ir.Label) {
	idx := c.Append(ir.OpSetLabel, nil)
	c.OpAt(idx).Label = l
}

// Call appends gen_callN's single ir.OpCall, ABI-lowered by internal/call
// against this Context's backend.Target.Call.
func (c *Context) Call(hasRet bool, ret call.Arg, funcPtr, flags int32, args []call.Arg) int32 {
	return call.Lower(c.Context, c.target.Call, hasRet, ret, funcPtr, flags, args)
}

// Gen runs both liveness passes (if cfg.EnableLiveness) to a fixpoint,
// then the register allocator, driving emit to produce the host
// instruction stream. Every *ir.Abort panic raised anywhere in that
// pipeline is recovered here and returned as an *Error; a code-buffer
// overflow reported by emit (if it implements overflowChecker) is
// returned as ErrBufferFull instead, leaving the Context's op list
// untouched so the caller may retry with a larger buffer.
func (c *Context) Gen(emit regalloc.Emitter) (err error) {
	defer recoverAbort(&err)

	if c.cfg.EnableLiveness {
		shadow := liveness.NewShadowTemps(c.Context)
		liveness.Pass1(c.Context, c.target.Liveness)
		for liveness.Pass2(c.Context, shadow) {
			liveness.Pass1(c.Context, c.target.Liveness)
		}
	}

	regalloc.Run(c.Context, c.target.RegAlloc, emit)

	if oc, ok := emit.(overflowChecker); ok && oc.Overflowed() {
		return ErrBufferFull
	}
	return nil
}
