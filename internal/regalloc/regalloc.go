// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regalloc implements the forward linear-scan register allocator
// that runs after both liveness passes. It walks the op list exactly once,
// assigning each temp a host register or stack slot and driving an Emitter
// to produce the concrete instruction stream; it never encodes an
// instruction itself.
package regalloc

import (
	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/regs"
)

// Target carries the host facts the allocator needs beyond what an
// ir.Context/ir.OpDefTable already supply.
type Target struct {
	// Available holds, per ir.BaseType, every register the host can use
	// for a value of that width.
	Available [2]regs.Set

	// AllocOrder is the preference order Alloc tries registers in; it
	// should put caller-saved registers first so a spill is needed less
	// often across a call.
	AllocOrder []regs.R

	// Reserved is never handed out (stack pointer, frame pointer, ...).
	Reserved regs.Set

	// CallClobber is freed (spilling if dirty) before every call and
	// before any op flagged ir.CallClobber.
	CallClobber regs.Set

	CallIargRegs []regs.R // argument registers in order; spills to stack beyond this
	CallOargRegs []regs.R // return-value registers in order

	StackReg       regs.R // base register for the outgoing call-argument area
	StackGrowsUp   bool
	StackAlign     int32
	StackOffset    int32 // first outgoing-argument offset from StackReg
	StaticArgsSize int32 // preallocated outgoing-argument area; exceeding it aborts

	FrameReg   regs.R // base register for spill slots
	FrameStart int32
	FrameEnd   int32

	// WordSize is 4 or 8: the spill-slot and call-stack-slot granularity.
	WordSize int32

	// ConstMatch reports whether val (of the given width) is directly
	// encodable as ct's immediate operand, without first materializing it
	// in a register.
	ConstMatch func(val uint64, width ir.BaseType, ct *ir.ArgConstraint) bool
}

// Operand is one resolved input to a non-call instruction: either a host
// register or an immediate the constraint accepted directly.
type Operand struct {
	Reg   regs.R
	Const bool
	Imm   uint64
}

// Emitter is the contract Alloc drives to produce an actual instruction
// stream. A concrete host backend implements it.
type Emitter interface {
	Movi(width ir.BaseType, dst regs.R, val uint64)
	Mov(width ir.BaseType, dst, src regs.R)
	Ld(width ir.BaseType, dst, base regs.R, offset int32)
	St(width ir.BaseType, src, base regs.R, offset int32)

	// Op emits a non-control instruction. oargs are output registers,
	// iargs are resolved inputs, cargs is the op's raw constant trailer
	// (e.g. ld/st's base register and offset) unchanged.
	Op(opc ir.Opcode, oargs []regs.R, iargs []Operand, cargs []int32)

	Call(funcPtr int32)

	// Branch/BranchCond emit a control transfer to l, recording a
	// relocation through l.AddReloc if l is not yet resolved.
	Branch(l *ir.Label)
	BranchCond(cond ir.Cond, a, b Operand, l *ir.Label)

	// ResolveLabel marks l resolved at the current code position and
	// patches every pending relocation l.Set returns.
	ResolveLabel(l *ir.Label)
}
