// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package amd64 is a concrete x86-64 encoder: the one backend.Target/
// regalloc.Emitter implementation this repo ships. Its register file,
// calling convention, and instruction-encoding primitives are organized
// around this repo's ir.Opcode/regs.R/ir.Cond types.
package amd64

import "github.com/tcgjit/tcgjit/internal/regs"

// System V AMD64 general-purpose register numbering, matching the x86-64
// ModRM/REX.B encoding (0=RAX..7=RDI, 8=R8..15=R15).
const (
	RAX = regs.R(0)
	RCX = regs.R(1)
	RDX = regs.R(2)
	RBX = regs.R(3)
	RSP = regs.R(4)
	RBP = regs.R(5)
	RSI = regs.R(6)
	RDI = regs.R(7)
	R8  = regs.R(8)
	R9  = regs.R(9)
	R10 = regs.R(10)
	R11 = regs.R(11)
	R12 = regs.R(12)
	R13 = regs.R(13)
	R14 = regs.R(14)
	R15 = regs.R(15)

	// RegStackPtr/RegFramePtr name the two registers this backend reserves
	// outright: the hardware stack pointer and the spill-frame base.
	RegStackPtr = RSP
	RegFramePtr = RBP

	// RegCount is the only register the shift-by-register opcodes may read
	// their count from.
	RegCount = RCX
)

// allGPRegs is every general-purpose register this backend knows about,
// before RegStackPtr/RegFramePtr are reserved.
var allGPRegs = regs.Of(RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15)

// reserved is never handed to the allocator: the stack pointer and the
// spill-frame base both have a single fixed meaning throughout a
// translation block.
var reserved = regs.Of(RegStackPtr, RegFramePtr)

// available is every register the allocator may assign to an ordinary
// temp.
var available = allGPRegs.Minus(reserved)

// allocOrder lists caller-saved registers first, matching regalloc.Target
// AllocOrder's doc comment: a spill is needed less often across a call
// this way. Mirrors the System V AMD64 caller-saved/callee-saved split.
var allocOrder = []regs.R{
	RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11, // caller-saved
	RBX, R12, R13, R14, R15, // callee-saved
}

// callClobber is every register the System V AMD64 ABI permits a callee
// to clobber without saving.
var callClobber = regs.Of(RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11)

// callIargRegs/callOargRegs are the System V AMD64 integer argument and
// return-value register orders.
var callIargRegs = []regs.R{RDI, RSI, RDX, RCX, R8, R9}
var callOargRegs = []regs.R{RAX, RDX}
