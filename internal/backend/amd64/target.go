// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amd64

import (
	"github.com/tcgjit/tcgjit/internal/backend"
	"github.com/tcgjit/tcgjit/internal/call"
	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/liveness"
	"github.com/tcgjit/tcgjit/internal/regalloc"
	"github.com/tcgjit/tcgjit/internal/regs"
)

// parseConstraint is this backend's constraints.TargetParser: 'r' is every
// non-reserved GPR, 'a'/'d'/'c' name the fixed registers the multiply,
// divide, and shift-by-register instructions require.
func parseConstraint(ch byte) (regs.Set, bool) {
	switch ch {
	case 'r':
		return available, true
	case 'a':
		return regs.Of(RAX), true
	case 'd':
		return regs.Of(RDX), true
	case 'c':
		return regs.Of(RegCount), true
	}
	return regs.Empty, false
}

// constMatch reports whether val fits the signed 32-bit immediate field
// every arithmetic/compare instruction this backend emits uses; a wider
// value must be materialized into a register first, matching x86-64's
// opcode encoding (there is no 64-bit-immediate ALU form).
func constMatch(val uint64, width ir.BaseType, ct *ir.ArgConstraint) bool {
	if !ct.AcceptsConst {
		return false
	}
	sval := int64(val)
	return sval >= -0x80000000 && sval <= 0x7fffffff
}

// NewTarget builds the complete backend.Target this package exposes for
// cfg. StaticArgsSize/FrameEnd are sized generously for a single TB's
// helper-call and spill traffic; a front end needing more can construct
// its own backend.Target with larger values.
func NewTarget(cfg backend.Config) backend.Target {
	return backend.Target{
		Constraints: parseConstraint,
		Liveness: liveness.Target{
			HasMuluh: true,
			HasMulsh: true,
		},
		Call: call.Target{
			Width32:      cfg.Width32,
			BigEndian:    cfg.BigEndian,
			RequireAlign: cfg.RequireAlign,
			ExtendArgs:   cfg.ExtendArgs,
		},
		RegAlloc: regalloc.Target{
			Available:      [2]regs.Set{available, available},
			AllocOrder:     allocOrder,
			Reserved:       reserved,
			CallClobber:    callClobber,
			CallIargRegs:   callIargRegs,
			CallOargRegs:   callOargRegs,
			StackReg:       RegStackPtr,
			StackGrowsUp:   cfg.StackGrowsUp,
			StackAlign:     16,
			StackOffset:    0,
			StaticArgsSize: 4096,
			FrameReg:       RegFramePtr,
			FrameStart:     0,
			FrameEnd:       1 << 16,
			WordSize:       8,
			ConstMatch:     constMatch,
		},
	}
}
