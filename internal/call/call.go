// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package call lowers a logical helper-function call — a function
// pointer, an optional return value, and a vector of arguments, each
// possibly 64 bits wide — into a single ir.OpCall with an ABI-correct
// args[] layout.
package call

import "github.com/tcgjit/tcgjit/internal/ir"

// Target carries the few host-ABI facts call lowering needs. It does not
// need a full backend.Target: only register width, endianness, and two
// ABI quirks toggle different lowering behavior.
type Target struct {
	Width32 bool // host integer registers are 32 bits wide
	BigEndian bool

	// RequireAlign requests a dummy arg before a 64-bit argument that
	// would otherwise start at an odd slot, so it lands on an even
	// (pair-aligned) boundary.
	RequireAlign bool

	// ExtendArgs requests that every sub-word (32-bit) argument be
	// widened to 64 bits with an explicit ext32s/ext32u before the call,
	// for hosts whose calling convention does not implicitly sign/zero
	// extend register arguments.
	ExtendArgs bool
}

// Arg is one logical call argument (or the logical return value) before
// lowering. Is64 selects the argument's logical width. Lo is always the
// temp index that holds the value (or its low half). Hi is the high-half
// temp index and is consulted only when Is64 is true and Target.Width32
// is true; otherwise it is ignored and callers may leave it as
// ir.DummyArg. Signed is consulted only when the argument is widened by
// Target.ExtendArgs (i.e. when Is64 is false and the host is 64-bit with
// ExtendArgs set).
type Arg struct {
	Lo, Hi int32
	Is64   bool
	Signed bool
}

// Lower appends an ir.OpCall to c implementing the call (funcPtr, flags)
// with the given return value (ret, used only if hasRet) and args, laid
// out the way the host ABI requires. It returns the new op's index.
func Lower(c *ir.Context, target Target, hasRet bool, ret Arg, funcPtr int32, flags int32, args []Arg) int32 {
	var out []int32
	callo := 0

	if hasRet {
		if target.Width32 && ret.Is64 {
			lo, hi := ret.Lo, ret.Hi
			if target.BigEndian {
				lo, hi = hi, lo
			}
			out = append(out, lo, hi)
			callo = 2
		} else {
			out = append(out, ret.Lo)
			callo = 1
		}
	}

	calli := 0
	for _, a := range args {
		if target.Width32 && a.Is64 {
			if target.RequireAlign && calli%2 == 1 {
				out = append(out, ir.DummyArg)
				calli++
			}
			lo, hi := a.Lo, a.Hi
			if target.BigEndian {
				lo, hi = hi, lo
			}
			out = append(out, lo, hi)
			calli += 2
			continue
		}

		arg := a.Lo
		if !target.Width32 && target.ExtendArgs && !a.Is64 {
			arg = extend(c, a)
		}
		out = append(out, arg)
		calli++
	}

	out = append(out, funcPtr, flags)

	idx := c.Append(ir.OpCall, out)
	op := c.OpAt(idx)
	op.Callo = callo
	op.Calli = calli
	return idx
}

// extend widens a as a sub-word argument into a fresh 64-bit temp with an
// explicit ext32s/ext32u op, returning the new temp's index.
func extend(c *ir.Context, a Arg) int32 {
	tmp := c.TempNew(ir.Type64, false)
	opc := ir.OpExt32u
	if a.Signed {
		opc = ir.OpExt32s
	}
	c.Append(opc, []int32{int32(tmp.Index), a.Lo})
	return int32(tmp.Index)
}
