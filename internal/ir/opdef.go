// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import "github.com/tcgjit/tcgjit/internal/regs"

// ArgConstraint is the parsed, target-specific admissibility rule for one
// arg slot of an op, built by package constraints from the per-op
// constraint string.
type ArgConstraint struct {
	Regs         regs.Set // admissible host registers
	AcceptsConst bool     // 'i': may be passed as an immediate
	NewReg       bool     // '&': needs a fresh register, disjoint from inputs
	Alias        bool     // this output is aliased by an input (ALIAS)
	IAlias       bool     // this input aliases an output (IALIAS)
	AliasIndex   int      // for Alias/IAlias: the paired arg's index into Args
}

// OpDef is an Opcode's full metadata for one Context: the target-neutral
// Spec plus the constraints produced by parsing Spec.ConstraintStrings
// against one host backend.
type OpDef struct {
	Spec

	// ArgCt has one entry per output then per input (Oargs+Iargs total),
	// matching the order of Spec.ConstraintStrings.
	ArgCt []ArgConstraint

	// SortedArgs permutes 0..Oargs+Iargs-1 (indices into ArgCt / the
	// oargs+iargs prefix of an Op's Args) so that outputs precede inputs
	// and, within each group, more-constrained args (smaller admissible
	// register set) come first. Ties keep original order (stable sort).
	SortedArgs []int
}

// NArgs is the total argument-vector length for a non-call op: outputs,
// then inputs, then constants.
func (d *OpDef) NArgs() int { return d.Oargs + d.Iargs + d.Cargs }
