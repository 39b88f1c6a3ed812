// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package constraints parses the per-op constraint strings in
// ir.CoreSpecs into a target-specific ir.OpDefTable: admissible register
// sets, alias pairs, and the sorted argument order the allocator walks.
package constraints

import (
	"sort"

	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/regs"
)

// TargetParser resolves one constraint character that isn't a digit, '&',
// or 'i' into the admissible register set it denotes on this host (e.g.
// 'r' -> every general-purpose register, 'a' -> just the accumulator).
// The second return value is false if the host does not recognize ch.
type TargetParser func(ch byte) (set regs.Set, ok bool)

// Build constructs a complete OpDefTable for one host by parsing every
// CoreSpecs constraint string with parse. The returned table is owned by
// the single Context it is installed into; see ir.OpDefTable's doc
// comment.
func Build(parse TargetParser) *ir.OpDefTable {
	table := &ir.OpDefTable{}
	for i := range table.Defs {
		def := &table.Defs[i]
		def.Spec = ir.CoreSpecs[i]
		buildOne(def, parse)
	}
	return table
}

func buildOne(def *ir.OpDef, parse TargetParser) {
	n := def.Oargs + def.Iargs
	def.ArgCt = make([]ir.ArgConstraint, n)

	for i, s := range def.ConstraintStrings {
		isInput := i >= def.Oargs
		var ct ir.ArgConstraint

		for j := 0; j < len(s); j++ {
			ch := s[j]
			switch {
			case ch >= '0' && ch <= '9':
				if !isInput {
					ir.Fail(ir.Invariant, "alias digit used on an output constraint")
				}
				outIdx := int(ch - '0')
				if outIdx >= def.Oargs {
					ir.Fail(ir.Invariant, "alias digit refers to a non-output index")
				}
				// The input inherits the aliased output's full constraint,
				// register class included, then adds the alias linkage on
				// top: the same physical register is used for both, so the
				// admissible set is the output's, not whatever (typically
				// empty) set this input's own constraint string denotes.
				ct = def.ArgCt[outIdx]
				ct.IAlias = true
				ct.AliasIndex = outIdx
				def.ArgCt[outIdx].Alias = true
				def.ArgCt[outIdx].AliasIndex = i

			case ch == '&':
				ct.NewReg = true

			case ch == 'i':
				ct.AcceptsConst = true

			default:
				set, ok := parse(ch)
				if !ok {
					ir.Fail(ir.Invariant, "unrecognized constraint character '"+string(ch)+"'")
				}
				ct.Regs = ct.Regs.Union(set)
			}
		}

		def.ArgCt[i] = ct
	}

	def.SortedArgs = sortedArgs(def)
}

// sortedArgs orders outputs, then inputs, each group ascending by
// admissible-register-set size (scarcer first), ties broken by original
// position.
func sortedArgs(def *ir.OpDef) []int {
	out := make([]int, def.Oargs)
	for i := range out {
		out[i] = i
	}
	in := make([]int, def.Iargs)
	for i := range in {
		in[i] = def.Oargs + i
	}

	sort.SliceStable(out, func(a, b int) bool {
		return def.ArgCt[out[a]].Regs.Count() < def.ArgCt[out[b]].Regs.Count()
	})
	sort.SliceStable(in, func(a, b int) bool {
		return def.ArgCt[in[a]].Regs.Count() < def.ArgCt[in[b]].Regs.Count()
	})

	return append(out, in...)
}
