// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// DummyArg is the sentinel used in a call's input args for ABI alignment
// padding. Liveness treats it as neither live nor dead: it is simply
// skipped.
const DummyArg = -1

// Life packs per-arg "died here" bits and per-output "must sync to memory
// here" bits, as produced by the first liveness pass. Bits 0..15 are
// "died" for arg index 0..15; bits 16..31 are "sync" for output index
// 0..15. 16 args is far beyond anything this op set uses.
type Life uint32

func (l Life) Died(argIndex int) bool { return l&(1<<uint(argIndex)) != 0 }
func (l Life) Sync(outIndex int) bool { return l&(1<<uint(16+outIndex)) != 0 }

// WithDied and WithSync return l with the given bit set; used by package
// liveness while computing an op's Life during the first pass.
func (l Life) WithDied(argIndex int) Life { return l | 1<<uint(argIndex) }
func (l Life) WithSync(outIndex int) Life { return l | 1<<uint(16+outIndex) }

// Op is one three-address micro-operation. It lives in a Context's flat
// Ops slice and is addressed by index; Prev/Next are indices into that
// same slice, index 0 being the sentinel of a circular doubly-linked list.
type Op struct {
	Opcode Opcode
	Prev   int32
	Next   int32

	// Args is laid out [oargs..., iargs..., cargs...] for ordinary ops, or
	// [rets..., inputs..., funcPtr, flags] for OpCall. Args values are Temp
	// indices, except cargs (raw constants/conditions) and a call's
	// funcPtr/flags words.
	Args []int32

	Life Life

	// Callo/Calli are populated only for OpCall: return-value count and
	// passed-argument count.
	Callo int
	Calli int

	// Label is the single label operand of OpSetLabel (the label being
	// resolved), OpBr and OpBrcond (the branch target). Labels are not
	// Temps, so they are carried out-of-band rather than through Args.
	Label *Label

	removed bool // slot retired but never reused within this translation block
}

// OargN/IargN return the op's logical output/input counts, honouring the
// OpCall special layout.
func (op *Op) OargN(def *OpDef) int {
	if op.Opcode == OpCall {
		return op.Callo
	}
	return def.Oargs
}

func (op *Op) IargN(def *OpDef) int {
	if op.Opcode == OpCall {
		return op.Calli
	}
	return def.Iargs
}

// Oarg/Iarg/Carg index into Args using the call-aware layout.
func (op *Op) Oarg(i int) int32 { return op.Args[i] }

func (op *Op) Iarg(def *OpDef, i int) int32 {
	if op.Opcode == OpCall {
		return op.Args[op.Callo+i]
	}
	return op.Args[def.Oargs+i]
}

func (op *Op) Carg(def *OpDef, i int) int32 {
	if op.Opcode == OpCall {
		return op.Args[op.Callo+op.Calli+i]
	}
	return op.Args[def.Oargs+def.Iargs+i]
}

// CallFuncPtr/CallFlags read a call op's trailing two slots.
func (op *Op) CallFuncPtr() int32 { return op.Args[op.Callo+op.Calli] }
func (op *Op) CallFlags() int32   { return op.Args[op.Callo+op.Calli+1] }
