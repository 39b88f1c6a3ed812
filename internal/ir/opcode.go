// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// Opcode names one kind of three-address micro-operation. The set below is
// the architecture-neutral core a front end targets; it is intentionally
// small. New opcodes are added by extending this list and the matching
// entry in CoreSpecs.
type Opcode int

const (
	OpSetLabel Opcode = iota // pseudo-op: basic-block end, resolves a label
	OpDiscard                // explicit temp death marker, no side effects
	OpMovi                   // constant load
	OpMov                    // register-to-register copy
	OpAdd
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpSar
	OpAdd2  // wide (64-on-32-bit-host) add: outputs lo,hi; inputs aLo,aHi,bLo,bHi
	OpSub2
	OpMulu2 // wide unsigned multiply: outputs lo,hi
	OpMuls2 // wide signed multiply
	OpMuluh // narrow unsigned multiply-high (peephole target of Mulu2)
	OpMulsh // narrow signed multiply-high (peephole target of Muls2)
	OpExt32s
	OpExt32u
	OpLd
	OpSt
	OpBr     // unconditional branch
	OpBrcond // conditional branch
	OpCall

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpSetLabel: "set_label",
	OpDiscard:  "discard",
	OpMovi:     "movi",
	OpMov:      "mov",
	OpAdd:      "add",
	OpSub:      "sub",
	OpMul:      "mul",
	OpAnd:      "and",
	OpOr:       "or",
	OpXor:      "xor",
	OpShl:      "shl",
	OpShr:      "shr",
	OpSar:      "sar",
	OpAdd2:     "add2",
	OpSub2:     "sub2",
	OpMulu2:    "mulu2",
	OpMuls2:    "muls2",
	OpMuluh:    "muluh",
	OpMulsh:    "mulsh",
	OpExt32s:   "ext32s",
	OpExt32u:   "ext32u",
	OpLd:       "ld",
	OpSt:       "st",
	OpBr:       "br",
	OpBrcond:   "brcond",
	OpCall:     "call",
}

func (o Opcode) String() string {
	if o >= 0 && int(o) < len(opcodeNames) && opcodeNames[o] != "" {
		return opcodeNames[o]
	}
	return "op?"
}

// Flags are per-opcode behavioural metadata bits.
type Flags uint16

const (
	SideEffects Flags = 1 << iota
	BBEnd
	CallClobber
	NoReadGlobals
	NoWriteGlobals
	Is64Bit
	NotPresent
)

// Spec is the target-independent portion of an op-def: argument counts and
// behavioural flags. The target-specific portion (admissible registers,
// alias pairs, sorted order) is added by package constraints into an OpDef.
type Spec struct {
	Opcode Opcode
	Oargs  int
	Iargs  int
	Cargs  int
	Flags  Flags
	// ConstraintStrings has one entry per output then per input (Oargs+Iargs
	// total); package constraints parses each string into an ArgConstraint.
	ConstraintStrings []string
}

// CoreSpecs are the Spec entries for every Opcode defined above. The op set
// is closed and architecture-neutral; a front end never adds guest-specific
// opcodes to this table.
var CoreSpecs = [numOpcodes]Spec{
	OpSetLabel: {Opcode: OpSetLabel, Flags: BBEnd},
	OpDiscard:  {Opcode: OpDiscard, Iargs: 1, ConstraintStrings: []string{"r"}},
	// Movi's constant is a carg (args[1]), not a temp reference.
	OpMovi: {Opcode: OpMovi, Oargs: 1, Cargs: 1, ConstraintStrings: []string{"r"}},
	OpMov:      {Opcode: OpMov, Oargs: 1, Iargs: 1, ConstraintStrings: []string{"r", "r"}},
	OpAdd:      {Opcode: OpAdd, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"r", "0", "ri"}},
	OpSub:      {Opcode: OpSub, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"r", "0", "ri"}},
	OpMul:      {Opcode: OpMul, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"r", "0", "ri"}},
	OpAnd:      {Opcode: OpAnd, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"r", "0", "ri"}},
	OpOr:       {Opcode: OpOr, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"r", "0", "ri"}},
	OpXor:      {Opcode: OpXor, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"r", "0", "ri"}},
	OpShl:      {Opcode: OpShl, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"r", "0", "ci"}},
	OpShr:      {Opcode: OpShr, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"r", "0", "ci"}},
	OpSar:      {Opcode: OpSar, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"r", "0", "ci"}},
	OpAdd2:     {Opcode: OpAdd2, Oargs: 2, Iargs: 4, Flags: Is64Bit, ConstraintStrings: []string{"r", "r", "0", "1", "ri", "ri"}},
	OpSub2:     {Opcode: OpSub2, Oargs: 2, Iargs: 4, Flags: Is64Bit, ConstraintStrings: []string{"r", "r", "0", "1", "ri", "ri"}},
	OpMulu2:    {Opcode: OpMulu2, Oargs: 2, Iargs: 2, Flags: Is64Bit, ConstraintStrings: []string{"a", "d", "a", "r"}},
	OpMuls2:    {Opcode: OpMuls2, Oargs: 2, Iargs: 2, Flags: Is64Bit, ConstraintStrings: []string{"a", "d", "a", "r"}},
	OpMuluh:    {Opcode: OpMuluh, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"d", "a", "r"}},
	OpMulsh:    {Opcode: OpMulsh, Oargs: 1, Iargs: 2, ConstraintStrings: []string{"d", "a", "r"}},
	OpExt32s:   {Opcode: OpExt32s, Oargs: 1, Iargs: 1, Flags: Is64Bit, ConstraintStrings: []string{"r", "r"}},
	OpExt32u:   {Opcode: OpExt32u, Oargs: 1, Iargs: 1, Flags: Is64Bit, ConstraintStrings: []string{"r", "r"}},
	// Ld/St address their memory operand as two cargs (a raw host base
	// register plus a byte offset) rather than through a temp, since the
	// base is always either a global's fixed register or a spilled temp's
	// stack-slot register — never a dynamically computed address.
	OpLd: {Opcode: OpLd, Oargs: 1, Cargs: 2, ConstraintStrings: []string{"r"}},
	OpSt: {Opcode: OpSt, Iargs: 1, Cargs: 2, ConstraintStrings: []string{"r"}},
	OpBr:       {Opcode: OpBr, Flags: BBEnd},
	OpBrcond:   {Opcode: OpBrcond, Iargs: 2, Cargs: 1, Flags: BBEnd, ConstraintStrings: []string{"r", "ri"}},
	OpCall:     {Opcode: OpCall, Flags: SideEffects | CallClobber},
}
