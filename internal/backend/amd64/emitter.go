// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amd64

import (
	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/regalloc"
	"github.com/tcgjit/tcgjit/internal/regs"
)

// relocRel32 is the only RelocKind this backend ever produces: a 4-byte
// PC-relative displacement, patched once its label resolves.
const relocRel32 ir.RelocKind = 0

// Emitter drives a fixed-capacity code buffer to implement
// regalloc.Emitter for the x86-64 register file declared in amd64.go.
type Emitter struct {
	b *buf
}

// NewEmitter wraps code (len 0, cap the buffer's watermark) as a
// regalloc.Emitter. Overflowed reports, after Run returns, whether any
// write crossed that watermark.
func NewEmitter(code []byte) *Emitter {
	return &Emitter{b: newBuf(code)}
}

// Bytes returns the encoded instruction stream so far.
func (e *Emitter) Bytes() []byte { return e.b.code }

// Overflowed reports whether the code buffer's capacity was exceeded;
// Context.Gen turns this into ErrBufferFull instead of a panic.
func (e *Emitter) Overflowed() bool { return e.b.overflowed }

var _ regalloc.Emitter = (*Emitter)(nil)

func (e *Emitter) Movi(width ir.BaseType, dst regs.R, val uint64) {
	if width == ir.Type32 || val <= 0xffffffff {
		// MOV r32, imm32 (B8+r); on a 64-bit dst this also zero-extends
		// the upper 32 bits, so a value known to fit never needs REX.W.
		putRex(e.b, 0, 0, 0, dst)
		e.b.putByte(0xb8 + byte(dst&7))
		e.b.putInt32(int32(uint32(val)))
		return
	}
	// MOVABS r64, imm64 (REX.W B8+r)
	putRex(e.b, rexW, 0, 0, dst)
	e.b.putByte(0xb8 + byte(dst&7))
	e.b.putInt64(int64(val))
}

func (e *Emitter) Mov(width ir.BaseType, dst, src regs.R) {
	if dst == src {
		return
	}
	// MOV r, r/m (0x8B /r): reads src, writes dst; a 32-bit-width move
	// zero-extends dst's upper bits implicitly, the same encoding Op uses
	// for ir.OpExt32u (which, unlike Mov, is emitted even when dst == src).
	putRex(e.b, rexSize(width), dst, 0, src)
	e.b.putByte(0x8b)
	putModRM(e.b, dst, src)
}

func (e *Emitter) Ld(width ir.BaseType, dst, base regs.R, offset int32) {
	putRex(e.b, rexSize(width), dst, 0, base)
	e.b.putByte(0x8b)
	putIndirectModRM(e.b, dst, base, offset)
}

func (e *Emitter) St(width ir.BaseType, src, base regs.R, offset int32) {
	putRex(e.b, rexSize(width), src, 0, base)
	e.b.putByte(0x89)
	putIndirectModRM(e.b, src, base, offset)
}

// aluOp is one integer ALU opcode's register and immediate encodings:
// <op> r, r/m (RM form, used when the second operand is a register) and
// the /digit extension of opcode 0x81 <op> r/m, imm32 (used when the
// second operand is an accepted immediate).
type aluOp struct {
	rm  byte // one-byte RM-form opcode
	hi  byte // not read by putAlu; every entry uses a one-byte opcode
	ext byte // ModRM /digit for the 0x81 immediate form
}

var aluOps = map[ir.Opcode]aluOp{
	ir.OpAdd: {rm: 0x03, ext: 0},
	ir.OpSub: {rm: 0x2b, ext: 5},
	ir.OpAnd: {rm: 0x23, ext: 4},
	ir.OpOr:  {rm: 0x0b, ext: 1},
	ir.OpXor: {rm: 0x33, ext: 6},
}

func (e *Emitter) putAlu(width ir.BaseType, op aluOp, dst regs.R, src regalloc.Operand) {
	if src.Const {
		putRex(e.b, rexSize(width), 0, 0, dst)
		e.b.putByte(0x81)
		putModRM(e.b, regs.R(op.ext), dst)
		e.b.putInt32(int32(uint32(src.Imm)))
		return
	}
	putRex(e.b, rexSize(width), dst, 0, src.Reg)
	e.b.putByte(op.rm)
	putModRM(e.b, dst, src.Reg)
}

// shiftExt maps each shift opcode to its ModRM /digit extension, used by
// both the by-CL form (0xD3) and the by-immediate form (0xC1).
var shiftExt = map[ir.Opcode]byte{
	ir.OpShl: 4,
	ir.OpShr: 5,
	ir.OpSar: 7,
}

func (e *Emitter) putShift(width ir.BaseType, opc ir.Opcode, dst regs.R, src regalloc.Operand) {
	ext := shiftExt[opc]
	if src.Const {
		putRex(e.b, rexSize(width), 0, 0, dst)
		e.b.putByte(0xc1)
		putModRM(e.b, regs.R(ext), dst)
		e.b.putByte(byte(src.Imm))
		return
	}
	// src.Reg must be RegCount (ArgCt restricts the 'c' constraint to
	// it); the shift count is then taken implicitly from CL.
	putRex(e.b, rexSize(width), 0, 0, dst)
	e.b.putByte(0xd3)
	putModRM(e.b, regs.R(ext), dst)
}

func (e *Emitter) Op(opc ir.Opcode, oargs []regs.R, iargs []regalloc.Operand, cargs []int32) {
	switch opc {
	case ir.OpLd:
		e.Ld(ir.Type64, oargs[0], regs.R(cargs[0]), cargs[1])
		return
	case ir.OpSt:
		e.St(ir.Type64, iargs[0].Reg, regs.R(cargs[0]), cargs[1])
		return
	case ir.OpExt32s:
		// MOVSXD r64, r/m32 (REX.W 0x63 /r)
		putRex(e.b, rexW, oargs[0], 0, iargs[0].Reg)
		e.b.putByte(0x63)
		putModRM(e.b, oargs[0], iargs[0].Reg)
		return
	case ir.OpExt32u:
		// MOV r32, r/m32 (0x8B /r), zero-extending into the upper half;
		// emitted even when both registers match, since that is the
		// instruction that clears the upper bits.
		putRex(e.b, 0, oargs[0], 0, iargs[0].Reg)
		e.b.putByte(0x8b)
		putModRM(e.b, oargs[0], iargs[0].Reg)
		return
	case ir.OpMul:
		if iargs[1].Const {
			// IMUL r32, r/m32, imm32 (0x69 /r id): the three-operand form
			// lets the immediate case skip materializing a register.
			putRex(e.b, 0, oargs[0], 0, oargs[0])
			e.b.putByte(0x69)
			putModRM(e.b, oargs[0], oargs[0])
			e.b.putInt32(int32(uint32(iargs[1].Imm)))
			return
		}
		// IMUL r, r/m (two-byte 0x0F 0xAF /r)
		putRex(e.b, 0, oargs[0], 0, iargs[1].Reg)
		e.b.putByte(0x0f)
		e.b.putByte(0xaf)
		putModRM(e.b, oargs[0], iargs[1].Reg)
		return
	}

	if op, ok := aluOps[opc]; ok {
		e.putAlu(ir.Type64, op, oargs[0], iargs[1])
		return
	}
	if _, ok := shiftExt[opc]; ok {
		e.putShift(ir.Type64, opc, oargs[0], iargs[1])
		return
	}

	ir.Fail(ir.Invariant, "amd64 backend has no encoding for opcode "+opc.String())
}

func (e *Emitter) Call(funcPtr int32) {
	// CALL rel32 (0xE8 id); funcPtr is carried through as an already
	// PC-relative displacement, for a statically-linked helper address.
	e.b.putByte(0xe8)
	e.b.putInt32(funcPtr)
}

func (e *Emitter) branchTo(l *ir.Label, opcode []byte) {
	e.b.putBytes(opcode)
	fieldPos := e.b.pos()
	if l.Resolved() {
		e.b.putInt32(l.Addr() - (fieldPos + 4))
		return
	}
	e.b.putInt32(0) // patched once the label resolves
	l.AddReloc(fieldPos, relocRel32, 0)
}

func (e *Emitter) Branch(l *ir.Label) {
	e.branchTo(l, []byte{0xe9}) // JMP rel32
}

var jccOpcodes = map[ir.Cond][]byte{
	ir.CondEQ:  {0x0f, 0x84}, // JE
	ir.CondNE:  {0x0f, 0x85}, // JNE
	ir.CondLTU: {0x0f, 0x82}, // JB
	ir.CondLEU: {0x0f, 0x86}, // JBE
	ir.CondGTU: {0x0f, 0x87}, // JA
	ir.CondGEU: {0x0f, 0x83}, // JAE
	ir.CondLTS: {0x0f, 0x8c}, // JL
	ir.CondLES: {0x0f, 0x8e}, // JLE
	ir.CondGTS: {0x0f, 0x8f}, // JG
	ir.CondGES: {0x0f, 0x8d}, // JGE
}

func (e *Emitter) BranchCond(cond ir.Cond, a, b regalloc.Operand, l *ir.Label) {
	// CMP a, b first (a is always a register per ir.CoreSpecs[OpBrcond]).
	e.putAlu(ir.Type64, aluOp{rm: 0x3b, ext: 7}, a.Reg, b)

	opcode, ok := jccOpcodes[cond]
	if !ok {
		ir.Fail(ir.Invariant, "unknown branch condition")
	}
	e.branchTo(l, opcode)
}

func (e *Emitter) ResolveLabel(l *ir.Label) {
	addr := e.b.pos()
	for _, p := range l.Set(addr) {
		e.b.patchInt32(p.CodePos, addr-(p.CodePos+4)+p.Addend)
	}
}
