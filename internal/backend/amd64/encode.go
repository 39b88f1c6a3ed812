// Copyright (c) 2024 The TCG-JIT Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amd64

import (
	"encoding/binary"

	"github.com/tcgjit/tcgjit/internal/ir"
	"github.com/tcgjit/tcgjit/internal/regs"
)

// REX prefix bits.
const (
	rexBase = 0x40
	rexW    = rexBase | (1 << 3)
	rexR    = rexBase | (1 << 2)
	rexX    = rexBase | (1 << 1)
	rexB    = rexBase | (1 << 0)
)

// ModRM mod field values.
const (
	modMem       = byte(0x00)
	modMemDisp8  = byte(0x40)
	modMemDisp32 = byte(0x80)
	modReg       = byte(0xc0)
)

// buf is a fixed-capacity code buffer with a retryable high-water mark:
// once pos would cross limit, writes are discarded (not appended to a
// growing slice) and overflowed latches true, for Context.Gen to turn
// into ErrBufferFull without touching the ir.Context's op list.
type buf struct {
	code      []byte
	limit     int
	overflowed bool
}

func newBuf(code []byte) *buf {
	return &buf{code: code[:0], limit: cap(code)}
}

func (b *buf) pos() int32 { return int32(len(b.code)) }

func (b *buf) putByte(v byte) {
	if len(b.code) >= b.limit {
		b.overflowed = true
		return
	}
	b.code = append(b.code, v)
}

func (b *buf) putBytes(v []byte) {
	for _, c := range v {
		b.putByte(c)
	}
}

func (b *buf) putInt32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	b.putBytes(tmp[:])
}

func (b *buf) putInt64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.putBytes(tmp[:])
}

// patchInt32 overwrites an already-emitted 32-bit field, used for
// relocation fixup once a label resolves.
func (b *buf) patchInt32(pos int32, v int32) {
	binary.LittleEndian.PutUint32(b.code[pos:pos+4], uint32(v))
}

// rexSize returns the REX.W bit for a 64-bit-width op; a 32-bit op needs
// no REX.W (its default operand size already is 32 bits).
func rexSize(width ir.BaseType) byte {
	if width == ir.Type64 {
		return rexW
	}
	return 0
}

// putRex emits a REX prefix if rex or any register field overflows the
// low 3-bit ModRM/SIB encoding, adapted from insn.go's putRex.
func putRex(b *buf, rex byte, ro, index, rmOrBase regs.R) {
	if ro >= 8 {
		rex |= rexR
	}
	if index >= 8 {
		rex |= rexX
	}
	if rmOrBase >= 8 {
		rex |= rexB
	}
	if rex != 0 {
		b.putByte(rex)
	}
}

// putModRM emits the ModRM byte for a register-direct operand pair.
func putModRM(b *buf, ro, rm regs.R) {
	b.putByte(modReg | (byte(ro&7) << 3) | byte(rm&7))
}

// dispMod picks the smallest ModRM disp encoding that can hold offset,
// forcing a disp8/disp32 (never disp0) when base is RBP/R13, whose
// disp-less encoding is reserved for RIP-relative addressing.
func dispMod(base regs.R, offset int32) byte {
	switch {
	case offset == 0 && (base&7) != 5:
		return modMem
	case offset >= -0x80 && offset < 0x80:
		return modMemDisp8
	default:
		return modMemDisp32
	}
}

func putDisp(b *buf, mod byte, offset int32) {
	switch mod {
	case modMemDisp8:
		b.putByte(byte(int8(offset)))
	case modMemDisp32:
		b.putInt32(offset)
	}
}

// putIndirectModRM emits the ModRM (and, for RSP/R12 bases, the SIB byte
// every x86-64 encoding needs whenever the base register's low 3 bits are
// 100) plus displacement for a [base+disp] memory operand.
func putIndirectModRM(b *buf, ro, base regs.R, disp int32) {
	mod := dispMod(base, disp)
	if base&7 == 4 {
		b.putByte(mod | (byte(ro&7) << 3) | 0x4)
		b.putByte(0x24) // SIB: scale=0, index=none, base=RSP/R12
	} else {
		b.putByte(mod | (byte(ro&7) << 3) | byte(base&7))
	}
	putDisp(b, mod, disp)
}
