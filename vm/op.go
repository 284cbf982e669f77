package vm

import (
	"fmt"
	"io"
)

// Op is a single bytecode instruction, decoded from a Program's byte
// stream.
//
// Encoding: one opcode byte `[www|ooooo]` where `www` is the 3-bit width
// code of the trailing operand (0/1/2/4 bytes, little-endian, absent for
// width code 0) and `ooooo` is the OpCode.
type Op struct {
	// XP is the code address of the start of this instruction.
	XP uint64

	// Operand is this instruction's single operand value, or 0 if Code
	// takes no operand. Interpretation depends on Code.Meta().Imm.
	Operand uint64

	Code OpCode

	// Len is the total encoded length of this instruction, including the
	// opcode byte. Decoding of the next instruction begins at XP+Len.
	Len uint
}

// String renders a debugging form such as "SPLIT_PASSIVE<12>".
func (op *Op) String() string {
	meta := op.Code.Meta()
	if meta.Imm == ImmNone {
		return meta.Name
	}
	if meta.Imm == ImmCodeOffset {
		return fmt.Sprintf("%s<%d>", meta.Name, u2s(op.Operand))
	}
	return fmt.Sprintf("%s<%d>", meta.Name, op.Operand)
}

// Decode decodes the instruction at code address xp within stream,
// overwriting op's fields. Returns io.EOF if xp is at the end of the
// stream.
func (op *Op) Decode(stream []byte, xp uint64) error {
	if xp >= uint64(len(stream)) {
		return io.EOF
	}

	head := stream[xp]
	code := OpCode(head & 0x1f)
	wcode := (head & 0xe0) >> 5

	width, ok := widthFromCode(wcode)
	if !ok {
		return &DisassembleError{Err: ErrUnknownOpcode, XP: xp}
	}

	meta := code.Meta()
	if meta.Illegal {
		return &DisassembleError{Err: ErrUnknownOpcode, XP: xp}
	}

	wantWidth := meta.Imm != ImmNone
	if wantWidth && width == 0 {
		return &DisassembleError{Err: ErrTruncated, XP: xp}
	}
	if !wantWidth && width != 0 {
		return &DisassembleError{Err: ErrTruncated, XP: xp}
	}

	start := xp + 1
	end := start + uint64(width)
	if end > uint64(len(stream)) {
		return &DisassembleError{Err: io.ErrUnexpectedEOF, XP: xp}
	}

	var operand uint64
	for i, b := range stream[start:end] {
		operand |= uint64(b) << (uint(i) * 8)
	}
	if meta.Imm.signed() && width > 0 {
		signByte := stream[end-1]
		if (signByte & 0x80) == 0x80 {
			for i := width; i < 8; i++ {
				operand |= uint64(0xff) << (uint(i) * 8)
			}
		}
	}

	op.XP = xp
	op.Operand = operand
	op.Code = code
	op.Len = 1 + uint(width)
	return nil
}

// Encode appends the minimal-width encoding of an instruction with the
// given opcode and operand value to dst, returning the extended slice.
func Encode(dst []byte, code OpCode, operand uint64) []byte {
	meta := code.Meta()
	if meta.Imm == ImmNone {
		return append(dst, byte(code))
	}

	width := minimalWidth(operand, meta.Imm.signed())
	dst = append(dst, byte(code)|(widthCode(width)<<5))
	for i := 0; i < width; i++ {
		dst = append(dst, byte(operand>>(uint(i)*8)))
	}
	return dst
}

// EncodeWithWidth is like Encode, but forces a specific operand width
// (used by the fixpoint branch-narrowing pass, which must re-encode a
// branch at a caller-chosen width before it knows the width is final).
func EncodeWithWidth(dst []byte, code OpCode, operand uint64, width int) []byte {
	dst = append(dst, byte(code)|(widthCode(width)<<5))
	for i := 0; i < width; i++ {
		dst = append(dst, byte(operand>>(uint(i)*8)))
	}
	return dst
}

// EncodedLen returns the number of bytes Encode would produce for the given
// operand, without actually encoding it.
func EncodedLen(code OpCode, operand uint64) int {
	meta := code.Meta()
	if meta.Imm == ImmNone {
		return 1
	}
	return 1 + minimalWidth(operand, meta.Imm.signed())
}
