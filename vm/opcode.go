package vm

import (
	"fmt"
	"sort"
)

// OpCode identifies which bytecode instruction to perform. The low 5 bits
// of the encoded instruction byte hold the OpCode; the high 3 bits hold the
// encoded width of the instruction's single operand, if any.
type OpCode uint8

const (
	// OpCHARACTER matches one literal byte, carried directly as the
	// operand (not a table index).
	OpCHARACTER OpCode = iota

	// OpCHAR_CLASS matches one byte against an interned byteclass.Class,
	// referenced by table index.
	OpCHAR_CLASS

	// OpBUILTIN_CHAR_CLASS matches one byte against a builtin
	// byteclass.Builtin, referenced by its enum value.
	OpBUILTIN_CHAR_CLASS

	// Anchor opcodes carry no operand.
	OpBOF // start-of-input
	OpEOF // end-of-input
	OpBOL // start-of-line
	OpEOL // end-of-line
	OpWB  // word-boundary
	OpNWB // non-word-boundary

	// OpJUMP unconditionally transfers control to XP + operand, the
	// operand measured from the byte immediately following it.
	OpJUMP

	// OpSPLIT_PASSIVE forks a lower-priority thread at XP + operand and
	// continues the current thread at the following instruction (the
	// fall-through branch is active).
	OpSPLIT_PASSIVE

	// OpSPLIT_EAGER forks a lower-priority thread at the following
	// instruction and continues the current thread at XP + operand (the
	// jump target is active).
	OpSPLIT_EAGER

	// OpSPLIT_BACKWARDS_PASSIVE and OpSPLIT_BACKWARDS_EAGER are the same
	// pair of splits used to close a loop body; their operand is
	// conventionally a backward (negative) displacement.
	OpSPLIT_BACKWARDS_PASSIVE
	OpSPLIT_BACKWARDS_EAGER

	// OpWRITE_POINTER records the current input position into pointer
	// slot `operand` of the executing thread.
	OpWRITE_POINTER

	// OpTEST_AND_SET_FLAG aborts the current thread if flag bit
	// `operand` was already set this iteration, and sets it otherwise.
	OpTEST_AND_SET_FLAG

	numOpCodes
)

// ImmType describes how an opcode's single operand, if present, is
// interpreted.
type ImmType uint8

const (
	// ImmNone says the opcode carries no operand.
	ImmNone ImmType = iota

	// ImmByte says the operand is a literal byte value.
	ImmByte

	// ImmClassIdx says the operand is an index into the program's class
	// table.
	ImmClassIdx

	// ImmBuiltin says the operand is a byteclass.Builtin tag.
	ImmBuiltin

	// ImmCodeOffset says the operand is a *signed* displacement, measured
	// from the byte immediately after the operand.
	ImmCodeOffset

	// ImmSlotIdx says the operand is an unsigned pointer-slot index.
	ImmSlotIdx

	// ImmFlagIdx says the operand is an unsigned flag-bit index.
	ImmFlagIdx
)

func (t ImmType) signed() bool {
	return t == ImmCodeOffset
}

// OpMeta describes an OpCode: its mnemonic and how to interpret its
// operand, if any.
type OpMeta struct {
	Code    OpCode
	Name    string
	Imm     ImmType
	Illegal bool
}

var opMeta = [numOpCodes]OpMeta{
	OpCHARACTER:               {OpCHARACTER, "CHARACTER", ImmByte, false},
	OpCHAR_CLASS:              {OpCHAR_CLASS, "CHAR_CLASS", ImmClassIdx, false},
	OpBUILTIN_CHAR_CLASS:      {OpBUILTIN_CHAR_CLASS, "BUILTIN_CHAR_CLASS", ImmBuiltin, false},
	OpBOF:                     {OpBOF, "BOF", ImmNone, false},
	OpEOF:                     {OpEOF, "EOF", ImmNone, false},
	OpBOL:                     {OpBOL, "BOL", ImmNone, false},
	OpEOL:                     {OpEOL, "EOL", ImmNone, false},
	OpWB:                      {OpWB, "WB", ImmNone, false},
	OpNWB:                     {OpNWB, "NWB", ImmNone, false},
	OpJUMP:                    {OpJUMP, "JUMP", ImmCodeOffset, false},
	OpSPLIT_PASSIVE:           {OpSPLIT_PASSIVE, "SPLIT_PASSIVE", ImmCodeOffset, false},
	OpSPLIT_EAGER:             {OpSPLIT_EAGER, "SPLIT_EAGER", ImmCodeOffset, false},
	OpSPLIT_BACKWARDS_PASSIVE: {OpSPLIT_BACKWARDS_PASSIVE, "SPLIT_BACKWARDS_PASSIVE", ImmCodeOffset, false},
	OpSPLIT_BACKWARDS_EAGER:   {OpSPLIT_BACKWARDS_EAGER, "SPLIT_BACKWARDS_EAGER", ImmCodeOffset, false},
	OpWRITE_POINTER:           {OpWRITE_POINTER, "WRITE_POINTER", ImmSlotIdx, false},
	OpTEST_AND_SET_FLAG:       {OpTEST_AND_SET_FLAG, "TEST_AND_SET_FLAG", ImmFlagIdx, false},
}

func init() {
	assert(sort.IsSorted(byCode(opMeta[:])), "opMeta must be sorted by OpCode")
}

type byCode []OpMeta

func (x byCode) Len() int           { return len(x) }
func (x byCode) Less(i, j int) bool { return x[i].Code < x[j].Code }
func (x byCode) Swap(i, j int)      { x[i], x[j] = x[j], x[i] }

// Meta returns the metadata for c, or a synthesized "illegal" entry if c is
// out of range.
func (c OpCode) Meta() *OpMeta {
	if int(c) < len(opMeta) {
		return &opMeta[c]
	}
	return &OpMeta{Code: c, Illegal: true, Name: fmt.Sprintf("ILLEGAL#%02x", byte(c))}
}

func (c OpCode) String() string {
	return c.Meta().Name
}

// widthCode packs an encoded operand length (0/1/2/4 bytes) into the 3-bit
// field stored in the high bits of the instruction byte.
func widthCode(n int) byte {
	switch n {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	case 4:
		return 3
	}
	panic("invalid operand width")
}

// widthFromCode is the inverse of widthCode; ok is false for reserved codes.
func widthFromCode(w byte) (n int, ok bool) {
	switch w {
	case 0:
		return 0, true
	case 1:
		return 1, true
	case 2:
		return 2, true
	case 3:
		return 4, true
	}
	return 0, false
}

// minimalWidth returns the smallest width in {1, 2, 4} able to hold v,
// given whether the field is signed.
func minimalWidth(v uint64, signed bool) int {
	if !signed {
		switch {
		case v <= 0xff:
			return 1
		case v <= 0xffff:
			return 2
		default:
			return 4
		}
	}
	s := u2s(v)
	switch {
	case s >= -0x80 && s < 0x80:
		return 1
	case s >= -0x8000 && s < 0x8000:
		return 2
	default:
		return 4
	}
}
