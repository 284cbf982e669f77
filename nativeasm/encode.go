package nativeasm

// Mem is a base+displacement memory operand: [base + disp]. Every memory
// operand nativelower needs is addressed off one register (the args
// pointer, the frame pointer, the result pointer, a thread address) plus a constant
// displacement; there is no indexed addressing in this assembler.
type Mem struct {
	Base Reg
	Disp int32
}

func encodeRex(w bool, r, x, b Reg) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r.needsRex() {
		v |= 0x04
	}
	if x.needsRex() {
		v |= 0x02
	}
	if b.needsRex() {
		v |= 0x01
	}
	return v
}

func needsRex(w bool, regs ...Reg) bool {
	if w {
		return true
	}
	for _, r := range regs {
		if r.needsRex() {
			return true
		}
	}
	return false
}

func emitRexIfNeeded(out []byte, w bool, r, x, b Reg) []byte {
	if needsRex(w, r, x, b) {
		out = append(out, encodeRex(w, r, x, b))
	}
	return out
}

func putModRM(out []byte, mod byte, reg, rm Reg) []byte {
	return append(out, (mod<<6)|((reg.lowBits())<<3)|rm.lowBits())
}

// modRMReg encodes a register-direct operand: ModRM.mod == 11.
func modRMReg(out []byte, reg, rm Reg) []byte {
	return putModRM(out, 3, reg, rm)
}

// modRMMem encodes a [base+disp] memory operand, choosing the minimal
// disp width (0, 8, or 32 bits) and the SIB-escape encoding RSP/R12 need
// as a base register.
func modRMMem(out []byte, reg Reg, m Mem) []byte {
	needsSib := m.Base.lowBits() == RSP.lowBits()

	mod := byte(2) // disp32
	switch {
	case m.Disp == 0 && m.Base.lowBits() != RBP.lowBits():
		mod = 0
	case m.Disp >= -128 && m.Disp <= 127:
		mod = 1
	}

	rm := m.Base
	if needsSib {
		rm = RSP // forces the SIB-escape encoding (rm field == 100)
	}
	out = putModRM(out, mod, reg, rm)
	if needsSib {
		out = append(out, (0<<6)|(4<<3)|m.Base.lowBits()) // scale=1, no index, base=m.Base
	}
	switch mod {
	case 1:
		out = append(out, byte(int8(m.Disp)))
	case 2:
		out = appendInt32(out, m.Disp)
	}
	return out
}

func appendInt32(out []byte, v int32) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendInt64(out []byte, v int64) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// MovRegReg emits mov dst, src (64-bit).
func MovRegReg(out []byte, dst, src Reg) []byte {
	out = emitRexIfNeeded(out, true, src, 0, dst)
	out = append(out, 0x89) // MOV Ev, Gv
	return modRMReg(out, src, dst)
}

// MovRegImm64 emits a 64-bit immediate load: mov dst, imm64.
func MovRegImm64(out []byte, dst Reg, imm int64) []byte {
	out = emitRexIfNeeded(out, true, 0, 0, dst)
	out = append(out, 0xB8+dst.lowBits())
	return appendInt64(out, imm)
}

// MovRegImm32 emits a sign-extended 32-bit immediate load: mov dst, imm32.
func MovRegImm32(out []byte, dst Reg, imm int32) []byte {
	out = emitRexIfNeeded(out, true, 0, 0, dst)
	out = append(out, 0xC7)
	out = modRMReg(out, 0, dst)
	return appendInt32(out, imm)
}

// MovRegMem emits mov dst, [m] (64-bit load).
func MovRegMem(out []byte, dst Reg, m Mem) []byte {
	out = emitRexIfNeeded(out, true, dst, 0, m.Base)
	out = append(out, 0x8B) // MOV Gv, Ev
	return modRMMem(out, dst, m)
}

// MovMemReg emits mov [m], src (64-bit store).
func MovMemReg(out []byte, m Mem, src Reg) []byte {
	out = emitRexIfNeeded(out, true, src, 0, m.Base)
	out = append(out, 0x89) // MOV Ev, Gv
	return modRMMem(out, src, m)
}

// MovByteRegMem emits movzx dst, byte [m] -- zero-extending a single byte
// load, used to fetch the current input character.
func MovByteRegMem(out []byte, dst Reg, m Mem) []byte {
	out = emitRexIfNeeded(out, true, dst, 0, m.Base)
	out = append(out, 0x0F, 0xB6)
	return modRMMem(out, dst, m)
}

// AddRegImm32 emits add dst, imm32.
func AddRegImm32(out []byte, dst Reg, imm int32) []byte {
	out = emitRexIfNeeded(out, true, 0, 0, dst)
	out = append(out, 0x81)
	out = modRMReg(out, 0, dst)
	return appendInt32(out, imm)
}

// SubRegImm32 emits sub dst, imm32.
func SubRegImm32(out []byte, dst Reg, imm int32) []byte {
	out = emitRexIfNeeded(out, true, 0, 0, dst)
	out = append(out, 0x81)
	out = modRMReg(out, 5, dst)
	return appendInt32(out, imm)
}

// CmpRegImm32 emits cmp lhs, imm32.
func CmpRegImm32(out []byte, lhs Reg, imm int32) []byte {
	out = emitRexIfNeeded(out, true, 0, 0, lhs)
	out = append(out, 0x81)
	out = modRMReg(out, 7, lhs)
	return appendInt32(out, imm)
}

// CmpRegReg emits cmp lhs, rhs.
func CmpRegReg(out []byte, lhs, rhs Reg) []byte {
	out = emitRexIfNeeded(out, true, rhs, 0, lhs)
	out = append(out, 0x39) // CMP Ev, Gv
	return modRMReg(out, rhs, lhs)
}

// CmpByteRegImm8 emits an 8-bit cmp al-class register against an
// immediate byte, used to test the fetched character against a literal.
func CmpByteRegImm8(out []byte, lhs Reg, imm byte) []byte {
	if needsRex(false, lhs) {
		out = append(out, encodeRex(false, 0, 0, lhs))
	}
	out = append(out, 0x80)
	out = modRMReg(out, 7, lhs)
	return append(out, imm)
}

// TestRegReg emits test lhs, rhs.
func TestRegReg(out []byte, lhs, rhs Reg) []byte {
	out = emitRexIfNeeded(out, true, rhs, 0, lhs)
	out = append(out, 0x85)
	return modRMReg(out, rhs, lhs)
}

// AndRegImm32 emits and dst, imm32.
func AndRegImm32(out []byte, dst Reg, imm int32) []byte {
	out = emitRexIfNeeded(out, true, 0, 0, dst)
	out = append(out, 0x81)
	out = modRMReg(out, 4, dst)
	return appendInt32(out, imm)
}

// AddRegReg emits add dst, src.
func AddRegReg(out []byte, dst, src Reg) []byte {
	out = emitRexIfNeeded(out, true, src, 0, dst)
	out = append(out, 0x01)
	return modRMReg(out, src, dst)
}

// OrRegReg emits or dst, src.
func OrRegReg(out []byte, dst, src Reg) []byte {
	out = emitRexIfNeeded(out, true, src, 0, dst)
	out = append(out, 0x09)
	return modRMReg(out, src, dst)
}

// XorRegReg emits xor dst, src (used as the canonical zeroing idiom).
func XorRegReg(out []byte, dst, src Reg) []byte {
	out = emitRexIfNeeded(out, true, src, 0, dst)
	out = append(out, 0x31)
	return modRMReg(out, src, dst)
}

// BtsRegReg emits bts dst, src -- bit-test-and-set, carry flag set iff the
// bit was already set. This is the flag bitmap's TEST_AND_SET_FLAG
// primitive when the flag bitmap fits in a single register.
func BtsRegReg(out []byte, dst, src Reg) []byte {
	out = emitRexIfNeeded(out, true, src, 0, dst)
	out = append(out, 0x0F, 0xAB)
	return modRMReg(out, src, dst)
}

// BtsMemReg emits bts [m], src, for a flag bitmap too wide for a single
// register.
func BtsMemReg(out []byte, m Mem, src Reg) []byte {
	out = emitRexIfNeeded(out, true, src, 0, m.Base)
	out = append(out, 0x0F, 0xAB)
	return modRMMem(out, src, m)
}

// BtsRegImm8 emits bts dst, imm8 -- bit-test-and-set against a compile-time
// bit index, the immediate-operand form of BtsRegReg. The carry flag
// receives the bit's prior value, so a Jcc(CondB, ...) immediately after
// tests "was already set".
func BtsRegImm8(out []byte, dst Reg, bit byte) []byte {
	out = emitRexIfNeeded(out, true, 0, 0, dst)
	out = append(out, 0x0F, 0xBA)
	out = modRMReg(out, 5, dst)
	return append(out, bit)
}

// IncMem emits inc qword [m].
func IncMem(out []byte, m Mem) []byte {
	out = emitRexIfNeeded(out, true, 0, 0, m.Base)
	out = append(out, 0xFF)
	return modRMMem(out, 0, m)
}

// JmpReg emits an indirect jump through a register: jmp target. Used to
// enter lowered code at a native address computed at run time (the
// nativeArgs entry address), rather than at a label known when this
// instruction was assembled.
func JmpReg(out []byte, target Reg) []byte {
	out = emitRexIfNeeded(out, false, 0, 0, target)
	out = append(out, 0xFF)
	return modRMReg(out, 4, target)
}

// CallReg emits an indirect call through a register: call target.
func CallReg(out []byte, target Reg) []byte {
	out = emitRexIfNeeded(out, false, 0, 0, target)
	out = append(out, 0xFF)
	return modRMReg(out, 2, target)
}

// PushReg emits push src.
func PushReg(out []byte, src Reg) []byte {
	if src.needsRex() {
		out = append(out, encodeRex(false, 0, 0, src))
	}
	return append(out, 0x50+src.lowBits())
}

// PopReg emits pop dst.
func PopReg(out []byte, dst Reg) []byte {
	if dst.needsRex() {
		out = append(out, encodeRex(false, 0, 0, dst))
	}
	return append(out, 0x58+dst.lowBits())
}

// Ret emits a near return.
func Ret(out []byte) []byte {
	return append(out, 0xC3)
}

// Nop emits a single-byte no-op, used to pad alignment when needed.
func Nop(out []byte) []byte {
	return append(out, 0x90)
}
