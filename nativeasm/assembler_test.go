package nativeasm

import "testing"

func TestAssembler_ShortJumpForward(t *testing.T) {
	a := NewAssembler()
	end := a.NewLabel()
	a.Jmp(end)
	a.Emit(MovRegImm32(nil, RAX, 1))
	a.Bind(end)
	a.Emit(Ret(nil))

	code, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	// jmp rel8 (2 bytes) + mov rax,1 (via REX.W+C7+modrm+imm32 = 7 bytes) + ret (1 byte)
	if len(code) != 2+7+1 {
		t.Fatalf("got %d bytes, want %d: % x", len(code), 2+7+1, code)
	}
	if code[0] != 0xEB || code[1] != 7 {
		t.Fatalf("expected short jmp +7, got % x", code[:2])
	}
}

func TestAssembler_WidensWhenTargetTooFar(t *testing.T) {
	a := NewAssembler()
	end := a.NewLabel()
	a.Jmp(end)
	for i := 0; i < 40; i++ {
		a.Emit(MovRegImm32(nil, RAX, int32(i)))
	}
	a.Bind(end)
	a.Emit(Ret(nil))

	code, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if code[0] != 0xE9 {
		t.Fatalf("expected near (rel32) jmp once the body exceeds 127 bytes, got opcode %#x", code[0])
	}
}

func TestAssembler_BackwardJumpShort(t *testing.T) {
	a := NewAssembler()
	top := a.NewLabel()
	a.Bind(top)
	a.Emit(MovRegImm32(nil, RAX, 0))
	a.Jmp(top)

	code, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if code[len(code)-2] != 0xEB {
		t.Fatalf("expected a short backward jmp, got tail % x", code[len(code)-2:])
	}
	disp := int8(code[len(code)-1])
	if disp != -9 {
		t.Fatalf("got displacement %d, want -9 (back over the 7-byte mov and the 2-byte jmp itself)", disp)
	}
}

func TestAssembler_JccAndCallAndLea(t *testing.T) {
	a := NewAssembler()
	destroy := a.NewLabel()
	a.Jcc(CondE, destroy)
	a.Call(destroy)
	a.LeaLabel(RAX, destroy)
	a.Bind(destroy)
	a.Emit(Ret(nil))

	code, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if code[0] != 0x70+byte(CondE) {
		t.Fatalf("expected short jcc, got %#x", code[0])
	}
}

func TestEncode_MovRegRegRequiresRexW(t *testing.T) {
	code := MovRegReg(nil, RBX, RAX)
	if len(code) != 3 {
		t.Fatalf("got %d bytes, want 3 (REX.W + opcode + modrm): % x", len(code), code)
	}
	if code[0]&0xF8 != 0x48 {
		t.Fatalf("expected a REX.W prefix, got %#x", code[0])
	}
}

func TestEncode_ExtendedRegisterSetsRexB(t *testing.T) {
	code := MovRegReg(nil, R8, RAX)
	if code[0]&0x01 == 0 {
		t.Fatalf("expected REX.B set when rm is r8, got REX byte %#x", code[0])
	}
}

func TestEncode_CmpByteRegImm8(t *testing.T) {
	code := CmpByteRegImm8(nil, RAX, 'x')
	// al needs no REX: opcode(1) + modrm(1) + imm8(1)
	if len(code) != 3 {
		t.Fatalf("got %d bytes, want 3: % x", len(code), code)
	}
	if code[len(code)-1] != 'x' {
		t.Fatalf("immediate byte mismatch: got %#x, want 'x'", code[len(code)-1])
	}
}
