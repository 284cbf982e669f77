package nativelower

import (
	"fmt"
	"io"

	"github.com/as3richa/crex-sub000/nativeasm"
	"github.com/as3richa/crex-sub000/vm"
)

// maxRegisterFlags is the largest FlagCount this backend can lower
// TEST_AND_SET_FLAG for: regFlags holds the whole per-iteration flag
// bitmap in one 64-bit register, per convention.go.
const maxRegisterFlags = 64

// Program is a lowered, runnable native step function: an executable
// code buffer plus the bytecode-offset-to-native-offset table run.go
// needs to resume a parked or forked thread at the right place.
type Program struct {
	Code   []byte
	labels map[uint64]int
	buf    *nativeasm.CodeBuffer
}

// OffsetForIP returns the native code offset corresponding to bytecode
// offset ip, relative to the start of Code. ip must be the start of an
// instruction, len(prog.Bytes) (the implicit end-of-program address), or
// a value previously reported via nativeResult.resultVal1 for
// outcomeSplit.
func (p *Program) OffsetForIP(ip uint64) (int, error) {
	off, ok := p.labels[ip]
	if !ok {
		return 0, fmt.Errorf("nativelower: no native code at bytecode offset %d", ip)
	}
	return off, nil
}

// Close releases the executable mapping backing p. Must be called
// exactly once.
func (p *Program) Close() error {
	if p.buf == nil {
		return nil
	}
	err := p.buf.Close()
	p.buf = nil
	return err
}

// Lower compiles prog's per-thread instruction walk to x86-64 machine
// code, per the package doc comment's scope: every instruction is
// lowered except that a SPLIT always hands control back to Go rather
// than forking inline. Returns an error if prog needs more flag bits than
// this backend's register-resident bitmap can hold; the caller should
// fall back to the portable executor in that case.
func Lower(prog *vm.Program) (*Program, error) {
	if prog.FlagCount > maxRegisterFlags {
		return nil, fmt.Errorf("nativelower: program needs %d flag bits, exceeds the %d this backend supports", prog.FlagCount, maxRegisterFlags)
	}

	offsets, err := instructionOffsets(prog)
	if err != nil {
		return nil, err
	}

	asm := nativeasm.NewAssembler()

	labels := make(map[uint64]*nativeasm.Label, len(offsets)+1)
	for _, ip := range offsets {
		labels[ip] = asm.NewLabel()
	}
	endIP := uint64(len(prog.Bytes))
	matchLabel := asm.NewLabel()
	labels[endIP] = matchLabel

	dieLabel := asm.NewLabel()
	epilogueLabel := asm.NewLabel()

	emitPrologue(asm)

	var op vm.Op
	for _, ip := range offsets {
		if err := op.Decode(prog.Bytes, ip); err != nil {
			return nil, err
		}
		asm.Bind(labels[ip])
		if err := emitInstruction(asm, &op, labels, dieLabel, epilogueLabel); err != nil {
			return nil, err
		}
	}

	asm.Bind(matchLabel)
	emitFreeAndExit(asm, epilogueLabel, outcomeMatched, 0)

	asm.Bind(dieLabel)
	emitFreeAndExit(asm, epilogueLabel, outcomeDied, 0)

	asm.Bind(epilogueLabel)
	emitEpilogue(asm)

	code, err := asm.Assemble()
	if err != nil {
		return nil, err
	}

	buf, err := nativeasm.NewCodeBuffer(len(code))
	if err != nil {
		return nil, err
	}
	if err := buf.Write(code); err != nil {
		buf.Close()
		return nil, err
	}

	offsetByIP := make(map[uint64]int, len(labels))
	for ip, l := range labels {
		off, err := asm.LabelOffset(l)
		if err != nil {
			buf.Close()
			return nil, err
		}
		offsetByIP[ip] = off
	}

	final, err := buf.Finalize()
	if err != nil {
		buf.Close()
		return nil, err
	}

	return &Program{Code: final, labels: offsetByIP, buf: buf}, nil
}

// instructionOffsets decodes prog start to finish, returning the
// bytecode offset of every instruction in order. Mirrors the decode loop
// vm.Program.NumInstructions and Disassemble both use.
func instructionOffsets(prog *vm.Program) ([]uint64, error) {
	var offsets []uint64
	var op vm.Op
	var xp uint64
	for {
		err := op.Decode(prog.Bytes, xp)
		if err == io.EOF {
			return offsets, nil
		}
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, xp)
		xp += uint64(op.Len)
	}
}

// branchTarget mirrors executor.branchTarget: a branch's operand is a
// signed displacement measured from the byte immediately following the
// instruction.
func branchTarget(ip uint64, op *vm.Op) uint64 {
	instrEnd := ip + uint64(op.Len)
	return uint64(int64(instrEnd) + int64(op.Operand))
}

func emitPrologue(asm *nativeasm.Assembler) {
	for _, r := range calleeSaved {
		asm.Emit(nativeasm.PushReg(nil, r))
	}
	asm.Emit(nativeasm.MovRegReg(nil, nativeasm.RBP, nativeasm.RSP))
	asm.Emit(nativeasm.SubRegImm32(nil, nativeasm.RSP, frameSize))

	args := nativeasm.RDI // SysV's sole incoming integer argument

	asm.Emit(nativeasm.MovRegMem(nil, regCtxBase, nativeasm.Mem{Base: args, Disp: offCtxBase}))
	asm.Emit(nativeasm.MovRegMem(nil, regBump, nativeasm.Mem{Base: args, Disp: offBump}))
	asm.Emit(nativeasm.MovRegMem(nil, regFreelist, nativeasm.Mem{Base: args, Disp: offFreelist}))
	asm.Emit(nativeasm.MovRegMem(nil, regFlags, nativeasm.Mem{Base: args, Disp: offFlags}))
	asm.Emit(nativeasm.MovRegMem(nil, regBuiltinTable, nativeasm.Mem{Base: args, Disp: offBuiltinTable}))
	asm.Emit(nativeasm.MovRegMem(nil, regThread, nativeasm.Mem{Base: args, Disp: offThread}))
	asm.Emit(nativeasm.MovRegMem(nil, regChar, nativeasm.Mem{Base: args, Disp: offChar}))
	asm.Emit(nativeasm.MovRegMem(nil, regPrevChar, nativeasm.Mem{Base: args, Disp: offPrevChar}))
	asm.Emit(nativeasm.MovRegMem(nil, regResult, nativeasm.Mem{Base: args, Disp: offResultPtr}))

	asm.Emit(nativeasm.MovRegMem(nil, regScratch, nativeasm.Mem{Base: args, Disp: offPos}))
	asm.Emit(nativeasm.MovMemReg(nil, nativeasm.Mem{Base: nativeasm.RBP, Disp: frameAtPos}, regScratch))

	asm.Emit(nativeasm.MovRegMem(nil, regScratch, nativeasm.Mem{Base: args, Disp: offSlotCount}))
	asm.Emit(nativeasm.MovMemReg(nil, nativeasm.Mem{Base: nativeasm.RBP, Disp: frameSlotCount}, regScratch))

	// Load the dispatch target before the final field load clobbers args
	// (== regClassTable).
	asm.Emit(nativeasm.MovRegMem(nil, regScratch, nativeasm.Mem{Base: args, Disp: offEntryAddr}))
	asm.Emit(nativeasm.MovRegMem(nil, regClassTable, nativeasm.Mem{Base: args, Disp: offClassTable}))

	asm.Emit(nativeasm.JmpReg(nil, regScratch))
}

func emitEpilogue(asm *nativeasm.Assembler) {
	asm.Emit(nativeasm.MovMemReg(nil, nativeasm.Mem{Base: regResult, Disp: offResultFreelist}, regFreelist))
	asm.Emit(nativeasm.MovMemReg(nil, nativeasm.Mem{Base: regResult, Disp: offResultFlags}, regFlags))
	asm.Emit(nativeasm.MovRegReg(nil, nativeasm.RSP, nativeasm.RBP))
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		asm.Emit(nativeasm.PopReg(nil, calleeSaved[i]))
	}
	asm.Emit(nativeasm.Ret(nil))
}

// emitThreadAddr computes ctxBase+thread (a thread handle is a byte
// offset, not a pointer, per arena's design) into dst.
func emitThreadAddr(asm *nativeasm.Assembler, dst nativeasm.Reg) {
	asm.Emit(nativeasm.MovRegReg(nil, dst, regCtxBase))
	asm.Emit(nativeasm.AddRegReg(nil, dst, regThread))
}

// emitFreeAndExit inlines arena.Arena.FreeBlock for the current thread
// (pushing it onto the native-resident freelist copy), then reports
// outcome/resultVal1 and returns.
func emitFreeAndExit(asm *nativeasm.Assembler, epilogueLabel *nativeasm.Label, outcome, resultVal1 uint64) {
	emitThreadAddr(asm, regBuiltinTable)
	asm.Emit(nativeasm.MovMemReg(nil, nativeasm.Mem{Base: regBuiltinTable, Disp: 0}, regFreelist))
	asm.Emit(nativeasm.MovRegReg(nil, regFreelist, regThread))
	emitExit(asm, epilogueLabel, outcome, resultVal1)
}

// emitParkExit stamps ip into the thread's own ip field (the arena
// analogue of executor.Context.setIP) without freeing anything, since a
// parked thread is appended to the next generation by the Go driver.
func emitParkExit(asm *nativeasm.Assembler, epilogueLabel *nativeasm.Label, ip uint64) {
	emitThreadAddr(asm, regBuiltinTable)
	asm.Emit(nativeasm.MovRegImm64(nil, regScratch, int64(ip)))
	asm.Emit(nativeasm.MovMemReg(nil, nativeasm.Mem{Base: regBuiltinTable, Disp: 8}, regScratch))
	emitExit(asm, epilogueLabel, outcomeParked, 0)
}

// emitSplitExit hands a fork back to Go untouched; neither thread is
// freed nor mutated, since Go must allocate the passive branch's block
// before either side can proceed.
func emitSplitExit(asm *nativeasm.Assembler, epilogueLabel *nativeasm.Label, ip uint64) {
	emitExit(asm, epilogueLabel, outcomeSplit, ip)
}

func emitExit(asm *nativeasm.Assembler, epilogueLabel *nativeasm.Label, outcome, resultVal1 uint64) {
	asm.Emit(nativeasm.MovRegImm64(nil, regScratch, int64(resultVal1)))
	asm.Emit(nativeasm.MovMemReg(nil, nativeasm.Mem{Base: regResult, Disp: offResultVal1}, regScratch))
	asm.Emit(nativeasm.MovRegImm64(nil, regScratch, int64(outcome)))
	asm.Emit(nativeasm.MovMemReg(nil, nativeasm.Mem{Base: regResult, Disp: offResultOutcome}, regScratch))
	asm.Jmp(epilogueLabel)
}

func emitWritePointer(asm *nativeasm.Assembler, slot uint64) {
	skip := asm.NewLabel()
	asm.Emit(nativeasm.MovRegMem(nil, regScratch, nativeasm.Mem{Base: nativeasm.RBP, Disp: frameSlotCount}))
	asm.Emit(nativeasm.CmpRegImm32(nil, regScratch, int32(slot)))
	asm.Jcc(nativeasm.CondBE, skip) // slotCount <= slot: this slot isn't tracked in the active Mode

	emitThreadAddr(asm, regBuiltinTable)
	asm.Emit(nativeasm.MovRegMem(nil, regScratch, nativeasm.Mem{Base: nativeasm.RBP, Disp: frameAtPos}))
	asm.Emit(nativeasm.MovMemReg(nil, nativeasm.Mem{Base: regBuiltinTable, Disp: int32(16 + slot*8)}, regScratch))

	asm.Bind(skip)
}

// emitInRange jumps to target iff lo <= reg <= hi, via the classic
// unsigned-wraparound range check: (reg - lo) overflows to a huge
// unsigned value for any reg below lo (including the noChar sentinel),
// which then compares above hi-lo and correctly misses the range.
func emitInRange(asm *nativeasm.Assembler, reg nativeasm.Reg, lo, hi byte, target *nativeasm.Label) {
	asm.Emit(nativeasm.MovRegReg(nil, regScratch, reg))
	asm.Emit(nativeasm.SubRegImm32(nil, regScratch, int32(lo)))
	asm.Emit(nativeasm.CmpRegImm32(nil, regScratch, int32(int(hi)-int(lo))))
	asm.Jcc(nativeasm.CondBE, target)
}

// emitIsWordByte jumps to wordLabel iff reg holds a byte byteclass.Word
// would accept (alnum or underscore); otherwise falls through. reg may
// also hold noChar, which emitInRange's wraparound check excludes from
// every range automatically.
func emitIsWordByte(asm *nativeasm.Assembler, reg nativeasm.Reg, wordLabel *nativeasm.Label) {
	emitInRange(asm, reg, '0', '9', wordLabel)
	emitInRange(asm, reg, 'A', 'Z', wordLabel)
	emitInRange(asm, reg, 'a', 'z', wordLabel)
	asm.Emit(nativeasm.CmpRegImm32(nil, reg, '_'))
	asm.Jcc(nativeasm.CondE, wordLabel)
}

// emitWordBoundary lowers WB (negate==false) and NWB (negate==true) via
// the four-leaf (prevWord, curWord) decision tree: boundary iff the two
// differ, and a thread dies iff boundary disagrees with what the op
// wants (WB wants a boundary, NWB wants the opposite).
func emitWordBoundary(asm *nativeasm.Assembler, dieLabel *nativeasm.Label, negate bool) {
	cont := asm.NewLabel()
	wordP := asm.NewLabel()
	notWordP := asm.NewLabel()

	decide := func(boundary bool) {
		want := boundary
		if negate {
			want = !boundary
		}
		if want {
			asm.Jmp(cont)
		} else {
			asm.Jmp(dieLabel)
		}
	}

	emitIsWordByte(asm, regPrevChar, wordP)
	asm.Jmp(notWordP)

	asm.Bind(wordP)
	wordPC := asm.NewLabel()
	emitIsWordByte(asm, regChar, wordPC)
	decide(true) // prevWord, !curWord
	asm.Bind(wordPC)
	decide(false) // prevWord, curWord

	asm.Bind(notWordP)
	notWordPC := asm.NewLabel()
	emitIsWordByte(asm, regChar, notWordPC)
	decide(false) // !prevWord, !curWord
	asm.Bind(notWordPC)
	decide(true) // !prevWord, curWord

	asm.Bind(cont)
}

func emitInstruction(asm *nativeasm.Assembler, op *vm.Op, labels map[uint64]*nativeasm.Label, dieLabel, epilogueLabel *nativeasm.Label) error {
	ip := op.XP

	switch op.Code {
	case vm.OpCHARACTER, vm.OpCHAR_CLASS, vm.OpBUILTIN_CHAR_CLASS:
		emitParkExit(asm, epilogueLabel, ip)

	case vm.OpBOF:
		asm.Emit(nativeasm.CmpRegImm32(nil, regPrevChar, -1))
		asm.Jcc(nativeasm.CondNE, dieLabel)

	case vm.OpEOF:
		asm.Emit(nativeasm.CmpRegImm32(nil, regChar, -1))
		asm.Jcc(nativeasm.CondNE, dieLabel)

	case vm.OpBOL:
		cont := asm.NewLabel()
		asm.Emit(nativeasm.CmpRegImm32(nil, regPrevChar, -1))
		asm.Jcc(nativeasm.CondE, cont)
		asm.Emit(nativeasm.CmpRegImm32(nil, regPrevChar, '\n'))
		asm.Jcc(nativeasm.CondE, cont)
		asm.Jmp(dieLabel)
		asm.Bind(cont)

	case vm.OpEOL:
		cont := asm.NewLabel()
		asm.Emit(nativeasm.CmpRegImm32(nil, regChar, -1))
		asm.Jcc(nativeasm.CondE, cont)
		asm.Emit(nativeasm.CmpRegImm32(nil, regChar, '\n'))
		asm.Jcc(nativeasm.CondE, cont)
		asm.Jmp(dieLabel)
		asm.Bind(cont)

	case vm.OpWB:
		emitWordBoundary(asm, dieLabel, false)

	case vm.OpNWB:
		emitWordBoundary(asm, dieLabel, true)

	case vm.OpJUMP:
		target := branchTarget(ip, op)
		l, ok := labels[target]
		if !ok {
			return fmt.Errorf("nativelower: jump targets unknown bytecode offset %d", target)
		}
		asm.Jmp(l)

	case vm.OpSPLIT_PASSIVE, vm.OpSPLIT_EAGER, vm.OpSPLIT_BACKWARDS_PASSIVE, vm.OpSPLIT_BACKWARDS_EAGER:
		emitSplitExit(asm, epilogueLabel, ip)

	case vm.OpWRITE_POINTER:
		emitWritePointer(asm, op.Operand)

	case vm.OpTEST_AND_SET_FLAG:
		asm.Emit(nativeasm.BtsRegImm8(nil, regFlags, byte(op.Operand)))
		asm.Jcc(nativeasm.CondB, dieLabel)

	default:
		return fmt.Errorf("nativelower: unsupported opcode %s", op.Code.String())
	}

	return nil
}
