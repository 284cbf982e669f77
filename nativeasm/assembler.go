package nativeasm

import "errors"

// Label is a symbolic code address, resolved to a concrete offset once
// assembly finishes. Mirrors the vm package's AsmLabel, generalized from
// a single variable-width operand per instruction to instructions whose
// entire encoded length depends on which branch form (short or near) was
// finally chosen.
type Label struct {
	asm     *Assembler
	bound   bool
	itemIdx int
}

type branchKind int

const (
	branchJmp branchKind = iota
	branchJcc
	branchCall
	branchLea
)

type asmItem struct {
	isLabel bool
	label   *Label // for isLabel items, the label this position defines

	raw []byte // for fixed (non-branch) items, the fully encoded bytes

	kind  branchKind
	cond  Cond // branchJcc only
	reg   Reg  // branchLea only: destination register
	target *Label
	width int // 1 or 4 for jmp/jcc; always 4 for call/lea
}

// Assembler builds a machine-code buffer incrementally, permitting
// forward and backward jumps to symbolic labels, and resolves every
// jmp/jcc to the minimal encoding that is jointly consistent across the
// whole program: each starts in its rel8 form and is widened to rel32
// wherever the final layout requires it. The widening loop and its offsets()/Fix() shape follow
// the same fixpoint idiom as vm.Assembler.Fix, retargeted from the VM's
// own branch-width minimization to x86-64 jmp/jcc encoding.
type Assembler struct {
	items []asmItem
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// NewLabel creates a fresh, unbound label.
func (a *Assembler) NewLabel() *Label {
	return &Label{asm: a}
}

// Bind marks the current assembly position as the target of l. A label
// may be bound exactly once.
func (a *Assembler) Bind(l *Label) {
	assert(l.asm == a, "label bound to a different assembler")
	assert(!l.bound, "label already bound")
	l.itemIdx = len(a.items)
	l.bound = true
	a.items = append(a.items, asmItem{isLabel: true, label: l})
}

// Emit appends already-encoded fixed-length instruction bytes, e.g. the
// output of MovRegReg or CmpRegImm32.
func (a *Assembler) Emit(b []byte) {
	a.items = append(a.items, asmItem{raw: b})
}

// Jmp appends an unconditional jump to l, initially guessed at the short
// (rel8) form and widened during Fix if the final displacement does not
// fit.
func (a *Assembler) Jmp(l *Label) {
	assert(l.asm == a, "label bound to a different assembler")
	a.items = append(a.items, asmItem{kind: branchJmp, target: l, width: 1})
}

// Jcc appends a conditional jump to l under condition cond.
func (a *Assembler) Jcc(cond Cond, l *Label) {
	assert(l.asm == a, "label bound to a different assembler")
	a.items = append(a.items, asmItem{kind: branchJcc, cond: cond, target: l, width: 1})
}

// Call appends a near call to l. Calls have no short form; width is
// always 4.
func (a *Assembler) Call(l *Label) {
	assert(l.asm == a, "label bound to a different assembler")
	a.items = append(a.items, asmItem{kind: branchCall, target: l, width: 4})
}

// LeaLabel appends `lea reg, [rip+l]`, loading l's resolved address
// (RIP-relative) into reg. Displacement is always 4 bytes.
func (a *Assembler) LeaLabel(reg Reg, l *Label) {
	assert(l.asm == a, "label bound to a different assembler")
	a.items = append(a.items, asmItem{kind: branchLea, reg: reg, target: l, width: 4})
}

func (it *asmItem) encodedLen() int {
	if it.isLabel {
		return 0
	}
	if it.raw != nil {
		return len(it.raw)
	}
	switch it.kind {
	case branchJmp:
		if it.width == 1 {
			return 2
		}
		return 5
	case branchJcc:
		if it.width == 1 {
			return 2
		}
		return 6
	case branchCall:
		return 5
	case branchLea:
		return 7
	}
	panic("nativeasm: unreachable")
}

func (a *Assembler) offsets() []int {
	offs := make([]int, len(a.items)+1)
	pos := 0
	for i, it := range a.items {
		offs[i] = pos
		pos += it.encodedLen()
	}
	offs[len(a.items)] = pos
	return offs
}

// Fix repeatedly recomputes branch displacements and widens any
// short-form jmp/jcc whose displacement no longer fits an int8, until a
// fixpoint is reached.
func (a *Assembler) Fix() {
	labelItemIdx := make(map[*Label]int, len(a.items))
	for i, it := range a.items {
		if it.isLabel {
			labelItemIdx[it.label] = i
		}
	}

	for {
		offs := a.offsets()
		changed := false
		for i := range a.items {
			it := &a.items[i]
			if it.isLabel || it.raw != nil {
				continue
			}
			if it.kind == branchCall || it.kind == branchLea {
				continue
			}
			targetIdx, ok := labelItemIdx[it.target]
			assert(ok, "branch references unbound label")
			target := offs[targetIdx]
			instrEnd := offs[i] + it.encodedLen()
			disp := target - instrEnd
			if it.width == 1 && (disp < -128 || disp > 127) {
				it.width = 4
				changed = true
			}
		}
		if !changed {
			break
		}
	}
}

// Assemble finalizes the instruction stream into a flat byte slice. Fix
// is called implicitly if it has not already been run. Returns
// ErrCodeTooLarge if any final displacement exceeds what a 32-bit signed
// field can hold.
func (a *Assembler) Assemble() ([]byte, error) {
	a.Fix()
	offs := a.offsets()
	labelItemIdx := make(map[*Label]int, len(a.items))
	for i, it := range a.items {
		if it.isLabel {
			labelItemIdx[it.label] = i
		}
	}

	var out []byte
	for i, it := range a.items {
		if it.isLabel {
			continue
		}
		if it.raw != nil {
			out = append(out, it.raw...)
			continue
		}

		instrEnd := offs[i] + it.encodedLen()
		target := offs[labelItemIdx[it.target]]
		rawDisp := target - instrEnd
		if rawDisp > (1<<31)-1 || rawDisp < -(1<<31) {
			return nil, ErrCodeTooLarge
		}
		disp := int32(rawDisp)

		switch it.kind {
		case branchJmp:
			if it.width == 1 {
				out = append(out, 0xEB, byte(int8(disp)))
			} else {
				out = append(out, 0xE9)
				out = appendInt32(out, disp)
			}
		case branchJcc:
			if it.width == 1 {
				out = append(out, 0x70+byte(it.cond), byte(int8(disp)))
			} else {
				out = append(out, 0x0F, 0x80+byte(it.cond))
				out = appendInt32(out, disp)
			}
		case branchCall:
			out = append(out, 0xE8)
			out = appendInt32(out, disp)
		case branchLea:
			out = emitRexIfNeeded(out, true, it.reg, 0, 0)
			out = append(out, 0x8D)
			out = putModRM(out, 0, it.reg, 5) // mod=00, rm=101: RIP-relative
			out = appendInt32(out, disp)
		}
	}
	return out, nil
}

// LabelOffset returns l's resolved byte offset within the Assemble'd
// code. Fix must have already been run (directly, or via a prior
// Assemble call) with no further Emit/Jmp/Jcc/Call/LeaLabel calls since,
// or the offset would be stale.
func (a *Assembler) LabelOffset(l *Label) (int, error) {
	assert(l.asm == a, "label bound to a different assembler")
	if !l.bound {
		return 0, errors.New("nativeasm: label was never bound")
	}
	return a.offsets()[l.itemIdx], nil
}

func assert(cond bool, msg string) {
	if !cond {
		panic("nativeasm: " + msg)
	}
}
