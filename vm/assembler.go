package vm

// AsmLabel is a symbolic jump target created by an Assembler, resolved to a
// concrete code address once assembly finishes.
type AsmLabel struct {
	asm     *Assembler
	index   int
	resolved bool
	xp      uint64
}

// item is one entry in the assembler's instruction list: either a fixed
// instruction (already fully encoded, e.g. CHARACTER or an anchor) or a
// branch instruction whose operand is a not-yet-resolved label reference
// and whose width may need to grow as other branches are widened.
type asmItem struct {
	code     OpCode
	operand  uint64 // valid only when label == nil
	label    *AsmLabel
	width    int // current working width, in {0,1,2,4}; -1 until seeded
	isLabel  bool
	labelRef *AsmLabel // for isLabel items, the label this position defines
}

// Assembler builds a Program's bytecode incrementally, permitting forward
// and backward jumps to symbolic labels, and resolves every branch operand
// to the minimal encoding that is jointly consistent -- mirroring
// peggyvm's Assembler.Fix fixpoint, generalized to run on forward branches
// as well as backward ones (see SPEC_FULL.md §10).
type Assembler struct {
	items  []asmItem
	labels []*AsmLabel
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// NewLabel creates a fresh, unbound label.
func (a *Assembler) NewLabel() *AsmLabel {
	l := &AsmLabel{asm: a, index: len(a.labels)}
	a.labels = append(a.labels, l)
	return l
}

// Bind marks the current assembly position as the target of l. A label
// may be bound exactly once.
func (a *Assembler) Bind(l *AsmLabel) {
	assert(l.asm == a, "label bound to a different assembler")
	assert(!l.resolved, "label already bound")
	a.items = append(a.items, asmItem{isLabel: true, labelRef: l})
	l.resolved = true
}

// Emit appends a fixed instruction taking no label operand.
func (a *Assembler) Emit(code OpCode, operand uint64) {
	meta := code.Meta()
	assert(meta.Imm != ImmCodeOffset, "use EmitBranch for code-offset operands")
	a.items = append(a.items, asmItem{code: code, operand: operand, width: -1})
}

// EmitBranch appends a branch instruction (JUMP or one of the SPLIT
// variants) whose operand is the displacement to label l, to be resolved
// once every branch's width is known.
func (a *Assembler) EmitBranch(code OpCode, l *AsmLabel) {
	meta := code.Meta()
	assert(meta.Imm == ImmCodeOffset, "EmitBranch requires a code-offset opcode")
	assert(l.asm == a, "label bound to a different assembler")
	a.items = append(a.items, asmItem{code: code, label: l, width: -1})
}

// seedWidths assigns every branch item an initial guess: the minimal width
// the operand would need if every other branch in the program were at its
// own minimal width. This is optimistic and may be too small once other
// branches grow; Fix iterates until stable.
func (a *Assembler) seedWidths() {
	for i := range a.items {
		it := &a.items[i]
		if it.isLabel {
			continue
		}
		if it.label == nil {
			if it.code.Meta().Imm == ImmNone {
				it.width = 0
			} else {
				it.width = minimalWidth(it.operand, it.code.Meta().Imm.signed())
			}
			continue
		}
		it.width = 1
	}
}

// offsets computes the code address of every item, given the current
// working widths.
func (a *Assembler) offsets() []uint64 {
	offs := make([]uint64, len(a.items)+1)
	var xp uint64
	for i, it := range a.items {
		offs[i] = xp
		if it.isLabel {
			continue
		}
		xp += 1 + uint64(it.width)
	}
	offs[len(a.items)] = xp
	return offs
}

// Fix repeatedly recomputes branch displacements and widens any branch
// whose current width can no longer hold its displacement, until a
// fixpoint is reached. This follows peggyvm's Assembler.Fix/process/
// tryFix/distance algorithm; ported here to operate on a single
// ImmCodeOffset operand per instruction instead of up to three encoded
// immediates.
func (a *Assembler) Fix() {
	a.seedWidths()

	labelItemIndex := make(map[*AsmLabel]int, len(a.labels))
	for i, it := range a.items {
		if it.isLabel {
			labelItemIndex[it.labelRef] = i
		}
	}

	for {
		offs := a.offsets()
		changed := false
		for i := range a.items {
			it := &a.items[i]
			if it.isLabel || it.label == nil {
				continue
			}
			targetIdx, ok := labelItemIndex[it.label]
			assert(ok, "branch references unbound label")
			target := offs[targetIdx]
			instrEnd := offs[i] + 1 + uint64(it.width)
			disp := s2u(int64(target) - int64(instrEnd))
			needed := minimalWidth(disp, true)
			if needed > it.width {
				it.width = needed
				changed = true
			}
			it.operand = disp
		}
		if !changed {
			break
		}
	}
}

// Assemble finalizes the instruction stream. Fix must have been called
// first (or will be called implicitly if not already done).
func (a *Assembler) Assemble() []byte {
	a.Fix()
	var out []byte
	for _, it := range a.items {
		if it.isLabel {
			continue
		}
		if it.width < 0 {
			it.width = minimalWidth(it.operand, it.code.Meta().Imm.signed())
		}
		if it.code.Meta().Imm == ImmNone {
			out = append(out, byte(it.code))
			continue
		}
		out = EncodeWithWidth(out, it.code, it.operand, it.width)
	}
	return out
}

// Len returns the number of items currently in the assembler's item list,
// used by tests asserting against runaway emission.
func (a *Assembler) Len() int {
	return len(a.items)
}
