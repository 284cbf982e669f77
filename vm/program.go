package vm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/as3richa/crex-sub000/byteclass"
)

// Program is a pattern that has been compiled to bytecode: the flat
// instruction stream plus everything an instruction can index into.
type Program struct {
	// Bytes is the bytecode to execute.
	Bytes []byte

	// Classes is the interned class table referenced by CHAR_CLASS
	// instructions.
	Classes *byteclass.Table

	// GroupCount is the number of capturing groups, including the
	// implicit outermost group 0.
	GroupCount int

	// FlagCount is the number of per-iteration flag-bit latches the
	// executor must allocate (one per alternation, two per unbounded
	// repetition for its body and its end, and one per bounded repetition
	// with optional copies).
	FlagCount int

	// Labels is auxiliary debugging metadata; not consulted at match time.
	Labels []*Label
}

// Label names a bytecode offset, for disassembly only.
type Label struct {
	Offset uint64
	Name   string
}

// Disassemble writes a human-readable assembly listing of p to w. Exists
// to make compiler/assembler tests self-documenting; never exported from
// the top-level regex package.
func (p *Program) Disassemble(w io.Writer) error {
	var buf bytes.Buffer
	var op Op
	var xp uint64
	labelsByOffset := make(map[uint64]string, len(p.Labels))
	for _, l := range p.Labels {
		labelsByOffset[l.Offset] = l.Name
	}
	for {
		err := op.Decode(p.Bytes, xp)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if name, ok := labelsByOffset[xp]; ok {
			fmt.Fprintf(&buf, "%s:\n", name)
		}
		fmt.Fprintf(&buf, "\t%05x\t%s\n", xp, op.String())
		xp += uint64(op.Len)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// NumInstructions counts the instructions in the program, used by tests
// asserting the linear-time execution bound.
func (p *Program) NumInstructions() (int, error) {
	var op Op
	var xp uint64
	n := 0
	for {
		err := op.Decode(p.Bytes, xp)
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		xp += uint64(op.Len)
		n++
	}
}
