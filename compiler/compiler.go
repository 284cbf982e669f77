// Package compiler lowers a parser.Node parse tree into a vm.Program: a
// recursive descent over the tree emitting one or more VM instructions
// per node, allocating per-iteration flag bits for every alternation and
// repetition along the way.
package compiler

import (
	"github.com/as3richa/crex-sub000/byteclass"
	"github.com/as3richa/crex-sub000/lexer"
	"github.com/as3richa/crex-sub000/parser"
	"github.com/as3richa/crex-sub000/vm"
)

// Compiler lowers a single parse tree to bytecode using a vm.Assembler for
// label-based branch emission and fixpoint operand-width minimization.
type Compiler struct {
	asm       *vm.Assembler
	flagCount int
}

// Compile lowers root (as produced by parser.Parse) into a vm.Program.
// table is the interned byte-class table the tree's NodeClass indices
// refer to; groupCount is the total number of capturing groups, including
// the implicit outermost group 0.
func Compile(root *parser.Node, table *byteclass.Table, groupCount int) (*vm.Program, error) {
	c := &Compiler{asm: vm.NewAssembler()}
	if err := c.compile(root); err != nil {
		return nil, err
	}
	return &vm.Program{
		Bytes:      c.asm.Assemble(),
		Classes:    table,
		GroupCount: groupCount,
		FlagCount:  c.flagCount,
	}, nil
}

func (c *Compiler) newFlag() int {
	f := c.flagCount
	c.flagCount++
	return f
}

func (c *Compiler) compile(n *parser.Node) error {
	switch n.Kind {
	case parser.NodeEmpty:
		return nil

	case parser.NodeLiteral:
		c.asm.Emit(vm.OpCHARACTER, uint64(n.Literal))
		return nil

	case parser.NodeClass:
		c.asm.Emit(vm.OpCHAR_CLASS, uint64(n.ClassIndex))
		return nil

	case parser.NodeBuiltinClass:
		c.asm.Emit(vm.OpBUILTIN_CHAR_CLASS, uint64(n.Builtin))
		return nil

	case parser.NodeAnchor:
		c.asm.Emit(anchorOpcode(n.Anchor), 0)
		return nil

	case parser.NodeConcat:
		if err := c.compile(n.Left); err != nil {
			return err
		}
		return c.compile(n.Right)

	case parser.NodeAlternation:
		return c.compileAlternation(n)

	case parser.NodeRepetition:
		return c.compileRepetition(n)

	case parser.NodeGroup:
		return c.compileGroup(n)
	}

	panic("compiler: unhandled node kind")
}

func (c *Compiler) compileAlternation(n *parser.Node) error {
	right := c.asm.NewLabel()
	end := c.asm.NewLabel()

	c.asm.EmitBranch(vm.OpSPLIT_PASSIVE, right)
	if err := c.compile(n.Left); err != nil {
		return err
	}
	c.asm.EmitBranch(vm.OpJUMP, end)

	c.asm.Bind(right)
	if err := c.compile(n.Right); err != nil {
		return err
	}

	c.asm.Emit(vm.OpTEST_AND_SET_FLAG, uint64(c.newFlag()))
	c.asm.Bind(end)
	return nil
}

func (c *Compiler) compileGroup(n *parser.Node) error {
	if n.GroupIndex == parser.NonCapturing {
		return c.compile(n.Child)
	}
	c.asm.Emit(vm.OpWRITE_POINTER, uint64(2*n.GroupIndex))
	if err := c.compile(n.Child); err != nil {
		return err
	}
	c.asm.Emit(vm.OpWRITE_POINTER, uint64(2*n.GroupIndex+1))
	return nil
}

func anchorOpcode(a lexer.AnchorKind) vm.OpCode {
	switch a {
	case lexer.AnchorBOF:
		return vm.OpBOF
	case lexer.AnchorEOF:
		return vm.OpEOF
	case lexer.AnchorBOL:
		return vm.OpBOL
	case lexer.AnchorEOL:
		return vm.OpEOL
	case lexer.AnchorWordBoundary:
		return vm.OpWB
	case lexer.AnchorNonWordBoundary:
		return vm.OpNWB
	}
	panic("compiler: unhandled anchor kind")
}
