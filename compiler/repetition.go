package compiler

import (
	"github.com/as3richa/crex-sub000/parser"
	"github.com/as3richa/crex-sub000/vm"
)

// compileRepetition lowers X{lo,hi} into lo unrolled copies of X, then
// either an infinite loop (hi == -1) or hi-lo further optional units,
// unrolled flat rather than nested.
func (c *Compiler) compileRepetition(n *parser.Node) error {
	for i := 0; i < n.Lo; i++ {
		if err := c.compile(n.Child); err != nil {
			return err
		}
	}

	if n.Hi == -1 {
		return c.compileInfiniteTail(n)
	}
	return c.compileFiniteTail(n, n.Hi-n.Lo)
}

// compileInfiniteTail emits the loop form:
//
//	body: SPLIT_PASSIVE -> end ; TEST_AND_SET_FLAG fc ; <X> ;
//	      SPLIT_BACKWARDS_EAGER -> body ; TEST_AND_SET_FLAG fe
//	end:
//
// with the two SPLIT variants swapped for a lazy repetition.
func (c *Compiler) compileInfiniteTail(n *parser.Node) error {
	enterBody := vm.OpSPLIT_PASSIVE
	loopBack := vm.OpSPLIT_BACKWARDS_EAGER
	if !n.Greedy {
		enterBody = vm.OpSPLIT_EAGER
		loopBack = vm.OpSPLIT_BACKWARDS_PASSIVE
	}

	body := c.asm.NewLabel()
	end := c.asm.NewLabel()

	c.asm.Bind(body)
	c.asm.EmitBranch(enterBody, end)
	c.asm.Emit(vm.OpTEST_AND_SET_FLAG, uint64(c.newFlag()))
	if err := c.compile(n.Child); err != nil {
		return err
	}
	c.asm.EmitBranch(loopBack, body)
	c.asm.Emit(vm.OpTEST_AND_SET_FLAG, uint64(c.newFlag()))
	c.asm.Bind(end)
	return nil
}

// compileFiniteTail emits `count` flat optional units sharing a single
// end label, followed by one trailing flag test:
//
//	(SPLIT -> end ; <X>) x count ; TEST_AND_SET_FLAG f
//	end:
func (c *Compiler) compileFiniteTail(n *parser.Node, count int) error {
	if count <= 0 {
		return nil
	}

	split := vm.OpSPLIT_PASSIVE
	if !n.Greedy {
		split = vm.OpSPLIT_EAGER
	}

	end := c.asm.NewLabel()
	for i := 0; i < count; i++ {
		c.asm.EmitBranch(split, end)
		if err := c.compile(n.Child); err != nil {
			return err
		}
	}
	c.asm.Emit(vm.OpTEST_AND_SET_FLAG, uint64(c.newFlag()))
	c.asm.Bind(end)
	return nil
}
