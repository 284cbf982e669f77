package executor

import (
	"github.com/as3richa/crex-sub000/arena"
	"github.com/as3richa/crex-sub000/byteclass"
	"github.com/as3richa/crex-sub000/vm"
)

// Run executes prog against input in mode and returns the best match
// found, per leftmost-priority semantics: the earliest-starting match
// wins, and among threads tied on priority the one reaching the end of
// the program first (i.e. greediest, per the program's own split
// polarities) wins.
func (c *Context) Run(prog *vm.Program, input []byte, mode Mode) (vm.Result, error) {
	groupCount := prog.GroupCount
	n := slotCount(mode, groupCount)
	// Flag bits come in two halves of FlagCount bits, selected by the parity
	// of the position a TEST_AND_SET_FLAG runs at: a freshly spawned thread
	// runs at pos while parked threads already run at pos+1, and the two
	// positions must not share latches.
	flagBytes := (2*prog.FlagCount + 7) / 8

	c.arena.Reset()
	c.blockSize = threadHeaderSize + n*8
	c.slots = n
	c.arena.SetBlockSize(c.blockSize)

	c.flagBytes = flagBytes
	if flagBytes > 0 {
		h, err := c.arena.Reserve(flagBytes)
		if err != nil {
			return vm.Result{}, err
		}
		c.flagsH = h
		c.clearFlags()
	}

	var best *vm.Captures
	matched := false

	head := arena.Null

	for pos := 0; pos <= len(input); pos++ {
		// Clear the half used at pos+1; the half used at pos keeps the bits
		// set there by higher-priority threads during the previous step.
		if flagBytes > 0 {
			b := c.arena.Bytes(c.flagsH, flagBytes)
			base := ((pos + 1) & 1) * prog.FlagCount
			for f := base; f < base+prog.FlagCount; f++ {
				b[f/8] &^= 1 << uint(f%8)
			}
		}

		next := newThreadList()
		stepMatched := false

		cur := head
		for cur != arena.Null {
			saved := c.next(cur)

			ok, afterIP, err := c.testConsume(prog, c.ip(cur), input, pos)
			if err != nil {
				return vm.Result{}, err
			}
			if !ok {
				c.arena.FreeBlock(cur)
				cur = saved
				continue
			}

			didMatch, err := c.runForward(prog, input, cur, afterIP, pos+1, &next, mode, &best, false)
			if err != nil {
				return vm.Result{}, err
			}
			if didMatch {
				c.freeChain(saved)
				stepMatched = true
				break
			}
			cur = saved
		}

		if stepMatched {
			matched = true
			if mode == ModeBoolean {
				return finalResult(mode, best, true), nil
			}
		}

		if !matched {
			h, err := c.arena.AllocBlock()
			if err != nil {
				return vm.Result{}, err
			}
			c.initSlots(h)
			didMatch, err := c.runForward(prog, input, h, 0, pos, &next, mode, &best, true)
			if err != nil {
				return vm.Result{}, err
			}
			if didMatch {
				matched = true
				if mode == ModeBoolean {
					return finalResult(mode, best, true), nil
				}
			}
		}

		head = next.head

		if pos >= len(input) {
			break
		}
		if head == arena.Null && matched {
			break
		}
	}

	return finalResult(mode, best, matched), nil
}

func finalResult(mode Mode, best *vm.Captures, matched bool) vm.Result {
	if !matched || mode == ModeBoolean {
		return vm.Result{Matched: matched}
	}
	return vm.Result{Matched: true, Captures: *best}
}

// freeChain returns every block in the singly linked chain starting at h
// to the arena's freelist.
func (c *Context) freeChain(h arena.Handle) {
	for h != arena.Null {
		next := c.next(h)
		c.arena.FreeBlock(h)
		h = next
	}
}

// testConsume decodes the consuming instruction at ip (CHARACTER,
// CHAR_CLASS, or BUILTIN_CHAR_CLASS) and reports whether it accepts the
// byte at input[pos] (or rejects outright at end of input), along with
// the code address immediately following it.
func (c *Context) testConsume(prog *vm.Program, ip uint64, input []byte, pos int) (ok bool, afterIP uint64, err error) {
	var op vm.Op
	if err := op.Decode(prog.Bytes, ip); err != nil {
		return false, 0, err
	}

	character, hasChar := charAt(input, pos)
	if !hasChar {
		return false, ip + uint64(op.Len), nil
	}

	switch op.Code {
	case vm.OpCHARACTER:
		ok = character == byte(op.Operand)
	case vm.OpCHAR_CLASS:
		ok = prog.Classes.At(int(op.Operand)).Test(character)
	case vm.OpBUILTIN_CHAR_CLASS:
		ok = byteclass.MatchBuiltin(byteclass.Builtin(op.Operand), character)
	default:
		return false, 0, &vm.DisassembleError{Err: vm.ErrUnknownOpcode, XP: ip}
	}
	return ok, ip + uint64(op.Len), nil
}

func charAt(input []byte, pos int) (byte, bool) {
	if pos < 0 || pos >= len(input) {
		return 0, false
	}
	return input[pos], true
}

// runForward executes non-consuming instructions starting at ip, on
// behalf of thread th, until it parks at a consuming instruction (appended
// to next), matches (end of program), or dies (rejected anchor or
// already-set flag). atPos is the input position this call's anchor
// checks and WRITE_POINTER writes are stamped against; it does not change
// across the call, since only a consuming instruction -- which ends the
// call -- advances position.
//
// testNow is set for a thread freshly spawned at the current outer-loop
// position: since it has never been queued and tested the way an
// already-parked thread is (against input[pos] at the top of Run's loop),
// the first consuming instruction it reaches must be tested against
// input[atPos] immediately, rather than parked into next for input[atPos+1]
// a whole iteration later. Once that first character is consumed, the
// thread is on the same footing as any other and subsequent parks behave
// normally (testNow is cleared on the recursive call past the first test).
func (c *Context) runForward(prog *vm.Program, input []byte, th arena.Handle, ip uint64, atPos int, next *threadList, mode Mode, best **vm.Captures, testNow bool) (bool, error) {
	var op vm.Op
	for {
		if ip >= uint64(len(prog.Bytes)) {
			c.recordMatch(th, mode, best)
			c.arena.FreeBlock(th)
			return true, nil
		}

		if err := op.Decode(prog.Bytes, ip); err != nil {
			c.arena.FreeBlock(th)
			return false, err
		}

		switch op.Code {
		case vm.OpCHARACTER, vm.OpCHAR_CLASS, vm.OpBUILTIN_CHAR_CLASS:
			if testNow {
				ok, afterIP, err := c.testConsume(prog, ip, input, atPos)
				if err != nil {
					c.arena.FreeBlock(th)
					return false, err
				}
				if !ok {
					c.arena.FreeBlock(th)
					return false, nil
				}
				return c.runForward(prog, input, th, afterIP, atPos+1, next, mode, best, false)
			}
			c.setIP(th, ip)
			next.append(c, th)
			return false, nil

		case vm.OpBOF:
			if atPos != 0 {
				c.arena.FreeBlock(th)
				return false, nil
			}
			ip += uint64(op.Len)

		case vm.OpEOF:
			if _, hasChar := charAt(input, atPos); hasChar {
				c.arena.FreeBlock(th)
				return false, nil
			}
			ip += uint64(op.Len)

		case vm.OpBOL:
			prev, hasPrev := charAt(input, atPos-1)
			if hasPrev && prev != '\n' {
				c.arena.FreeBlock(th)
				return false, nil
			}
			ip += uint64(op.Len)

		case vm.OpEOL:
			cur, hasChar := charAt(input, atPos)
			if hasChar && cur != '\n' {
				c.arena.FreeBlock(th)
				return false, nil
			}
			ip += uint64(op.Len)

		case vm.OpWB, vm.OpNWB:
			prev, hasPrev := charAt(input, atPos-1)
			cur, hasChar := charAt(input, atPos)
			prevWord := hasPrev && byteclass.MatchBuiltin(byteclass.BuiltinWord, prev)
			curWord := hasChar && byteclass.MatchBuiltin(byteclass.BuiltinWord, cur)
			boundary := prevWord != curWord
			if op.Code == vm.OpNWB {
				boundary = !boundary
			}
			if !boundary {
				c.arena.FreeBlock(th)
				return false, nil
			}
			ip += uint64(op.Len)

		case vm.OpJUMP:
			ip = branchTarget(ip, op)

		case vm.OpSPLIT_PASSIVE, vm.OpSPLIT_EAGER, vm.OpSPLIT_BACKWARDS_PASSIVE, vm.OpSPLIT_BACKWARDS_EAGER:
			fallThrough := ip + uint64(op.Len)
			target := branchTarget(ip, op)

			eager := op.Code == vm.OpSPLIT_EAGER || op.Code == vm.OpSPLIT_BACKWARDS_EAGER
			activeIP, passiveIP := fallThrough, target
			if eager {
				activeIP, passiveIP = target, fallThrough
			}

			passiveHandle, err := c.arena.AllocBlock()
			if err != nil {
				return false, err
			}
			c.copySlots(passiveHandle, th)

			matched, err := c.runForward(prog, input, th, activeIP, atPos, next, mode, best, testNow)
			if err != nil {
				return false, err
			}
			if matched {
				c.arena.FreeBlock(passiveHandle)
				return true, nil
			}
			return c.runForward(prog, input, passiveHandle, passiveIP, atPos, next, mode, best, testNow)

		case vm.OpWRITE_POINTER:
			slot := int(op.Operand)
			if slot < c.slots {
				c.setSlot(th, slot, uint64(atPos))
			}
			ip += uint64(op.Len)

		case vm.OpTEST_AND_SET_FLAG:
			if c.testAndSetFlag(int(op.Operand) + (atPos&1)*prog.FlagCount) {
				c.arena.FreeBlock(th)
				return false, nil
			}
			ip += uint64(op.Len)

		default:
			c.arena.FreeBlock(th)
			return false, &vm.DisassembleError{Err: vm.ErrUnknownOpcode, XP: ip}
		}
	}
}

func branchTarget(ip uint64, op vm.Op) uint64 {
	instrEnd := ip + uint64(op.Len)
	return uint64(int64(instrEnd) + int64(op.Operand))
}

func (c *Context) recordMatch(th arena.Handle, mode Mode, best **vm.Captures) {
	if mode == ModeBoolean {
		return
	}
	caps := vm.NewCaptures(c.slots / 2)
	for i := 0; i < c.slots; i++ {
		caps.Write(uint64(i), c.slot(th, i))
	}
	*best = &caps
}
