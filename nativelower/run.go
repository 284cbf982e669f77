package nativelower

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/as3richa/crex-sub000/arena"
	"github.com/as3richa/crex-sub000/byteclass"
	"github.com/as3richa/crex-sub000/vm"
)

// threadHeaderSize mirrors executor's thread record layout exactly: an
// 8-byte next-handle field, then an 8-byte instruction-pointer field,
// then the pointer slots. The native step function addresses both
// offsets directly (see emitThreadAddr's callers in lower.go), so this
// constant must never drift from executor.threadHeaderSize.
const threadHeaderSize = 16

// Mode selects how many pointer slots a thread carries. Mirrors
// executor.Mode; kept as a distinct type since callers select a native
// or portable Context independently and each owns its Run signature.
type Mode int

const (
	ModeBoolean Mode = iota
	ModeSpan
	ModeGroups
)

func slotCount(mode Mode, groupCount int) int {
	switch mode {
	case ModeBoolean:
		return 0
	case ModeSpan:
		return 2
	case ModeGroups:
		return 2 * groupCount
	}
	panic("nativelower: unhandled mode")
}

const noPointer = ^uint64(0)

// Context is a caller-owned, reusable native execution context: an arena
// plus the per-run bookkeeping a Run call needs. Unlike executor.Context,
// the per-iteration flag bitmap lives in a plain Go field rather than an
// arena reservation, since the native convention keeps it register-
// resident (regFlags) for the duration of a single step call; Run resets
// it directly instead of going through an arena byte range.
type Context struct {
	arena *arena.Arena

	flags     uint64
	slots     int
	blockSize int
}

// NewContext returns a Context backed by alloc. A nil alloc selects
// arena.DefaultAllocator.
func NewContext(alloc arena.Allocator) (*Context, error) {
	return &Context{arena: arena.New(alloc)}, nil
}

// Close releases any resources held by the context.
func (c *Context) Close() error {
	return nil
}

func (c *Context) threadBytes(h arena.Handle) []byte {
	return c.arena.Bytes(h, c.blockSize)
}

func (c *Context) next(h arena.Handle) arena.Handle {
	return arena.Handle(binary.LittleEndian.Uint64(c.threadBytes(h)[0:8]))
}

func (c *Context) setNext(h arena.Handle, next arena.Handle) {
	binary.LittleEndian.PutUint64(c.threadBytes(h)[0:8], uint64(next))
}

func (c *Context) ip(h arena.Handle) uint64 {
	return binary.LittleEndian.Uint64(c.threadBytes(h)[8:16])
}

func (c *Context) slot(h arena.Handle, i int) uint64 {
	b := c.threadBytes(h)
	off := threadHeaderSize + i*8
	return binary.LittleEndian.Uint64(b[off : off+8])
}

func (c *Context) copySlots(dst, src arena.Handle) {
	copy(c.threadBytes(dst)[threadHeaderSize:], c.threadBytes(src)[threadHeaderSize:])
}

// initSlots marks every pointer slot of h as unwritten, same as
// executor.Context.initSlots: a freshly (re)used block carries whatever
// bytes were last written there.
func (c *Context) initSlots(h arena.Handle) {
	b := c.threadBytes(h)[threadHeaderSize:]
	for i := 0; i+8 <= len(b); i += 8 {
		binary.LittleEndian.PutUint64(b[i:i+8], noPointer)
	}
}

// threadList accumulates the next generation's thread list in priority
// order, identical in shape to executor.threadList.
type threadList struct {
	head arena.Handle
	tail arena.Handle
}

func newThreadList() threadList {
	return threadList{head: arena.Null, tail: arena.Null}
}

func (l *threadList) append(c *Context, h arena.Handle) {
	c.setNext(h, arena.Null)
	if l.tail == arena.Null {
		l.head = h
	} else {
		c.setNext(l.tail, h)
	}
	l.tail = h
}

// Run executes the lowered program np (built from prog via Lower) against
// input in mode, via the same outer per-position / inner per-thread
// double loop as executor.Context.Run. The only structural difference is
// that the non-consuming instruction walk between one consuming op and
// the next happens inside a native call (c.walk/c.step) instead of in
// Go, with SPLIT forking handed back to this loop.
func (c *Context) Run(np *Program, prog *vm.Program, input []byte, mode Mode) (vm.Result, error) {
	n := slotCount(mode, prog.GroupCount)

	c.arena.Reset()
	c.blockSize = threadHeaderSize + n*8
	c.slots = n
	c.arena.SetBlockSize(c.blockSize)

	var best *vm.Captures
	matched := false

	head := arena.Null

	for pos := 0; pos <= len(input); pos++ {
		c.flags = 0

		next := newThreadList()
		stepMatched := false

		cur := head
		for cur != arena.Null {
			saved := c.next(cur)

			ok, afterIP, err := testConsume(prog, c.ip(cur), input, pos)
			if err != nil {
				return vm.Result{}, err
			}
			if !ok {
				c.arena.FreeBlock(cur)
				cur = saved
				continue
			}

			didMatch, err := c.walk(np, prog, input, cur, afterIP, pos+1, &next, mode, &best, false)
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
			didMatch, err := c.walk(np, prog, input, h, 0, pos, &next, mode, &best, true)
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

func (c *Context) freeChain(h arena.Handle) {
	for h != arena.Null {
		next := c.next(h)
		c.arena.FreeBlock(h)
		h = next
	}
}

// testConsume mirrors executor.Context.testConsume exactly; it stays in
// Go on both backends; see the package doc comment for why.
func testConsume(prog *vm.Program, ip uint64, input []byte, pos int) (ok bool, afterIP uint64, err error) {
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

// walk drives one thread through zero or more native step calls: a
// parked or died outcome ends the walk directly, a matched outcome
// records captures and ends it, and a split outcome allocates the
// passive branch and recurses on both, exactly mirroring
// executor.runForward's own SPLIT case one level up.
//
// testNow mirrors executor.runForward's own testNow parameter: it is set
// for a thread freshly spawned at the current outer-loop position, whose
// first consuming instruction has never been tested against input[atPos]
// the way an already-parked thread is at the top of Run's loop. Native
// code always parks unconditionally at a consuming instruction -- it has
// no notion of "this is a brand new thread" -- so that test has to happen
// here, in Go, immediately after the park, rather than one whole
// iteration later against input[atPos+1].
func (c *Context) walk(np *Program, prog *vm.Program, input []byte, th arena.Handle, ip uint64, atPos int, next *threadList, mode Mode, best **vm.Captures, testNow bool) (bool, error) {
	res, err := c.step(np, th, ip, atPos, input)
	if err != nil {
		return false, err
	}

	switch res.outcome {
	case outcomeParked:
		if testNow {
			parkedIP := c.ip(th)
			ok, afterIP, err := testConsume(prog, parkedIP, input, atPos)
			if err != nil {
				c.arena.FreeBlock(th)
				return false, err
			}
			if !ok {
				c.arena.FreeBlock(th)
				return false, nil
			}
			return c.walk(np, prog, input, th, afterIP, atPos+1, next, mode, best, false)
		}
		next.append(c, th)
		return false, nil

	case outcomeDied:
		return false, nil

	case outcomeMatched:
		c.recordMatch(th, mode, best)
		return true, nil

	case outcomeSplit:
		splitIP := res.resultVal1
		var op vm.Op
		if err := op.Decode(prog.Bytes, splitIP); err != nil {
			return false, err
		}

		fallThrough := splitIP + uint64(op.Len)
		target := branchTarget(splitIP, &op)

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

		matchedActive, err := c.walk(np, prog, input, th, activeIP, atPos, next, mode, best, testNow)
		if err != nil {
			return false, err
		}
		if matchedActive {
			c.arena.FreeBlock(passiveHandle)
			return true, nil
		}
		return c.walk(np, prog, input, passiveHandle, passiveIP, atPos, next, mode, best, testNow)

	default:
		return false, fmt.Errorf("nativelower: native step returned unexpected outcome %d", res.outcome)
	}
}

// step makes one native call, walking th forward from ip until it parks,
// dies, matches, or reaches a SPLIT. char/prevChar are precomputed here,
// exactly as executor.charAt computes them, rather than derived natively
// (see args.go's doc comment).
func (c *Context) step(np *Program, th arena.Handle, ip uint64, atPos int, input []byte) (nativeResult, error) {
	if len(np.Code) == 0 {
		return nativeResult{}, fmt.Errorf("nativelower: program has no code")
	}

	entryOff, err := np.OffsetForIP(ip)
	if err != nil {
		return nativeResult{}, err
	}

	codeBase := uintptr(unsafe.Pointer(&np.Code[0]))

	ch := noChar
	if b, ok := charAt(input, atPos); ok {
		ch = uint64(b)
	}
	prev := noChar
	if b, ok := charAt(input, atPos-1); ok {
		prev = uint64(b)
	}

	var result nativeResult
	args := nativeArgs{
		ctxBase:   uint64(uintptr(c.arena.Base())),
		freelist:  uint64(c.arena.Freelist()),
		flags:     c.flags,
		thread:    uint64(th),
		char:      ch,
		prevChar:  prev,
		resultPtr: uint64(uintptr(unsafe.Pointer(&result))),
		pos:       uint64(atPos),
		slotCount: uint64(c.slots),
		entryAddr: uint64(codeBase) + uint64(entryOff),
	}

	callNative(codeBase, unsafe.Pointer(&args))
	runtime.KeepAlive(np)
	runtime.KeepAlive(c.arena)

	c.arena.SetFreelist(arena.Handle(result.freelist))
	c.flags = result.flags

	return result, nil
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
