// Package executor runs a compiled vm.Program against an input byte slice
// using a Thompson-style parallel NFA simulation: one outer pass over the
// input (plus a final end-of-input step), an inner pass over a
// priority-ordered thread list, and a per-iteration flag bitmap that
// bounds duplicate work at any single (position, instruction) pair.
//
// Thread state lives in an arena.Arena rather than on the Go heap: a
// thread record is {next handle, instruction pointer, N pointer slots},
// addressed by byte-offset handles so the arena can grow without
// invalidating live references.
package executor

import (
	"encoding/binary"

	"github.com/as3richa/crex-sub000/arena"
)

// threadHeaderSize is the next-handle field (8 bytes) plus the
// instruction-pointer field (8 bytes) that precede a thread's pointer
// slots.
const threadHeaderSize = 16

// Mode selects how many pointer slots a thread carries, trading memory
// and per-split copy cost against how much capture detail the caller
// actually wants back.
type Mode int

const (
	// ModeBoolean tracks no pointer slots; only whether a match occurred.
	ModeBoolean Mode = iota

	// ModeSpan tracks only group 0's start/end (two slots), for Find.
	ModeSpan

	// ModeGroups tracks every capturing group's start/end, for
	// FindGroups.
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
	panic("executor: unhandled mode")
}

// Context is a caller-owned, reusable execution context: an arena plus the
// bookkeeping needed to run one vm.Program at a time against it. A single
// Context may run many searches in sequence (against the same or
// different programs); capacity built up by earlier searches is retained
// across Run calls.
type Context struct {
	arena *arena.Arena

	flagsH    arena.Handle
	flagBytes int
	slots     int
	blockSize int
}

// NewContext returns a Context backed by alloc. A nil alloc selects
// arena.DefaultAllocator.
func NewContext(alloc arena.Allocator) (*Context, error) {
	return &Context{arena: arena.New(alloc)}, nil
}

// Close releases any resources held by the context. The underlying arena
// allocator is responsible for actually freeing memory; Close exists so
// Context satisfies the same lifecycle shape as the rest of the public
// surface.
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

func (c *Context) setIP(h arena.Handle, xp uint64) {
	binary.LittleEndian.PutUint64(c.threadBytes(h)[8:16], xp)
}

func (c *Context) slot(h arena.Handle, i int) uint64 {
	b := c.threadBytes(h)
	off := threadHeaderSize + i*8
	return binary.LittleEndian.Uint64(b[off : off+8])
}

func (c *Context) setSlot(h arena.Handle, i int, v uint64) {
	b := c.threadBytes(h)
	off := threadHeaderSize + i*8
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

func (c *Context) copySlots(dst, src arena.Handle) {
	copy(c.threadBytes(dst)[threadHeaderSize:], c.threadBytes(src)[threadHeaderSize:])
}

// initSlots marks every pointer slot of h as unwritten. Needed because a
// freshly allocated block -- whether bumped or reused from the freelist --
// carries whatever bytes were last written there.
func (c *Context) initSlots(h arena.Handle) {
	b := c.threadBytes(h)[threadHeaderSize:]
	for i := 0; i+8 <= len(b); i += 8 {
		binary.LittleEndian.PutUint64(b[i:i+8], noPointer)
	}
}

const noPointer = ^uint64(0)

func (c *Context) clearFlags() {
	if c.flagBytes == 0 {
		return
	}
	b := c.arena.Bytes(c.flagsH, c.flagBytes)
	for i := range b {
		b[i] = 0
	}
}

// testAndSetFlag reports whether flag bit was already set since it was
// last cleared, setting it in either case.
func (c *Context) testAndSetFlag(flag int) bool {
	b := c.arena.Bytes(c.flagsH, c.flagBytes)
	byteIdx, bit := flag/8, uint(flag%8)
	mask := byte(1) << bit
	if b[byteIdx]&mask != 0 {
		return true
	}
	b[byteIdx] |= mask
	return false
}

// threadList accumulates the next generation's thread list in priority
// order as a head/tail pair of handles.
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
