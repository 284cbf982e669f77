// Package regex is the public surface of the engine: compile a pattern
// once into a Regex, then run it against many inputs through a reusable
// Context. Compilation and execution are deliberately split, mirroring
// the teacher's own Program/Execution split, so a hot-path caller never
// pays parse/compile cost per match.
package regex

import (
	"errors"
	"fmt"

	"github.com/as3richa/crex-sub000/arena"
	"github.com/as3richa/crex-sub000/compiler"
	"github.com/as3richa/crex-sub000/executor"
	"github.com/as3richa/crex-sub000/lexer"
	"github.com/as3richa/crex-sub000/parser"
	"github.com/as3richa/crex-sub000/vm"
)

// Allocator supplies and reclaims the backing storage used by a Regex's
// bytecode buffer and by a Context's thread arena. A type alias of
// arena.Allocator, giving callers a top-level name to implement against.
type Allocator = arena.Allocator

// DefaultAllocator allocates plain Go byte slices and leaves freeing to
// the garbage collector. Selected automatically when Compile/NewContext
// are passed a nil Allocator.
type DefaultAllocator = arena.DefaultAllocator

// Sentinel errors. Syntax errors from lexer/parser/compiler wrap one of
// these via errors.Is/errors.As; callers that only care about the
// category, not the offset, can match against the sentinel directly.
var (
	ErrNoMemory            = errors.New("regex: allocation failure")
	ErrBadEscape           = lexer.ErrBadEscape
	ErrBadRepetition       = parser.ErrBadRepetition
	ErrBadCharacterClass   = lexer.ErrBadCharacterClass
	ErrUnmatchedOpenParen  = parser.ErrUnmatchedOpenParen
	ErrUnmatchedCloseParen = parser.ErrUnmatchedCloseParen
)

// Span is a half-open [Begin, End) byte range into the input a match was
// found against. Begin == End == -1 encodes "no match" or "this group did
// not participate in the match" -- the indexed-slice analogue of the
// null pointer pair the original engine returns.
type Span struct {
	Begin int
	End   int
}

var noSpan = Span{Begin: -1, End: -1}

// Regex is a compiled pattern: bytecode, its class table, and the
// capturing-group count, plus the allocator used to obtain its owned
// byte buffer (so Close can hand it back).
type Regex struct {
	prog       *vm.Program
	groupCount int
	alloc      Allocator
	closed     bool
}

// Compile parses and compiles pattern into a Regex. alloc may be nil,
// selecting DefaultAllocator; the returned Regex's bytecode buffer is
// obtained through alloc and released by Close, so every allocation this
// call makes is eventually freed on both the success and the error path.
func Compile(pattern []byte, alloc Allocator) (*Regex, error) {
	if alloc == nil {
		alloc = DefaultAllocator{}
	}

	root, table, err := parser.Parse(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex: compile %q: %w", pattern, err)
	}

	groupCount := parser.CountGroups(root)
	prog, err := compiler.Compile(root, table, groupCount)
	if err != nil {
		return nil, fmt.Errorf("regex: compile %q: %w", pattern, err)
	}

	owned, err := alloc.Alloc(len(prog.Bytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	copy(owned, prog.Bytes)
	prog.Bytes = owned

	return &Regex{prog: prog, groupCount: groupCount, alloc: alloc}, nil
}

// GroupCount returns the number of capturing groups in r, including the
// implicit group 0 (the whole match).
func (r *Regex) GroupCount() int {
	return r.groupCount
}

// Close releases r's owned bytecode buffer. Close is idempotent; a
// second call is a no-op rather than a double-free.
func (r *Regex) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.alloc.Free(r.prog.Bytes)
	return nil
}

// Context is a reusable execution context: an arena-backed executor.Context
// plus the bookkeeping IsMatch/Find/FindGroups need to turn a raw
// vm.Result into the public Span-based results. A single Context may run
// searches against many different Regex values in sequence; capacity
// built up by earlier searches is retained across calls.
type Context struct {
	exec   *executor.Context
	closed bool
}

// NewContext returns a Context backed by alloc. A nil alloc selects
// DefaultAllocator.
func NewContext(alloc Allocator) (*Context, error) {
	exec, err := executor.NewContext(alloc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	return &Context{exec: exec}, nil
}

// Close releases resources held by c.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.exec.Close()
}

// IsMatch reports whether r matches anywhere in input, without computing
// any capture positions -- the cheapest of the three search modes.
func (c *Context) IsMatch(r *Regex, input []byte) (bool, error) {
	res, err := c.exec.Run(r.prog, input, executor.ModeBoolean)
	if err != nil {
		return false, err
	}
	return res.Matched, nil
}

// Find returns the span of the leftmost-priority match of r in input, or
// noSpan if there is none.
func (c *Context) Find(r *Regex, input []byte) (Span, error) {
	res, err := c.exec.Run(r.prog, input, executor.ModeSpan)
	if err != nil {
		return noSpan, err
	}
	if !res.Matched {
		return noSpan, nil
	}
	return spanFromPair(res.Captures.Pair(0)), nil
}

// FindGroups returns one Span per capturing group (including group 0) of
// r's leftmost-priority match in input, or nil if there is none. A group
// that did not participate in the winning match (e.g. the untaken side
// of an alternation) reports noSpan.
func (c *Context) FindGroups(r *Regex, input []byte) ([]Span, error) {
	res, err := c.exec.Run(r.prog, input, executor.ModeGroups)
	if err != nil {
		return nil, err
	}
	if !res.Matched {
		return nil, nil
	}
	spans := make([]Span, r.groupCount)
	for i := range spans {
		spans[i] = spanFromPair(res.Captures.Pair(i))
	}
	return spans, nil
}

func spanFromPair(p vm.CapturePair) Span {
	if p.S == vm.NoPointer || p.E == vm.NoPointer {
		return noSpan
	}
	return Span{Begin: int(p.S), End: int(p.E)}
}
