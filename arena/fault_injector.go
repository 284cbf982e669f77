package arena

import "errors"

// ErrInjectedFault is the error a FaultInjectingAllocator's Alloc returns
// once its configured call count is reached.
var ErrInjectedFault = errors.New("arena: injected allocation fault")

// FaultInjectingAllocator wraps another Allocator (DefaultAllocator if
// Inner is nil), failing the FailAt-th call to Alloc (1-indexed; FailAt <=
// 0 never fails) and tracking every buffer it has handed out but not yet
// seen returned via Free. A caller drives an Arena through the same
// sequence of operations for increasing values of FailAt and, at each
// value, checks both that a failure is reported cleanly (no panic, a
// wrapped ErrInjectedFault) and that Outstanding/Balanced never shows more
// live buffers than the arena's own growth discipline allows -- the single
// currently-bump-allocated buffer, at most.
type FaultInjectingAllocator struct {
	Inner  Allocator
	FailAt int

	calls int
	live  map[*byte]int
}

// Alloc implements Allocator.
func (f *FaultInjectingAllocator) Alloc(size int) ([]byte, error) {
	f.calls++
	if f.FailAt > 0 && f.calls == f.FailAt {
		return nil, ErrInjectedFault
	}

	buf, err := f.inner().Alloc(size)
	if err != nil {
		return nil, err
	}
	if len(buf) > 0 {
		if f.live == nil {
			f.live = make(map[*byte]int)
		}
		f.live[&buf[0]] = len(buf)
	}
	return buf, nil
}

// Free implements Allocator.
func (f *FaultInjectingAllocator) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	key := &buf[0]
	if n, ok := f.live[key]; ok {
		if n != len(buf) {
			panic("arena: FaultInjectingAllocator.Free called with a length that does not match the matching Alloc")
		}
		delete(f.live, key)
	}
	f.inner().Free(buf)
}

func (f *FaultInjectingAllocator) inner() Allocator {
	if f.Inner == nil {
		return DefaultAllocator{}
	}
	return f.Inner
}

// Outstanding returns the number of buffers handed out by Alloc that have
// not since been passed to Free.
func (f *FaultInjectingAllocator) Outstanding() int {
	return len(f.live)
}

// Balanced reports whether every buffer handed out by Alloc has since been
// returned via Free.
func (f *FaultInjectingAllocator) Balanced() bool {
	return len(f.live) == 0
}
