// Package arena implements the growable byte-offset allocator backing an
// executor Context: a bump-pointer watermark, a singly linked freelist for
// reclaimed fixed-size blocks, and grow-via-caller-allocator when the
// watermark runs off the end of the buffer.
//
// Handles are byte offsets rather than pointers, so they remain valid
// across a grow that reallocates the underlying buffer -- callers must
// never hold a []byte slice returned by Bytes across a call that might
// allocate.
package arena

import (
	"encoding/binary"
	"unsafe"
)

// Handle is an offset into an Arena's buffer. Null is the sentinel value
// for "no handle".
type Handle uint64

// Null is the handle value meaning "absent". It is never a valid offset
// because an Arena's buffer never grows anywhere near 1<<64 bytes.
const Null Handle = ^Handle(0)

// Allocator supplies and reclaims the backing storage for an Arena's
// buffer. DefaultAllocator is the heap-backed implementation used when a
// caller passes nil.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(buf []byte)
}

// DefaultAllocator allocates plain Go byte slices and leaves freeing to
// the garbage collector.
type DefaultAllocator struct{}

func (DefaultAllocator) Alloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (DefaultAllocator) Free(buf []byte) {}

const initialCapacity = 256

// Arena is a growable byte buffer with a bump-pointer watermark and a
// freelist of fixed-size blocks for reuse. A single Arena is reused across
// many top-level matches; Reset rewinds it without releasing the backing
// buffer, so capacity built up by earlier matches is not wasted.
type Arena struct {
	alloc     Allocator
	buf       []byte
	watermark uint64
	blockSize int
	freelist  Handle
}

// New returns an empty Arena backed by alloc. A nil alloc selects
// DefaultAllocator.
func New(alloc Allocator) *Arena {
	if alloc == nil {
		alloc = DefaultAllocator{}
	}
	return &Arena{alloc: alloc, freelist: Null}
}

// Reset rewinds the arena to empty, abandoning every live handle and
// discarding the freelist, without releasing the underlying buffer.
func (a *Arena) Reset() {
	a.watermark = 0
	a.freelist = Null
	a.blockSize = 0
}

// SetBlockSize fixes the block size used by AllocBlock/FreeBlock for the
// current generation. Must be called (once per Reset) before the first
// AllocBlock call.
func (a *Arena) SetBlockSize(n int) {
	a.blockSize = n
}

// Reserve bump-allocates n bytes from the watermark, growing the backing
// buffer if necessary, and returns a handle to the start of the reserved
// region. Used for one-off allocations -- the per-iteration flag bitmap --
// that are never individually freed.
func (a *Arena) Reserve(n int) (Handle, error) {
	need := a.watermark + uint64(n)
	if need > uint64(len(a.buf)) {
		if err := a.grow(int(need)); err != nil {
			return Null, err
		}
	}
	h := Handle(a.watermark)
	a.watermark = need
	return h, nil
}

// AllocBlock returns a handle to a block of the arena's current block
// size, preferring a freelist entry over bumping the watermark.
func (a *Arena) AllocBlock() (Handle, error) {
	if a.freelist != Null {
		h := a.freelist
		a.freelist = Handle(binary.LittleEndian.Uint64(a.buf[h : h+8]))
		return h, nil
	}
	return a.Reserve(a.blockSize)
}

// FreeBlock returns a block previously obtained from AllocBlock to the
// freelist. The block's contents, beyond the first 8 bytes (overwritten
// with the freelist chain pointer), are left untouched; a caller that
// cares about stale data must overwrite it after the next AllocBlock call
// returns this block.
func (a *Arena) FreeBlock(h Handle) {
	binary.LittleEndian.PutUint64(a.buf[h:h+8], uint64(a.freelist))
	a.freelist = h
}

// Bytes returns the n-byte window starting at h. The returned slice
// aliases the arena's buffer and is invalidated by any subsequent call
// that might grow the buffer (Reserve or AllocBlock).
func (a *Arena) Bytes(h Handle, n int) []byte {
	return a.buf[h : uint64(h)+uint64(n)]
}

// Freelist returns the current freelist head, for a caller (nativelower's
// driver) that mutates its own copy of the chain outside of FreeBlock and
// needs to write it back.
func (a *Arena) Freelist() Handle {
	return a.freelist
}

// SetFreelist overwrites the freelist head, reconciling state a native
// step function's inline FreeBlock-equivalent logic mutated in a register
// rather than through FreeBlock itself.
func (a *Arena) SetFreelist(h Handle) {
	a.freelist = h
}

// Base returns a pointer to the start of the arena's backing buffer, or
// nil if nothing has been reserved yet. Valid only until the next call
// that might grow the buffer (Reserve or AllocBlock); a caller addressing
// the buffer directly (nativelower's driver, computing a thread's native
// address as Base()+handle) must re-fetch it after any such call.
func (a *Arena) Base() unsafe.Pointer {
	if len(a.buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&a.buf[0])
}

// grow doubles the buffer (or grows to at least need, if larger),
// preserving the live prefix up to the watermark.
func (a *Arena) grow(need int) error {
	newSize := len(a.buf) * 2
	if newSize == 0 {
		newSize = initialCapacity
	}
	for newSize < need {
		newSize *= 2
	}
	newBuf, err := a.alloc.Alloc(newSize)
	if err != nil {
		return err
	}
	copy(newBuf, a.buf[:a.watermark])
	old := a.buf
	a.buf = newBuf
	a.alloc.Free(old)
	return nil
}
