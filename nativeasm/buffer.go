//go:build linux && amd64

package nativeasm

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrCodeTooLarge is returned when a finalized program's displacement
// would not fit the assembler's encoding (a near jmp/jcc/call/lea
// displacement exceeding +/-2GiB). Treated the same as an allocation
// failure by callers, per the portable executor's NOMEM convention.
var ErrCodeTooLarge = errors.New("nativeasm: code displacement exceeds 2GiB")

// CodeBuffer is a growable, eventually-executable memory mapping. Code
// is written while the mapping is read/write; Finalize flips it to
// read/execute and hands back the backing slice.
//
// Growth prefers a follow-on mapping placed immediately after the
// current one (MAP_FIXED_NOREPLACE against the adjacent address range),
// which lets in-flight label displacements already computed against the
// old base stay valid. When the kernel refuses that placement (the
// adjacent range is occupied), Grow falls back to a fresh mapping plus a
// copy, same as the arena package's buffer growth.
type CodeBuffer struct {
	mem        []byte
	used       int
	executable bool
}

// NewCodeBuffer maps size bytes (rounded up to a page) as read/write,
// non-executable.
func NewCodeBuffer(size int) (*CodeBuffer, error) {
	size = pageRound(size)
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return &CodeBuffer{mem: mem}, nil
}

func pageRound(n int) int {
	const pageSize = 4096
	return (n + pageSize - 1) / pageSize * pageSize
}

// Reserve ensures the buffer has room for n more bytes past the current
// write cursor, growing it if necessary.
func (b *CodeBuffer) Reserve(n int) error {
	if b.used+n <= len(b.mem) {
		return nil
	}
	return b.grow(b.used + n)
}

// Write appends code to the buffer, growing it first if needed. The
// buffer must not yet be finalized.
func (b *CodeBuffer) Write(code []byte) error {
	if b.executable {
		panic("nativeasm: write to a finalized CodeBuffer")
	}
	if err := b.Reserve(len(code)); err != nil {
		return err
	}
	copy(b.mem[b.used:], code)
	b.used += len(code)
	return nil
}

// Len returns the number of bytes written so far.
func (b *CodeBuffer) Len() int {
	return b.used
}

func (b *CodeBuffer) grow(need int) error {
	newSize := len(b.mem) * 2
	if newSize == 0 {
		newSize = pageRound(need)
	}
	for newSize < need {
		newSize *= 2
	}
	newSize = pageRound(newSize)

	extra := newSize - len(b.mem)
	followOn, err := b.mapFollowOn(extra)
	if err == nil {
		b.mem = followOn
		return nil
	}

	fresh, err := unix.Mmap(-1, 0, newSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return err
	}
	copy(fresh, b.mem[:b.used])
	old := b.mem
	b.mem = fresh
	return unix.Munmap(old)
}

// mapFollowOn attempts to extend the mapping in place by mapping extra
// bytes immediately after the current region's end address, using
// MAP_FIXED_NOREPLACE so the kernel fails instead of relocating
// something else if that range is occupied. unix.Mmap has no way to
// request a fixed address, so the follow-on request goes through the raw
// mmap(2) syscall directly. On success the combined address range is a
// single contiguous slice covering the old bytes.
func (b *CodeBuffer) mapFollowOn(extra int) ([]byte, error) {
	base := uintptr(unsafe.Pointer(&b.mem[0]))
	followAddr := base + uintptr(len(b.mem))

	addr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		followAddr,
		uintptr(extra),
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED_NOREPLACE),
		^uintptr(0), // fd = -1
		0,
	)
	if errno != 0 {
		return nil, errno
	}
	if addr != followAddr {
		// Should not happen with MAP_FIXED_NOREPLACE (it fails outright
		// instead of relocating), but guard against it defensively.
		unix.Syscall(unix.SYS_MUNMAP, addr, uintptr(extra), 0)
		return nil, errors.New("nativeasm: kernel relocated a MAP_FIXED_NOREPLACE mapping")
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(base)), len(b.mem)+extra), nil
}

// Finalize makes the buffer executable and returns the written prefix.
// No further Writes are permitted.
func (b *CodeBuffer) Finalize() ([]byte, error) {
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return nil, err
	}
	b.executable = true
	return b.mem[:b.used], nil
}

// Close releases the mapping. Must be called exactly once, whether or
// not Finalize was called.
func (b *CodeBuffer) Close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	return err
}
