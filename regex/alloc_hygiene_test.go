package regex

import (
	"errors"
	"testing"

	"github.com/as3richa/crex-sub000/arena"
)

// driveCompileAndMatch mirrors the original engine's alloc-hygiene harness:
// compile a pattern and run a match against it, sharing one allocator
// across both the compiled bytecode buffer and the matching arena. Every
// allocation made along the way is eventually freed by the deferred Close
// calls, success or failure, so a caller can check the allocator's
// bookkeeping once this returns regardless of which step failed.
func driveCompileAndMatch(f *arena.FaultInjectingAllocator) error {
	r, err := Compile([]byte("a+b+c+"), f)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, err := NewContext(f)
	if err != nil {
		return err
	}
	defer ctx.Close()

	_, err = ctx.Find(r, []byte("xxaaabbbcccxxaaabbbcccxx"))
	return err
}

// TestAllocHygiene_NoLeakAcrossEveryFailurePoint drives Compile+Find under
// a FaultInjectingAllocator that fails the k-th allocation for increasing
// k, per spec.md §8 Testable Property 1 (alloc/free balance under
// injected allocation failure). At every k, whether the run failed or
// completed, the allocator must show no more outstanding buffers than the
// matching arena's own growth discipline allows -- at most the one buffer
// currently backing its watermark, since the compiled bytecode buffer is
// always freed by Regex.Close before this function returns.
func TestAllocHygiene_NoLeakAcrossEveryFailurePoint(t *testing.T) {
	// Sweep FailAt upward from 1: every k through the last real Alloc call
	// must fail cleanly with no leak, and the first k past that must
	// succeed outright, at which point the sweep stops.
	for k := 1; k <= 1000; k++ {
		f := &arena.FaultInjectingAllocator{FailAt: k}
		err := driveCompileAndMatch(f)

		if f.Outstanding() > 1 {
			t.Fatalf("FailAt=%d: %d outstanding buffers, want at most 1 (leak)", k, f.Outstanding())
		}

		if err == nil {
			return
		}
		if !errors.Is(err, arena.ErrInjectedFault) {
			t.Fatalf("FailAt=%d: expected ErrInjectedFault, got %v", k, err)
		}
	}
	t.Fatalf("runaway sweep: still failing after 1000 fault points")
}
