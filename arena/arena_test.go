package arena

import "testing"

func TestArena_ReserveGrowsAcrossInitialCapacity(t *testing.T) {
	a := New(nil)
	h1, err := a.Reserve(initialCapacity - 8)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if h1 != 0 {
		t.Fatalf("first reserve: got handle %d, want 0", h1)
	}
	h2, err := a.Reserve(64)
	if err != nil {
		t.Fatalf("Reserve after grow: %v", err)
	}
	if h2 != Handle(initialCapacity-8) {
		t.Fatalf("second reserve: got handle %d, want %d", h2, initialCapacity-8)
	}
	b := a.Bytes(h2, 64)
	b[0] = 0xff
	if a.Bytes(h2, 64)[0] != 0xff {
		t.Fatalf("write to reserved region did not stick after grow")
	}
}

func TestArena_AllocBlockReusesFreedBlock(t *testing.T) {
	a := New(nil)
	a.SetBlockSize(24)

	h1, err := a.AllocBlock()
	if err != nil {
		t.Fatalf("AllocBlock: %v", err)
	}
	h2, err := a.AllocBlock()
	if err != nil {
		t.Fatalf("AllocBlock: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected distinct handles, got %d twice", h1)
	}

	a.FreeBlock(h1)
	h3, err := a.AllocBlock()
	if err != nil {
		t.Fatalf("AllocBlock after free: %v", err)
	}
	if h3 != h1 {
		t.Fatalf("got handle %d, want freelist reuse of %d", h3, h1)
	}
}

func TestArena_FreelistChainsMultipleFreedBlocks(t *testing.T) {
	a := New(nil)
	a.SetBlockSize(16)

	var handles []Handle
	for i := 0; i < 4; i++ {
		h, err := a.AllocBlock()
		if err != nil {
			t.Fatalf("AllocBlock: %v", err)
		}
		handles = append(handles, h)
	}

	for _, h := range handles {
		a.FreeBlock(h)
	}

	// Freed last-in-first-out: the freelist is a stack.
	for i := len(handles) - 1; i >= 0; i-- {
		h, err := a.AllocBlock()
		if err != nil {
			t.Fatalf("AllocBlock reuse: %v", err)
		}
		if h != handles[i] {
			t.Fatalf("reuse order: got %d, want %d", h, handles[i])
		}
	}
}

func TestArena_ResetAbandonsWatermarkAndFreelist(t *testing.T) {
	a := New(nil)
	a.SetBlockSize(16)
	h, err := a.AllocBlock()
	if err != nil {
		t.Fatalf("AllocBlock: %v", err)
	}
	a.FreeBlock(h)
	a.Reset()
	a.SetBlockSize(16)

	h2, err := a.AllocBlock()
	if err != nil {
		t.Fatalf("AllocBlock after reset: %v", err)
	}
	if h2 != 0 {
		t.Fatalf("got handle %d after reset, want 0 (fresh watermark)", h2)
	}
}
