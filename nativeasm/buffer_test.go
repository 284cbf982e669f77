package nativeasm

import "testing"

func TestCodeBuffer_WriteAndFinalize(t *testing.T) {
	buf, err := NewCodeBuffer(64)
	if err != nil {
		t.Fatalf("NewCodeBuffer: %v", err)
	}
	defer buf.Close()

	code := Ret(nil)
	if err := buf.Write(code); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() != len(code) {
		t.Fatalf("got Len() %d, want %d", buf.Len(), len(code))
	}

	exec, err := buf.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(exec) != len(code) || exec[0] != code[0] {
		t.Fatalf("finalized region does not match written code")
	}
}

func TestCodeBuffer_GrowPreservesContent(t *testing.T) {
	buf, err := NewCodeBuffer(16)
	if err != nil {
		t.Fatalf("NewCodeBuffer: %v", err)
	}
	defer buf.Close()

	var want []byte
	for i := 0; i < 2000; i++ {
		b := MovRegImm32(nil, RAX, int32(i))
		if err := buf.Write(b); err != nil {
			t.Fatalf("Write at i=%d: %v", i, err)
		}
		want = append(want, b...)
	}

	exec, err := buf.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(exec) != len(want) {
		t.Fatalf("got %d bytes, want %d", len(exec), len(want))
	}
	for i := range want {
		if exec[i] != want[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, exec[i], want[i])
		}
	}
}

func TestCodeBuffer_PanicsOnWriteAfterFinalize(t *testing.T) {
	buf, err := NewCodeBuffer(16)
	if err != nil {
		t.Fatalf("NewCodeBuffer: %v", err)
	}
	defer buf.Close()

	if _, err := buf.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic writing to a finalized buffer")
		}
	}()
	buf.Write(Ret(nil))
}
