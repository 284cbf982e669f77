package vm

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var reNL = regexp.MustCompile(`(?m)^`)

func diff(l, r string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(l, r, false)
	pretty := dmp.DiffPrettyText(diffs)
	return reNL.ReplaceAllLiteralString(pretty, "\t")
}

func TestOp_EncodeDecodeRoundTrip(t *testing.T) {
	type testrow struct {
		Code    OpCode
		Operand uint64
	}
	rows := []testrow{
		{OpCHARACTER, 0x00},
		{OpCHARACTER, 0xff},
		{OpCHAR_CLASS, 0x1234},
		{OpBUILTIN_CHAR_CLASS, 3},
		{OpBOF, 0},
		{OpEOF, 0},
		{OpJUMP, s2u(-1)},
		{OpJUMP, s2u(200)},
		{OpSPLIT_PASSIVE, s2u(-70000)},
		{OpWRITE_POINTER, 9},
		{OpTEST_AND_SET_FLAG, 0x10000},
	}

	for _, row := range rows {
		buf := Encode(nil, row.Code, row.Operand)
		var op Op
		if err := op.Decode(buf, 0); err != nil {
			t.Fatalf("Decode(%v, %d): %v", row.Code, row.Operand, err)
		}
		if op.Code != row.Code {
			t.Errorf("code: got %v, want %v", op.Code, row.Code)
		}
		if op.Operand != row.Operand {
			t.Errorf("operand: got %d, want %d", op.Operand, row.Operand)
		}
		if int(op.Len) != EncodedLen(row.Code, row.Operand) {
			t.Errorf("len: got %d, want %d", op.Len, EncodedLen(row.Code, row.Operand))
		}
	}
}

func TestOp_Decode_TruncatedStream(t *testing.T) {
	buf := Encode(nil, OpCHAR_CLASS, 0x1234)
	var op Op
	err := op.Decode(buf[:len(buf)-1], 0)
	if err == nil {
		t.Fatal("expected an error decoding a truncated operand")
	}
}

func TestAssembler_ForwardAndBackwardBranches(t *testing.T) {
	// Assembles roughly: `a*b`, compiled as a passive split looping back
	// to itself.
	a := NewAssembler()
	top := a.NewLabel()
	done := a.NewLabel()

	a.Bind(top)
	a.EmitBranch(OpSPLIT_PASSIVE, done)
	a.Emit(OpCHARACTER, uint64('a'))
	a.EmitBranch(OpJUMP, top)
	a.Bind(done)
	a.Emit(OpCHARACTER, uint64('b'))

	code := a.Assemble()

	var (
		op Op
		xp uint64
		ops []string
	)
	for {
		if err := op.Decode(code, xp); err != nil {
			break
		}
		ops = append(ops, op.String())
		xp += uint64(op.Len)
	}

	want := []string{"SPLIT_PASSIVE<4>", "CHARACTER<97>", "JUMP<-6>", "CHARACTER<98>"}
	if len(ops) != len(want) {
		t.Fatalf("got %d instructions, want %d:\n%s", len(ops), len(want), diff(joinOps(ops), joinOps(want)))
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("instruction %d: got %q, want %q", i, ops[i], want[i])
		}
	}
}

func joinOps(ops []string) string {
	var buf bytes.Buffer
	for _, op := range ops {
		buf.WriteString(op)
		buf.WriteByte('\n')
	}
	return buf.String()
}

func TestProgram_Disassemble(t *testing.T) {
	code := Encode(nil, OpCHARACTER, uint64('a'))
	code = Encode(code, OpBOF, 0)
	p := &Program{Bytes: code}

	var buf bytes.Buffer
	if err := p.Disassemble(&buf); err != nil {
		t.Fatalf("Disassemble: %v", err)
	}

	want := "\t00000\tCHARACTER<97>\n\t00002\tBOF\n"
	got := buf.String()
	if got != want {
		t.Errorf("disassembly mismatch:\n%s", diff(got, want))
	}
}

func TestCaptures_WriteAndClone(t *testing.T) {
	c := NewCaptures(2)
	c.Write(0, 3)
	c.Write(1, 7)

	clone := c.Clone()
	clone.Write(2, 20)

	if pair := c.Pair(0); pair.S != 3 || pair.E != 7 {
		t.Errorf("group 0: got %v", pair)
	}
	if pair := c.Pair(1); pair.S != NoPointer {
		t.Errorf("clone mutation leaked back into original: %v", pair)
	}
	if pair := clone.Pair(1); pair.S != 20 {
		t.Errorf("clone group 1: got %v", pair)
	}
}
