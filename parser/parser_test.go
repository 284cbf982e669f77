package parser

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, pattern string) *Node {
	t.Helper()
	root, _, err := Parse([]byte(pattern))
	if err != nil {
		t.Fatalf("Parse(%q): %v", pattern, err)
	}
	return root
}

func TestParse_Literal(t *testing.T) {
	root := mustParse(t, "a")
	if root.Kind != NodeGroup || root.GroupIndex != 0 {
		t.Fatalf("root: got %+v, want outer group 0", root)
	}
	if root.Child.Kind != NodeLiteral || root.Child.Literal != 'a' {
		t.Fatalf("child: got %+v, want literal 'a'", root.Child)
	}
}

func TestParse_Concatenation(t *testing.T) {
	root := mustParse(t, "ab")
	child := root.Child
	if child.Kind != NodeConcat {
		t.Fatalf("got %+v, want NodeConcat", child)
	}
	if child.Left.Literal != 'a' || child.Right.Literal != 'b' {
		t.Fatalf("got left=%+v right=%+v", child.Left, child.Right)
	}
}

func TestParse_AlternationBindsLooserThanConcatenation(t *testing.T) {
	root := mustParse(t, "a|bc")
	alt := root.Child
	if alt.Kind != NodeAlternation {
		t.Fatalf("got %+v, want NodeAlternation", alt)
	}
	if alt.Left.Kind != NodeLiteral || alt.Left.Literal != 'a' {
		t.Fatalf("left: got %+v, want literal 'a'", alt.Left)
	}
	if alt.Right.Kind != NodeConcat {
		t.Fatalf("right: got %+v, want NodeConcat(b,c)", alt.Right)
	}
}

func TestParse_RepetitionBindsTighterThanConcatenation(t *testing.T) {
	root := mustParse(t, "ab*")
	concat := root.Child
	if concat.Kind != NodeConcat {
		t.Fatalf("got %+v, want NodeConcat", concat)
	}
	if concat.Left.Literal != 'a' {
		t.Fatalf("left: got %+v, want literal 'a'", concat.Left)
	}
	rep := concat.Right
	if rep.Kind != NodeRepetition || rep.Lo != 0 || rep.Hi != -1 || !rep.Greedy {
		t.Fatalf("right: got %+v, want greedy 0..inf repetition", rep)
	}
	if rep.Child.Literal != 'b' {
		t.Fatalf("repetition child: got %+v, want literal 'b'", rep.Child)
	}
}

func TestParse_CapturingGroupsAreNumberedInOpenOrder(t *testing.T) {
	root := mustParse(t, "(a(b))(c)")
	top := root.Child // Concat( Group1( a . Group2(b) ), Group3(c) )
	if top.Kind != NodeConcat {
		t.Fatalf("got %+v, want NodeConcat", top)
	}
	g1 := top.Left
	if g1.Kind != NodeGroup || g1.GroupIndex != 1 {
		t.Fatalf("got %+v, want group 1", g1)
	}
	inner := g1.Child // Concat(a, Group2(b))
	g2 := inner.Right
	if g2.Kind != NodeGroup || g2.GroupIndex != 2 {
		t.Fatalf("got %+v, want group 2", g2)
	}
	g3 := top.Right
	if g3.Kind != NodeGroup || g3.GroupIndex != 3 {
		t.Fatalf("got %+v, want group 3", g3)
	}
}

func TestParse_NonCapturingGroup(t *testing.T) {
	root := mustParse(t, "(?:ab)")
	g := root.Child
	if g.Kind != NodeGroup || g.GroupIndex != NonCapturing {
		t.Fatalf("got %+v, want non-capturing group", g)
	}
}

func TestParse_EmptyAlternationBranches(t *testing.T) {
	root := mustParse(t, "a|")
	alt := root.Child
	if alt.Kind != NodeAlternation {
		t.Fatalf("got %+v, want NodeAlternation", alt)
	}
	if alt.Right.Kind != NodeEmpty {
		t.Fatalf("right: got %+v, want NodeEmpty", alt.Right)
	}
}

func TestParse_UnmatchedOpenParen(t *testing.T) {
	_, _, err := Parse([]byte("(a"))
	if !errors.Is(err, ErrUnmatchedOpenParen) {
		t.Fatalf("got %v, want ErrUnmatchedOpenParen", err)
	}
}

func TestParse_UnmatchedCloseParen(t *testing.T) {
	_, _, err := Parse([]byte("a)"))
	if !errors.Is(err, ErrUnmatchedCloseParen) {
		t.Fatalf("got %v, want ErrUnmatchedCloseParen", err)
	}
}
