package lexer

import (
	"testing"

	"github.com/as3richa/crex-sub000/byteclass"
)

func collectTokens(t *testing.T, pattern string) []Token {
	t.Helper()
	lx := New([]byte(pattern))
	var tokens []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			t.Fatalf("lexing %q: %v", pattern, err)
		}
		if tok.Kind == TokEOF {
			break
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func TestLexer_Literals(t *testing.T) {
	tokens := collectTokens(t, "ab")
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(tokens))
	}
	for i, want := range []byte{'a', 'b'} {
		if tokens[i].Kind != TokLiteral || tokens[i].Literal != want {
			t.Errorf("token %d: got %+v, want literal %q", i, tokens[i], want)
		}
	}
}

func TestLexer_Repetition(t *testing.T) {
	tokens := collectTokens(t, "a{2,5}")
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(tokens))
	}
	rep := tokens[1]
	if rep.Kind != TokRepetition || rep.Lo != 2 || rep.Hi != 5 || !rep.Greedy {
		t.Errorf("got %+v", rep)
	}
}

func TestLexer_RepetitionUnbounded(t *testing.T) {
	tokens := collectTokens(t, "a{3,}?")
	rep := tokens[1]
	if rep.Kind != TokRepetition || rep.Lo != 3 || rep.Hi != -1 || rep.Greedy {
		t.Errorf("got %+v", rep)
	}
}

func TestLexer_MalformedBraceFallsBackToLiteral(t *testing.T) {
	tokens := collectTokens(t, "{abc")
	if len(tokens) != 4 {
		t.Fatalf("got %d tokens, want 4", len(tokens))
	}
	if tokens[0].Kind != TokLiteral || tokens[0].Literal != '{' {
		t.Errorf("got %+v, want literal '{'", tokens[0])
	}
}

func TestLexer_NonCapturingGroup(t *testing.T) {
	tokens := collectTokens(t, "(?:a)")
	if tokens[0].Kind != TokOpenGroup || tokens[0].Capturing {
		t.Errorf("got %+v, want non-capturing open group", tokens[0])
	}
}

func TestLexer_CapturingGroup(t *testing.T) {
	tokens := collectTokens(t, "(a)")
	if tokens[0].Kind != TokOpenGroup || !tokens[0].Capturing {
		t.Errorf("got %+v, want capturing open group", tokens[0])
	}
}

func TestLexer_BuiltinEscapes(t *testing.T) {
	tokens := collectTokens(t, `\d\s\w`)
	want := []byteclass.Builtin{byteclass.BuiltinDigit, byteclass.BuiltinSpace, byteclass.BuiltinWord}
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3", len(tokens))
	}
	for i, b := range want {
		if tokens[i].Kind != TokBuiltinClass || tokens[i].Builtin != b {
			t.Errorf("token %d: got %+v, want builtin %v", i, tokens[i], b)
		}
	}
}

func TestLexer_HexEscape(t *testing.T) {
	tokens := collectTokens(t, `\x{41}`)
	if len(tokens) != 1 || tokens[0].Kind != TokLiteral || tokens[0].Literal != 'A' {
		t.Errorf("got %+v, want literal 'A'", tokens)
	}
}

func TestLexer_CharClassRange(t *testing.T) {
	lx := New([]byte("[a-c]"))
	tok, err := lx.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != TokClass {
		t.Fatalf("got %+v, want TokClass", tok)
	}
	class := lx.Table().At(tok.ClassIndex)
	for _, b := range []byte{'a', 'b', 'c'} {
		if !class.Test(b) {
			t.Errorf("expected %q in class", b)
		}
	}
	if class.Test('d') {
		t.Errorf("did not expect %q in class", 'd')
	}
}

func TestLexer_CharClassNegatedFoldsToBuiltin(t *testing.T) {
	lx := New([]byte(`[^0-9]`))
	tok, err := lx.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != TokBuiltinClass || tok.Builtin != byteclass.BuiltinNonDigit {
		t.Errorf("got %+v, want folded BuiltinNonDigit", tok)
	}
}

func TestLexer_CharClassPosixName(t *testing.T) {
	lx := New([]byte("[[:digit:]]"))
	tok, err := lx.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != TokBuiltinClass || tok.Builtin != byteclass.BuiltinDigit {
		t.Errorf("got %+v, want folded BuiltinDigit", tok)
	}
}

func TestLexer_CharClassUnterminated(t *testing.T) {
	lx := New([]byte("[abc"))
	if _, err := lx.Next(); err == nil {
		t.Fatal("expected an error for an unterminated character class")
	}
}

func TestLexer_Any(t *testing.T) {
	lx := New([]byte("."))
	tok, err := lx.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != TokClass {
		t.Fatalf("got %+v, want TokClass (any-but-newline is not a builtin)", tok)
	}
	class := lx.Table().At(tok.ClassIndex)
	if class.Test('\n') {
		t.Error("'.' should not match newline")
	}
	if !class.Test('x') {
		t.Error("'.' should match an ordinary byte")
	}
}
