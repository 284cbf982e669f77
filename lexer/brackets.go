package lexer

import "github.com/as3richa/crex-sub000/byteclass"

// lexCharClass parses a bracket expression `[...]`, including negation
// `[^...]`, ranges `a-z`, nested POSIX `[:name:]` classes, and escape
// codes: the resulting bitmap is deduplicated against the class table
// and against the builtin classes before a token is produced.
func (lx *Lexer) lexCharClass() (Token, error) {
	start := lx.pos
	lx.advance() // consume '['

	c := byteclass.NewClass()

	if b, ok := lx.peek(); !ok {
		return Token{}, errAt(start, ErrBadCharacterClass, "unterminated character class")
	} else if b == '^' {
		lx.advance()
	}
	inverted := lx.pattern[start+1] == '^'

	prevByte := -1
	isRange := false

	pushByte := func(b byte) {
		if isRange {
			if prevByte == -1 {
				panic("lexer: range with no lower bound reached pushByte")
			}
			for i := prevByte + 1; i <= int(b); i++ {
				c.Set(byte(i))
			}
			prevByte = -1
		} else {
			c.Set(b)
			prevByte = int(b)
		}
		isRange = false
	}

	for {
		b, ok := lx.peek()
		if !ok {
			return Token{}, errAt(start, ErrBadCharacterClass, "unterminated character class")
		}
		lx.advance()

		if b == ']' {
			break
		}

		switch b {
		case '[':
			if name, ok := lx.tryLexPosixClassName(); ok {
				if isRange {
					return Token{}, errAt(start, ErrBadCharacterClass, "range with no upper bound before nested class")
				}
				builtin, ok := byteclass.LookupBuiltin(name)
				if !ok {
					return Token{}, errAt(start, ErrBadCharacterClass, "unknown POSIX class name %q", name)
				}
				c.Union(byteclass.BuiltinClass(builtin))
				prevByte = -1
			} else {
				pushByte('[')
			}
		case '\\':
			lit, isBuiltin, builtin, err := lx.lexEscapeInBracket(start)
			if err != nil {
				return Token{}, err
			}
			if isBuiltin {
				if isRange {
					return Token{}, errAt(start, ErrBadCharacterClass, "range with no upper bound before class escape")
				}
				c.Union(byteclass.BuiltinClass(builtin))
				prevByte = -1
			} else {
				pushByte(lit)
			}
		case '-':
			if isRange || prevByte == -1 {
				pushByte('-')
			} else {
				isRange = true
			}
		default:
			pushByte(b)
		}
	}

	if inverted {
		c.Negate()
	}

	return lx.internToken(c), nil
}

// tryLexPosixClassName attempts to parse `[:name:]` starting immediately
// after the leading `[` has already been consumed by the caller. On
// success, consumes through the closing `]` and returns the name. On
// failure, consumes nothing (the caller treats the `[` as a literal).
func (lx *Lexer) tryLexPosixClassName() (string, bool) {
	save := lx.pos
	if b, ok := lx.peek(); !ok || b != ':' {
		return "", false
	}
	i := lx.pos + 1
	nameStart := i
	for i < len(lx.pattern) && (isAlpha(lx.pattern[i]) || lx.pattern[i] == ':') {
		i++
	}
	if i-nameStart < 2 || lx.pattern[i-1] != ':' {
		lx.pos = save
		return "", false
	}
	if i >= len(lx.pattern) || lx.pattern[i] != ']' {
		lx.pos = save
		return "", false
	}
	name := string(lx.pattern[nameStart : i-1])
	lx.pos = i + 1
	return name, true
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// lexEscapeInBracket handles a `\` sequence inside a bracket expression.
// Anchor escapes (`\A \z \b \B`) are errors here per the original
// lex_char_class contract (CREX_E_BAD_CHARACTER_CLASS).
func (lx *Lexer) lexEscapeInBracket(start int) (lit byte, isBuiltin bool, builtin byteclass.Builtin, err error) {
	tok, err := lx.lexEscape()
	if err != nil {
		return 0, false, 0, err
	}
	switch tok.Kind {
	case TokLiteral:
		return tok.Literal, false, 0, nil
	case TokBuiltinClass:
		return 0, true, tok.Builtin, nil
	default:
		return 0, false, 0, errAt(start, ErrBadCharacterClass, "anchor escape not valid inside a character class")
	}
}
