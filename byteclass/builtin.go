package byteclass

// Builtin identifies one of the eighteen pre-defined byte classes. Builtin
// classes share the same index space as interned ad-hoc classes, separated
// by tag (spec: "Eighteen builtin classes are pre-defined and share the
// same index space, separated by tag").
type Builtin uint8

const (
	BuiltinAlnum Builtin = iota
	BuiltinAlpha
	BuiltinAscii
	BuiltinBlank
	BuiltinCntrl
	BuiltinDigit
	BuiltinGraph
	BuiltinLower
	BuiltinPrint
	BuiltinPunct
	BuiltinSpace
	BuiltinUpper
	BuiltinWord
	BuiltinXdigit
	BuiltinNonDigit
	BuiltinNonSpace
	BuiltinNonWord
	BuiltinAny

	numBuiltins = int(BuiltinAny) + 1
)

var builtinNames = [numBuiltins]string{
	BuiltinAlnum:    "alnum",
	BuiltinAlpha:    "alpha",
	BuiltinAscii:    "ascii",
	BuiltinBlank:    "blank",
	BuiltinCntrl:    "cntrl",
	BuiltinDigit:    "digit",
	BuiltinGraph:    "graph",
	BuiltinLower:    "lower",
	BuiltinPrint:    "print",
	BuiltinPunct:    "punct",
	BuiltinSpace:    "space",
	BuiltinUpper:    "upper",
	BuiltinWord:     "word",
	BuiltinXdigit:   "xdigit",
	BuiltinNonDigit: "^digit",
	BuiltinNonSpace: "^space",
	BuiltinNonWord:  "^word",
	BuiltinAny:      "any",
}

// String returns the builtin class's name, matching the POSIX bracket-class
// names recognized inside `[:name:]` where applicable.
func (b Builtin) String() string {
	if int(b) < 0 || int(b) >= numBuiltins {
		return "unknown"
	}
	return builtinNames[b]
}

// LookupBuiltin returns the Builtin named by a POSIX `[:name:]` bracket
// class, or false if name is not recognized.
func LookupBuiltin(name string) (Builtin, bool) {
	for i, n := range builtinNames {
		if n == name {
			return Builtin(i), true
		}
	}
	return 0, false
}

var builtinClasses [numBuiltins]*Class

func init() {
	digit := rangeClass('0', '9')
	lower := rangeClass('a', 'z')
	upper := rangeClass('A', 'Z')
	alpha := unionClass(lower, upper)
	alnum := unionClass(alpha, digit)
	space := listClass(' ', '\t', '\n', '\v', '\f', '\r')
	blank := listClass(' ', '\t')
	cntrl := rangeClass(0x00, 0x1f)
	cntrl.Set(0x7f)
	ascii := rangeClass(0x00, 0x7f)
	graph := rangeClass(0x21, 0x7e)
	print := rangeClass(0x20, 0x7e)
	xdigit := unionClass(digit, unionClass(rangeClass('a', 'f'), rangeClass('A', 'F')))
	word := unionClass(alnum, listClass('_'))
	notAlnum := cloneClass(alnum)
	notAlnum.Negate()
	punct := intersectClass(graph, notAlnum)

	nonDigit := cloneClass(digit)
	nonDigit.Negate()
	nonSpace := cloneClass(space)
	nonSpace.Negate()
	nonWord := cloneClass(word)
	nonWord.Negate()

	any := rangeClass(0x00, 0xff)

	builtinClasses[BuiltinAlnum] = alnum
	builtinClasses[BuiltinAlpha] = alpha
	builtinClasses[BuiltinAscii] = ascii
	builtinClasses[BuiltinBlank] = blank
	builtinClasses[BuiltinCntrl] = cntrl
	builtinClasses[BuiltinDigit] = digit
	builtinClasses[BuiltinGraph] = graph
	builtinClasses[BuiltinLower] = lower
	builtinClasses[BuiltinPrint] = print
	builtinClasses[BuiltinPunct] = punct
	builtinClasses[BuiltinSpace] = space
	builtinClasses[BuiltinUpper] = upper
	builtinClasses[BuiltinWord] = word
	builtinClasses[BuiltinXdigit] = xdigit
	builtinClasses[BuiltinNonDigit] = nonDigit
	builtinClasses[BuiltinNonSpace] = nonSpace
	builtinClasses[BuiltinNonWord] = nonWord
	builtinClasses[BuiltinAny] = any
}

// BuiltinClass returns the Class backing a builtin class.
func BuiltinClass(b Builtin) *Class {
	return builtinClasses[b]
}

// MatchBuiltin reports whether byte b belongs to builtin class id.
func MatchBuiltin(id Builtin, b byte) bool {
	return builtinClasses[id].Test(b)
}

// FindBuiltinEqualTo returns the Builtin whose bitmap equals c, if any. The
// lexer uses this to fold a hand-written bracket expression into a builtin
// class token when the user spelled one out by hand (spec: "returning a
// builtin-class token when the bitmap equals a builtin bitmap, even if the
// user wrote it by hand").
func FindBuiltinEqualTo(c *Class) (Builtin, bool) {
	for i, b := range builtinClasses {
		if b.Equal(c) {
			return Builtin(i), true
		}
	}
	return 0, false
}

func rangeClass(lo, hi byte) *Class {
	c := NewClass()
	c.SetRange(lo, hi)
	return c
}

func listClass(bs ...byte) *Class {
	c := NewClass()
	for _, b := range bs {
		c.Set(b)
	}
	return c
}

func unionClass(a, b *Class) *Class {
	c := cloneClass(a)
	if b != nil {
		c.Union(b)
	}
	return c
}

func intersectClass(a, b *Class) *Class {
	c := NewClass()
	a.ForEach(func(byteVal byte) {
		if b.Test(byteVal) {
			c.Set(byteVal)
		}
	})
	return c
}

func cloneClass(a *Class) *Class {
	c := NewClass()
	c.Union(a)
	return c
}
