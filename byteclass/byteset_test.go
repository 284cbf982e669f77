package byteclass

import (
	"regexp"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type matchRow struct {
	Input    byte
	Expected bool
}

func bytesAsRunes(in []byte) []rune {
	out := make([]rune, len(in))
	for i, b := range in {
		out[i] = rune(b)
	}
	return out
}

var allBytes []byte

func init() {
	allBytes = make([]byte, 256)
	for i := 0; i < 256; i++ {
		allBytes[i] = byte(i)
	}
}

func runClassMatchTests(t *testing.T, c *Class, data []matchRow) {
	t.Helper()
	for i, row := range data {
		actual := c.Test(row.Input)
		if row.Expected != actual {
			t.Errorf("%s/%03d: %q: expected %v, got %v", t.Name(), i, row.Input, row.Expected, actual)
		}
	}
}

func runForEachTests(t *testing.T, c *Class, expected []byte) {
	t.Helper()
	actual := make([]byte, 0, len(expected))
	c.ForEach(func(b byte) {
		actual = append(actual, b)
	})
	if string(actual) == string(expected) {
		return
	}
	actualRunes := bytesAsRunes(actual)
	expectedRunes := bytesAsRunes(expected)
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMainRunes(expectedRunes, actualRunes, false)
	pretty := dmp.DiffPrettyText(diffs)
	nl := regexp.MustCompile(`(?m)^`)
	pretty = nl.ReplaceAllLiteralString(pretty, "\t")
	t.Errorf("%s: wrong output:\n%s", t.Name(), pretty)
}

func rangeClassDemo() *Class {
	c := NewClass()
	c.SetRange('0', '9')
	c.SetRange('A', 'Z')
	c.SetRange('a', 'z')
	return c
}

func TestClass_SetAndTest(t *testing.T) {
	c := NewClass()
	c.Set('a')
	c.Set('e')
	c.Set('i')
	c.Set('o')
	c.Set('u')
	runClassMatchTests(t, c, []matchRow{
		{'a', true},
		{'e', true},
		{'i', true},
		{'o', true},
		{'u', true},
		{'9', false},
		{'b', false},
		{'f', false},
		{'z', false},
	})
}

func TestClass_ForEach(t *testing.T) {
	c := NewClass()
	c.Set('a')
	c.Set('e')
	c.Set('i')
	c.Set('o')
	c.Set('u')
	runForEachTests(t, c, []byte{'a', 'e', 'i', 'o', 'u'})
}

func TestClass_SetRange(t *testing.T) {
	c := rangeClassDemo()
	runClassMatchTests(t, c, []matchRow{
		{'0', true},
		{'7', true},
		{'9', true},
		{'A', true},
		{'X', true},
		{'Z', true},
		{'a', true},
		{'x', true},
		{'z', true},
		{' ', false},
		{'@', false},
		{'`', false},
	})
}

func TestClass_SetRangeForEach(t *testing.T) {
	c := rangeClassDemo()
	runForEachTests(t, c, []byte{
		'0', '1', '2', '3', '4', '5', '6', '7', '8', '9',
		'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M',
		'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z',
		'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm',
		'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z',
	})
}

func TestClass_IsEmpty(t *testing.T) {
	c := NewClass()
	if !c.IsEmpty() {
		t.Fatalf("fresh class should be empty")
	}
	c.Set('a')
	if c.IsEmpty() {
		t.Fatalf("class with a set byte should not be empty")
	}
}

func TestClass_Union(t *testing.T) {
	digits := NewClass()
	digits.SetRange('0', '9')
	letters := NewClass()
	letters.SetRange('a', 'z')

	digits.Union(letters)
	runClassMatchTests(t, digits, []matchRow{
		{'0', true},
		{'9', true},
		{'a', true},
		{'z', true},
		{'A', false},
	})
}

func TestClass_Intersect(t *testing.T) {
	alnum := rangeClassDemo()
	digits := NewClass()
	digits.SetRange('0', '9')

	alnum.Intersect(digits)
	runClassMatchTests(t, alnum, []matchRow{
		{'0', true},
		{'9', true},
		{'a', false},
		{'A', false},
	})
}

func TestClass_Negate(t *testing.T) {
	c := NewClass()
	c.SetRange(0x00, 0xff)
	c.Negate()
	if !c.IsEmpty() {
		t.Fatalf("negating a full class should produce an empty class")
	}
}

func TestClass_Equal(t *testing.T) {
	a := rangeClassDemo()
	b := rangeClassDemo()
	if !a.Equal(b) {
		t.Fatalf("two classes built the same way should compare equal")
	}
	b.Set(' ')
	if a.Equal(b) {
		t.Fatalf("classes differing by one byte should not compare equal")
	}
	if a.Equal(nil) {
		t.Fatalf("a class should never equal nil")
	}
}

func TestClass_String(t *testing.T) {
	c := NewClass()
	c.Set('a')
	expected := `[\x61]`
	if actual := c.String(); actual != expected {
		t.Errorf("expected %q, got %q", expected, actual)
	}
}

func TestTable_InternDedupes(t *testing.T) {
	table := NewTable()
	a := rangeClassDemo()
	b := rangeClassDemo()

	ia := table.Intern(a)
	ib := table.Intern(b)
	if ia != ib {
		t.Fatalf("interning two bitwise-equal classes should return the same index, got %d and %d", ia, ib)
	}
	if table.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", table.Len())
	}

	digits := NewClass()
	digits.SetRange('0', '9')
	id := table.Intern(digits)
	if id == ia {
		t.Fatalf("interning a distinct class should get a distinct index")
	}
	if table.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", table.Len())
	}
	if table.At(id) != digits {
		t.Fatalf("At(%d) did not return the interned class", id)
	}
	if len(table.All()) != 2 {
		t.Fatalf("All(): got %d classes, want 2", len(table.All()))
	}
}

func TestBuiltinClasses_NameRoundTrip(t *testing.T) {
	for b := Builtin(0); int(b) < numBuiltins; b++ {
		name := b.String()
		got, ok := LookupBuiltin(name)
		if !ok {
			t.Fatalf("LookupBuiltin(%q) failed for builtin %d", name, b)
		}
		if got != b {
			t.Errorf("LookupBuiltin(%q) = %d, want %d", name, got, b)
		}
	}
}

func TestBuiltinClasses_Membership(t *testing.T) {
	cases := []struct {
		id   Builtin
		rows []matchRow
	}{
		{BuiltinDigit, []matchRow{{'0', true}, {'9', true}, {'a', false}}},
		{BuiltinUpper, []matchRow{{'A', true}, {'Z', true}, {'a', false}}},
		{BuiltinLower, []matchRow{{'a', true}, {'z', true}, {'A', false}}},
		{BuiltinAlnum, []matchRow{{'0', true}, {'a', true}, {'A', true}, {' ', false}}},
		{BuiltinSpace, []matchRow{{' ', true}, {'\t', true}, {'\n', true}, {'a', false}}},
		{BuiltinWord, []matchRow{{'a', true}, {'0', true}, {'_', true}, {' ', false}}},
		{BuiltinAny, []matchRow{{0x00, true}, {0xff, true}}},
	}
	for _, tc := range cases {
		for _, row := range tc.rows {
			if actual := MatchBuiltin(tc.id, row.Input); actual != row.Expected {
				t.Errorf("MatchBuiltin(%s, %q): expected %v, got %v", tc.id, row.Input, row.Expected, actual)
			}
		}
	}
}

func TestBuiltinClasses_NegatedClassesComplementTheirBase(t *testing.T) {
	cases := []struct {
		base, negated Builtin
	}{
		{BuiltinDigit, BuiltinNonDigit},
		{BuiltinSpace, BuiltinNonSpace},
		{BuiltinWord, BuiltinNonWord},
	}
	for _, tc := range cases {
		base := BuiltinClass(tc.base)
		negated := BuiltinClass(tc.negated)
		for i := 0; i < 256; i++ {
			b := byte(i)
			if base.Test(b) == negated.Test(b) {
				t.Errorf("%s and %s agree on byte %#x, want complementary", tc.base, tc.negated, b)
			}
		}
	}
}

func TestFindBuiltinEqualTo(t *testing.T) {
	digits := NewClass()
	digits.SetRange('0', '9')
	got, ok := FindBuiltinEqualTo(digits)
	if !ok || got != BuiltinDigit {
		t.Fatalf("expected a hand-built [0-9] class to fold into BuiltinDigit, got %s, %v", got, ok)
	}

	weird := NewClass()
	weird.Set('x')
	if _, ok := FindBuiltinEqualTo(weird); ok {
		t.Fatalf("a class matching no builtin should not fold into one")
	}
}
