package vm

import (
	"bytes"
	"fmt"
)

// Result is the outcome of running a Program against an input, produced by
// the executor package (vm itself never runs instructions; it only defines
// their shape).
type Result struct {
	Matched  bool
	Captures Captures
}

// String provides a debugging rendering.
func (r Result) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fmt.Fprintf(&buf, "%v", r.Matched)
	if r.Matched {
		buf.WriteByte(' ')
		buf.WriteByte('[')
		for i := 0; i < r.Captures.GroupCount(); i++ {
			if i != 0 {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(&buf, "%d:%s", i, r.Captures.Pair(i))
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.String()
}
