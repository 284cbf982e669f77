package vm

import (
	"bytes"
	"errors"
	"fmt"
)

// assert panics if cond is false. Used for conditions that should be
// impossible to reach given a correctly compiled program: internal
// invariant violations, never part of the public contract.
func assert(cond bool, format string, args ...interface{}) {
	if !cond {
		var buf bytes.Buffer
		buf.WriteString("assertion failed: ")
		fmt.Fprintf(&buf, format, args...)
		panic(errors.New(buf.String()))
	}
}

// s2u converts an int64 to its 2's-complement uint64 representation.
func s2u(v int64) uint64 {
	return uint64(v)
}

// u2s converts a 2's-complement uint64 back to an int64.
func u2s(v uint64) int64 {
	return int64(v)
}
