package vm

import "fmt"

// NoPointer marks a pointer slot that has never been written.
const NoPointer = ^uint64(0)

// CapturePair is the start/end byte offsets recorded for a single
// capturing group by a single thread, at the moment that thread matched.
// Slot values of NoPointer mean the group never participated in the
// match (e.g. the non-taken side of an alternation).
type CapturePair struct {
	S uint64
	E uint64
}

// String provides a debugging rendering, "(s,e)" or "-" if unset.
func (pair CapturePair) String() string {
	if pair.S == NoPointer || pair.E == NoPointer {
		return "-"
	}
	return fmt.Sprintf("(%d,%d)", pair.S, pair.E)
}

// Captures holds one pointer slot pair per capturing group (including
// group 0, the whole match) for a single thread. Two uint64 slots per
// group: OpWRITE_POINTER addresses slot `2*group` for the start of a
// group and `2*group+1` for its end.
type Captures struct {
	slots []uint64
}

// NewCaptures allocates a Captures with 2*groupCount slots, all unset.
func NewCaptures(groupCount int) Captures {
	slots := make([]uint64, 2*groupCount)
	for i := range slots {
		slots[i] = NoPointer
	}
	return Captures{slots: slots}
}

// Clone returns an independent copy, for forking a thread at a SPLIT.
func (c Captures) Clone() Captures {
	slots := make([]uint64, len(c.slots))
	copy(slots, c.slots)
	return Captures{slots: slots}
}

// Write records position p into pointer slot index.
func (c Captures) Write(slot uint64, p uint64) {
	c.slots[slot] = p
}

// Pair returns the CapturePair for capturing group i.
func (c Captures) Pair(i int) CapturePair {
	return CapturePair{S: c.slots[2*i], E: c.slots[2*i+1]}
}

// GroupCount returns the number of capturing groups represented.
func (c Captures) GroupCount() int {
	return len(c.slots) / 2
}
