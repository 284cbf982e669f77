// Package vm implements a virtual machine for parallel-NFA regular
// expression matching.
//
//
// The VM uses the following instruction encoding for its bytecode:
//
//   [ www | ooooo ] ...operand
//
//   www   = Encoded width of the single trailing operand
//   ooooo = Opcode
//
//   +----------------+
//   | Width encoding |
//   +-----+----------+
//   | 000 | absent   |
//   | 001 | 8 bits   |
//   | 010 | 16 bits  |
//   | 011 | 32 bits  |
//   +-----+----------+
//
// In the above information, the following statements hold:
//
// • Leftmost bits are most significant.
//
// • Operands are stored in little-endian byte order.
//
// • Signed operands (code offsets) are stored in 2's complement form.
//
// • The encoded width is always the minimal width able to hold the
//   operand, except for branch operands during assembly, where a wider
//   width is sometimes required to keep a fixpoint stable (see
//   Assembler.Fix).
//
// Every opcode carries at most one operand; there is no two- or
// three-immediate form.
//
//   CHARACTER <byte>
//     Consume one byte of input; reject the thread unless it equals
//     <byte>.
//
//   CHAR_CLASS <class index>
//     Consume one byte of input; reject the thread unless the byteclass
//     at the given index in the program's class table contains it.
//
//   BUILTIN_CHAR_CLASS <builtin id>
//     As CHAR_CLASS, but tests against a builtin byteclass.Builtin
//     rather than an interned table entry.
//
//   BOF / EOF / BOL / EOL / WB / NWB
//     Zero-width assertions. Reject the thread unless the corresponding
//     condition holds at the current input position; consume no input.
//
//   JUMP <offset>
//     Unconditionally transfer control to XP + offset, where XP is the
//     address of the byte immediately following the operand.
//
//   SPLIT_PASSIVE <offset>
//     Fork a new thread at XP + offset with lower priority than the
//     continuing thread, which falls through to the next instruction.
//     Used when the fall-through branch is preferred (e.g. the body of
//     a greedy repetition continuing to iterate).
//
//   SPLIT_EAGER <offset>
//     As SPLIT_PASSIVE, but with the preference reversed: the forked
//     thread at XP + offset takes priority and the fall-through thread
//     is lower priority. Used when the jump target is preferred (e.g.
//     entering a lazy repetition's exit).
//
//   SPLIT_BACKWARDS_PASSIVE <offset> / SPLIT_BACKWARDS_EAGER <offset>
//     The same pair of splits, conventionally used to close a loop body
//     with a backward (negative) displacement. Distinguished from the
//     forward forms only by naming convention at the compiler; the
//     executor treats all four SPLIT variants identically based on
//     their priority ordering.
//
//   WRITE_POINTER <slot>
//     Record the current input position into pointer slot <slot> of the
//     active thread's capture vector. Consumes no input.
//
//   TEST_AND_SET_FLAG <flag>
//     Abort the thread if flag bit <flag> of the per-iteration flag
//     bitmap is already set; otherwise set it and continue. Used by the
//     compiler to guarantee each (program counter, input position) pair
//     is visited by at most one thread per position, bounding execution
//     to O(n·m) in input length n and program size m.
package vm
