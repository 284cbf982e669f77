package nativelower

import "unsafe"

// nativeArgs is the struct the Go driver fills in and passes to the
// compiled step function as a single pointer (the only argument the
// SysV calling convention carries in). The function's prologue spends
// its first few instructions loading every field into its named
// convention register; the pointer register itself is then free to be
// reused as regClassTable, since nothing after the prologue needs it
// again.
//
// char and prevChar are precomputed by Go exactly as executor.charAt
// computes them (noChar standing in for charAt's ok==false), rather than
// derived natively from a cursor/end pointer pair -- Go already has this
// logic for every other part of the driver, so native code does not
// duplicate it.
//
// Every field is eight bytes so each field's byte offset is simply its
// index times eight; the offsets below are computed via unsafe.Offsetof
// (through fieldOffset) so they can never drift from the real layout.
type nativeArgs struct {
	ctxBase      uint64
	bump         uint64
	freelist     uint64
	flags        uint64
	classTable   uint64
	builtinTable uint64
	thread       uint64
	char         uint64 // current input byte, or noChar
	prevChar     uint64 // previous input byte, or noChar
	resultPtr    uint64
	pos          uint64 // atPos: the absolute input position WRITE_POINTER stamps into a slot
	slotCount    uint64 // number of live pointer slots this Run call tracks, per its Mode

	// entryAddr is the absolute native code address to dispatch to after
	// the prologue finishes loading every field above -- the native
	// analogue of the bytecode offset a portable thread would resume at.
	// Go computes it once per call via Program.OffsetForIP plus the code
	// buffer's base address.
	entryAddr uint64
}

func fieldOffset(structBase, field unsafe.Pointer) int32 {
	return int32(uintptr(field) - uintptr(structBase))
}

var zeroArgs nativeArgs

var (
	offCtxBase      = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.ctxBase))
	offBump         = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.bump))
	offFreelist     = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.freelist))
	offFlags        = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.flags))
	offClassTable   = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.classTable))
	offBuiltinTable = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.builtinTable))
	offThread       = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.thread))
	offChar         = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.char))
	offPrevChar     = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.prevChar))
	offResultPtr    = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.resultPtr))
	offPos          = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.pos))
	offSlotCount    = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.slotCount))
	offEntryAddr    = fieldOffset(unsafe.Pointer(&zeroArgs), unsafe.Pointer(&zeroArgs.entryAddr))
)

// nativeResult is written by the step function at [resultPtr] before
// return: the new freelist head (the only arena bookkeeping a step
// function can mutate, since it never bump-allocates -- see the package
// doc comment), the flag bitmap as left by any TEST_AND_SET_FLAG instructions
// executed, a catch-all outcome-specific value, and the outcome code
// itself.
type nativeResult struct {
	freelist   uint64
	flags      uint64
	resultVal1 uint64 // meaning depends on outcome: only outcomeSplit uses this, carrying the split instruction's bytecode offset
	outcome    uint64
}

var zeroResult nativeResult

var (
	offResultFreelist = fieldOffset(unsafe.Pointer(&zeroResult), unsafe.Pointer(&zeroResult.freelist))
	offResultFlags    = fieldOffset(unsafe.Pointer(&zeroResult), unsafe.Pointer(&zeroResult.flags))
	offResultVal1     = fieldOffset(unsafe.Pointer(&zeroResult), unsafe.Pointer(&zeroResult.resultVal1))
	offResultOutcome  = fieldOffset(unsafe.Pointer(&zeroResult), unsafe.Pointer(&zeroResult.outcome))
)
