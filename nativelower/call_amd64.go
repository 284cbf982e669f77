//go:build linux && amd64

package nativelower

import "unsafe"

// callNative invokes the native step function at fn (an address inside a
// Program's Code, always its byte offset 0) with a single argument: a
// pointer to a filled-in nativeArgs block. Returns whatever the function
// last left in its scratch/return register -- conventionally the same
// outcome code it also wrote into nativeArgs.resultPtr, so a caller that
// only needs the outcome can skip dereferencing the result block.
//
//go:noescape
func callNative(fn uintptr, argsPtr unsafe.Pointer) uint64
