//go:build linux && amd64

// File: internal/arch/arch_amd64.go
// Package arch implements the fiber context switch for linux/amd64.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package arch

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Continuation is an opaque saved stack pointer. The 64 bytes above it hold
// the callee-saved register frame laid out by Jump (or fabricated by
// Prepare): x87 FCW and MXCSR, R15, R14, R13, R12, RBX, RBP, resume PC.
type Continuation uintptr

// Prepare lays out an initial frame at the top of a fresh stack so that the
// first Jump into the returned continuation begins executing entry. The top
// is aligned down to 16 bytes. entry must never return; it hands control
// back with another Jump. Implemented in arch_amd64.s.
func Prepare(stackTop uintptr, entry uintptr) Continuation

// Jump saves the running context's callee-saved registers, MXCSR and x87
// control word into *save, then restores the same set from *to and returns
// into the target frame. *to is read after the save, so save and to may
// alias (a fiber rescheduling itself resumes right here). Only callee-saved
// state survives a switch. Implemented in arch_amd64.s.
func Jump(save *Continuation, to *Continuation)

// FrameSize is the byte size of the register frame above a Continuation.
const FrameSize = 64

// EntryPC resolves the code pointer of a top-level func for Prepare.
func EntryPC(fn func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}

// Supported reports whether the context switch can run on this CPU.
// SSE2 is required for the MXCSR save; any x86_64 CPU qualifies.
func Supported() bool {
	return cpu.X86.HasSSE2
}
