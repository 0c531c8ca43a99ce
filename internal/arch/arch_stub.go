//go:build !linux || !amd64

// File: internal/arch/arch_stub.go
// Package arch: stub for unsupported platforms, keeps tooling buildable.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package arch

// Continuation is an opaque saved stack pointer.
type Continuation uintptr

// FrameSize is the byte size of the register frame above a Continuation.
const FrameSize = 64

// Prepare is unavailable on this platform.
func Prepare(stackTop uintptr, entry uintptr) Continuation {
	panic("hioload-fiber: requires linux/amd64")
}

// Jump is unavailable on this platform.
func Jump(save *Continuation, to *Continuation) {
	panic("hioload-fiber: requires linux/amd64")
}

// EntryPC is unavailable on this platform.
func EntryPC(fn func()) uintptr {
	panic("hioload-fiber: requires linux/amd64")
}

// Supported reports whether the context switch can run on this CPU.
func Supported() bool { return false }
