// File: api/errors.go
// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy of the fiber runtime. Kernel errnos surface as
// SyscallError, cooperative cancellation as ErrCancelled, captured fiber
// panics as PanicError.

package api

import (
	"errors"
	"fmt"
	"syscall"
)

// Sentinel errors used across the runtime.
var (
	// ErrCancelled reports that the fiber's cancellation flag was observed
	// at a check point. User code is expected to propagate it.
	ErrCancelled = errors.New("fiber cancelled")

	// ErrFiberGone reports a stale FiberID: the slot was reused by a
	// younger generation or never existed.
	ErrFiberGone = errors.New("fiber gone")

	// ErrResourceExhausted reports that spawn could not acquire a stack,
	// table slot or submission slot.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrRuntimeActive reports an attempt to start a runtime on a thread
	// that already hosts one.
	ErrRuntimeActive = errors.New("runtime already active on this thread")
)

// SyscallError carries a negated CQE result as a portable error.
type SyscallError struct {
	Op    OpKind
	Errno syscall.Errno
}

// Error implements the error interface.
func (e *SyscallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Errno.Error())
}

// Unwrap exposes the errno for errors.Is matching.
func (e *SyscallError) Unwrap() error { return e.Errno }

// NewSyscallError builds a SyscallError from a negative CQE res field.
func NewSyscallError(op OpKind, negErrno int32) *SyscallError {
	return &SyscallError{Op: op, Errno: syscall.Errno(-negErrno)}
}

// PanicError wraps a value recovered from a fiber's entry function. It is
// delivered to the joiner; an unjoined panic propagates through the parent
// at scope exit.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("fiber panicked: %v", e.Value)
}
