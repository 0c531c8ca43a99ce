//go:build linux && amd64

// File: fiber/syscall.go
// Package fiber: the one idiom behind every I/O primitive.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"syscall"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/uring"
)

// Syscall submits one SQE on behalf of the running fiber and parks it
// until the completion arrives: check cancellation, build, park, interpret.
// keep pins buffers referenced by the SQE until the CQE is reaped, which
// may outlive the fiber itself under cancellation.
//
// Results delivered after an ASYNC_CANCEL was issued, and -ECANCELED
// results generally, surface as api.ErrCancelled. Other negative results
// become *api.SyscallError. Operations that complete synchronously in the
// kernel still round-trip through the scheduler, so all I/O is
// observationally async.
func (rt *Runtime) Syscall(kind api.OpKind, prep func(*uring.SQE), keep ...any) (int32, error) {
	rec := rt.table.get(rt.running)
	if rec.cancelled {
		return 0, api.ErrCancelled
	}

	c, err := rt.rx.Submit(rec.id, kind, prep, keep...)
	if err != nil {
		return 0, err
	}
	rec.waitCookie = c
	rec.ioDelivered = false
	rec.pendingOps++

	rt.park(rec)

	rec.waitCookie = 0
	if !rec.ioDelivered {
		panic("fiber: woken from I/O park without a completion")
	}
	if rec.ioDiscarded {
		return 0, api.ErrCancelled
	}
	if rec.ioRes < 0 {
		if syscall.Errno(-rec.ioRes) == syscall.ECANCELED {
			return 0, api.ErrCancelled
		}
		return 0, api.NewSyscallError(kind, rec.ioRes)
	}
	return rec.ioRes, nil
}

// Syscall is the package-level form of (*Runtime).Syscall for the current
// fiber. The transport and fsio packages are built on it.
func Syscall(kind api.OpKind, prep func(*uring.SQE), keep ...any) (int32, error) {
	return mustActive().Syscall(kind, prep, keep...)
}
