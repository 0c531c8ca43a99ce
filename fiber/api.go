//go:build linux && amd64

// File: fiber/api.go
// Package fiber: fiber-facing free functions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import "github.com/momentics/hioload-fiber/api"

// Current returns the running fiber's identifier.
func Current() api.FiberID {
	return mustActive().running
}

// Yield requeues the current fiber at the ready tail and runs other ready
// fibers before it resumes; with nothing else ready it returns at once.
// Yield is a cancellation check point.
func Yield() error {
	rt := mustActive()
	rec := rt.table.get(rt.running)
	if rec.cancelled {
		return api.ErrCancelled
	}
	// A busy yielder keeps the ready queue from emptying, so the idle flush
	// never runs; publish staged SQEs here so parked I/O still progresses.
	if err := rt.rx.Flush(); err != nil {
		return err
	}
	rt.enqueue(rec)
	rt.switchOut(rec)
	return nil
}

// IsCancelled reports the current fiber's cancellation flag.
func IsCancelled() bool {
	rt := mustActive()
	return rt.table.get(rt.running).cancelled
}

// CancelSelf marks the current fiber and its descendants cancelled. The
// flag takes effect at the next check point.
func CancelSelf() {
	rt := mustActive()
	rt.cancelFiber(rt.running)
}
