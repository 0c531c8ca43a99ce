//go:build linux && amd64

// File: fiber/sched.go
// Package fiber: ready queue, park/wake and the idle loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/arch"
	"github.com/momentics/hioload-fiber/reactor"
)

// enqueue appends rec to the ready queue tail. FIFO order is the only
// tie-break.
func (rt *Runtime) enqueue(rec *record) {
	rec.state = api.StateReady
	rt.ready.Add(rec.id)
}

// wake moves a parked fiber to the ready queue. No-op for any other state:
// ready fibers are queued already and the running fiber is awake by
// definition.
func (rt *Runtime) wake(id api.FiberID) {
	rec := rt.table.lookup(id)
	if rec == nil || rec.state != api.StateParked {
		return
	}
	rt.enqueue(rec)
}

// switchOut suspends the running fiber: picks the next continuation (which
// may block on the completion ring) and swaps into it. Control returns
// here when the fiber is resumed.
func (rt *Runtime) switchOut(rec *record) {
	rec.stack.CheckCanary()
	next := rt.findNext()
	arch.Jump(&rec.cont, next)
}

// park suspends the running fiber until some event re-enqueues it.
func (rt *Runtime) park(rec *record) {
	rec.state = api.StateParked
	rt.switchOut(rec)
}

// findNext drives the scheduler idle loop: drain completions, pop a ready
// fiber; when the queue is empty, flush accumulated SQEs and block on the
// completion ring until at least one CQE arrives.
func (rt *Runtime) findNext() *arch.Continuation {
	for {
		rt.rx.Drain(rt.deliver)

		if rt.ready.Length() > 0 {
			id := rt.ready.Remove().(api.FiberID)
			rec := rt.table.get(id)
			rec.state = api.StateRunning
			rt.running = id
			return &rec.cont
		}

		if rt.rx.WaiterCount() == 0 {
			panic("fiber: deadlock: every fiber parked and no I/O in flight")
		}
		if err := rt.rx.WaitAndDrain(rt.deliver); err != nil {
			panic("fiber: io_uring_enter failed: " + err.Error())
		}
	}
}

// deliver routes one reaped completion. Fibers are enqueued in CQE drain
// order.
func (rt *Runtime) deliver(c reactor.Completion) {
	rec := rt.table.lookup(c.Fiber)
	if rec == nil {
		return // slot already recycled; stale by generation
	}
	rec.pendingOps--
	if rec.pendingReap && rec.pendingOps == 0 {
		rt.releaseSlot(rec)
		return
	}
	if rec.state == api.StateParked && rec.waitCookie == c.Cookie {
		rec.ioRes = c.Res
		rec.ioDiscarded = c.Discarded
		rec.ioDelivered = true
		rt.enqueue(rec)
	}
}
