//go:build linux && amd64

// File: fiber/handle.go
// Package fiber: join handles.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"github.com/momentics/hioload-fiber/api"
)

// Handle is a weak reference to a spawned fiber. It can be joined once and
// cancelled any number of times.
type Handle[T any] struct {
	rt *Runtime
	id api.FiberID
}

// ID returns the fiber's weak identifier.
func (h *Handle[T]) ID() api.FiberID { return h.id }

// Cancel marks the fiber and all its descendants cancelled and actively
// cancels their in-flight kernel I/O. It never blocks and never preempts a
// running fiber; the targets observe the flag at their next check point.
// Idempotent, and a no-op once the fiber is gone.
func (h *Handle[T]) Cancel() {
	h.rt.checkThread()
	h.rt.cancelFiber(h.id)
}

// Join parks the calling fiber until the target finishes, then returns the
// target's result: its return value, api.ErrCancelled if it was cancelled,
// or *api.PanicError if its entry unwound. If the target already finished,
// Join returns immediately.
//
// A fiber admits at most one joiner; a second concurrent joiner or a join
// after the result was consumed panics. If the caller itself is cancelled
// while the target is not, Join returns api.ErrCancelled without waiting.
func (h *Handle[T]) Join() (T, error) {
	var zero T
	rt := h.rt
	rt.checkThread()
	self := rt.table.get(rt.running)

	rec := rt.table.lookup(h.id)
	if rec == nil || rec.joined {
		panic(api.ErrFiberGone)
	}

	// Finished, not merely completed: a fiber that returned from its entry
	// still drains its children before the result may be consumed.
	for rec.state != api.StateFinished {
		if !rec.joiner.Zero() && rec.joiner != self.id {
			panic("fiber: second joiner for " + h.id.String())
		}
		if self.cancelled && !rec.cancelled {
			rec.joiner = api.FiberID{}
			return zero, api.ErrCancelled
		}
		rec.joiner = self.id
		rt.park(self)
		// Woken by the target finishing or by our own cancellation; when
		// the target is cancelled too it finishes shortly, so wait it out.
	}
	rec.joiner = api.FiberID{}

	return consume[T](rt, rec)
}

// consume reads the result slot, detaches the record from the parent's
// bookkeeping and releases it.
func consume[T any](rt *Runtime, rec *record) (T, error) {
	var out T
	var err error
	rec.joined = true
	if parent := rt.table.lookup(rec.parent); parent != nil {
		delete(parent.unjoined, rec.id.Slot)
	}
	if rec.panicked {
		err = &api.PanicError{Value: rec.panicVal}
	} else {
		out, _ = rec.value.(T)
		err = rec.err
	}
	rt.releaseSlot(rec)
	return out, err
}

// checkThread guards handle methods against use from a foreign thread;
// fibers are pinned to their originating runtime.
func (rt *Runtime) checkThread() {
	if active() != rt {
		panic("fiber: handle used outside its runtime's thread")
	}
}
