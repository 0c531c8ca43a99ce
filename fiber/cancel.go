//go:build linux && amd64

// File: fiber/cancel.go
// Package fiber: cooperative cancellation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import "github.com/momentics/hioload-fiber/api"

// cancelFiber marks id and every descendant cancelled. Parked targets are
// made runnable so they can observe the flag; targets parked in the
// reactor instead get an ASYNC_CANCEL against their in-flight SQE and wake
// through the completion path. Running targets are left alone: they hit
// a check point on their own.
//
// cancelled is set before descending, and an already-cancelled fiber
// short-circuits: children inherit the flag at spawn, so a marked subtree
// is marked throughout.
func (rt *Runtime) cancelFiber(id api.FiberID) {
	rec := rt.table.lookup(id)
	if rec == nil || rec.cancelled {
		return
	}
	rec.cancelled = true
	rt.log.Debug().Stringer("fiber", id).Msg("cancel")

	if rec.state == api.StateParked {
		if rec.waitCookie != 0 {
			rt.rx.Cancel(rec.waitCookie)
		} else {
			rt.enqueue(rec)
		}
	}
	for _, cid := range rec.children {
		rt.cancelFiber(cid)
	}
}
