//go:build linux && amd64

// File: fiber/notify.go
// Package fiber: oneshot wait/notify between fibers of one runtime.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import "github.com/momentics/hioload-fiber/api"

// Notify is a oneshot edge: one fiber waits, any fiber of the same runtime
// sets it. Set before Wait makes Wait return immediately.
type Notify struct {
	rt     *Runtime
	waiter api.FiberID
	set    bool
}

// NewNotify creates a Notify bound to the current runtime.
func NewNotify() *Notify {
	return &Notify{rt: mustActive()}
}

// Set fires the edge and wakes the waiter, if any. Idempotent.
func (n *Notify) Set() {
	n.rt.checkThread()
	if n.set {
		return
	}
	n.set = true
	if !n.waiter.Zero() {
		n.rt.wake(n.waiter)
		n.waiter = api.FiberID{}
	}
}

// Wait parks the calling fiber until Set fires. At most one waiter; a
// second concurrent waiter panics. Cancellation-aware: returns
// api.ErrCancelled if the caller is cancelled first.
func (n *Notify) Wait() error {
	rt := n.rt
	rt.checkThread()
	self := rt.table.get(rt.running)

	for !n.set {
		if self.cancelled {
			if n.waiter == self.id {
				n.waiter = api.FiberID{}
			}
			return api.ErrCancelled
		}
		if !n.waiter.Zero() && n.waiter != self.id {
			panic("fiber: Notify already has a waiter")
		}
		n.waiter = self.id
		rt.park(self)
	}
	if n.waiter == self.id {
		n.waiter = api.FiberID{}
	}
	return nil
}
