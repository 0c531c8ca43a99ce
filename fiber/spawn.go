//go:build linux && amd64

// File: fiber/spawn.go
// Package fiber: spawn, the fiber trampoline and scope exit.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/arch"
)

// trampolinePC is the resume target laid into every prepared stack.
var trampolinePC = arch.EntryPC(fiberMain)

// Spawn creates a child of the current fiber and queues it at the ready
// tail. The child observes every write the parent made before Spawn
// returned. It inherits the parent's cancellation flag.
//
// Spawn fails only on resource exhaustion (stack or table); the caller
// decides whether that is fatal.
func Spawn[T any](fn func() (T, error)) (*Handle[T], error) {
	rt := mustActive()
	parent := rt.table.get(rt.running)

	id, err := rt.newFiber(func() (any, error) { return fn() }, parent.id, parent.cancelled)
	if err != nil {
		return nil, err
	}
	parent.children[id.Slot] = id
	rt.enqueue(rt.table.get(id))
	rt.log.Debug().Stringer("fiber", id).Stringer("parent", parent.id).Msg("spawn")
	return &Handle[T]{rt: rt, id: id}, nil
}

// fiberMain is the trampoline every fiber starts in. It runs the entry
// function, drains the fiber's scope, publishes the result and switches
// away forever.
func fiberMain() {
	rt := mustActive()
	rec := rt.table.get(rt.running)

	runEntry(rec)
	rec.entry = nil

	rec.completed = true
	rec.cancelled = true // children spawned from here on start cancelled

	// Scope exit: no child outlives this fiber. Cancel survivors, then
	// wait for the last one; each finishing child checks this condition.
	for _, cid := range rec.children {
		rt.cancelFiber(cid)
	}
	for len(rec.children) > 0 {
		rt.park(rec)
	}
	rt.absorbUnjoined(rec)

	rec.state = api.StateFinished
	rt.log.Debug().Stringer("fiber", rec.id).Bool("panicked", rec.panicked).Msg("finish")

	if !rec.joiner.Zero() {
		rt.wake(rec.joiner)
	}
	if parent := rt.table.lookup(rec.parent); parent != nil {
		delete(parent.children, rec.id.Slot)
		if rec.joiner.Zero() && !rec.joined {
			parent.unjoined[rec.id.Slot] = rec.id
		}
		if parent.completed && len(parent.children) == 0 {
			rt.wake(parent.id)
		}
	}

	// Hand control onward. The root returns to the host; everything else
	// resumes the scheduler. This Jump never comes back, so the saved
	// continuation is dead.
	var next *arch.Continuation
	if rec.parent.Zero() {
		rt.running = api.FiberID{}
		next = &rt.origin
	} else {
		next = rt.findNext()
	}
	var dead arch.Continuation
	arch.Jump(&dead, next)
	panic("fiber: resumed a finished fiber")
}

// runEntry executes the entry function, capturing an unwind as a Panicked
// result rather than tearing the runtime down.
func runEntry(rec *record) {
	defer func() {
		if p := recover(); p != nil {
			rec.panicked = true
			rec.panicVal = p
		}
	}()
	rec.value, rec.err = rec.entry()
}

// absorbUnjoined folds finished, never-joined children into this fiber:
// the first panicked result propagates; the rest are discarded. Runs after
// the child set has drained, so the panic surfaces only once the scope is
// fully joined.
func (rt *Runtime) absorbUnjoined(rec *record) {
	for slot, cid := range rec.unjoined {
		delete(rec.unjoined, slot)
		crec := rt.table.lookup(cid)
		if crec == nil {
			continue
		}
		if crec.panicked && !rec.panicked {
			rec.panicked = true
			rec.panicVal = crec.panicVal
		}
		rt.releaseSlot(crec)
	}
}
