//go:build linux && amd64

// File: fiber/table.go
// Package fiber: dense fiber storage with generation counters.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/arch"
	"github.com/momentics/hioload-fiber/internal/stack"
	"github.com/momentics/hioload-fiber/reactor"
)

// record is the runtime's exclusive view of one fiber. A FiberID held
// outside is a weak reference; generation mismatch on lookup means gone.
type record struct {
	id    api.FiberID
	state api.State

	stack *stack.Stack
	cont  arch.Continuation
	entry func() (any, error)

	parent   api.FiberID
	children map[uint32]api.FiberID // live children, keyed by slot

	// finished-but-unjoined children whose results this fiber absorbs at
	// scope exit.
	unjoined map[uint32]api.FiberID

	cancelled bool
	completed bool

	// joiner is the single fiber parked on this fiber's completion.
	joiner api.FiberID
	joined bool // result consumed by a join

	// result slot
	value    any
	err      error
	panicked bool
	panicVal any

	// reactor coupling
	waitCookie  reactor.Cookie // set while parked on I/O
	ioRes       int32
	ioDiscarded bool
	ioDelivered bool
	pendingOps  int  // outstanding cookies for this slot
	pendingReap bool // finished, slot held until pendingOps drains
}

// table owns every fiber record. Slot reuse bumps the generation so stale
// identifiers are detectable.
type table struct {
	slots []tableSlot
	free  []uint32
	count int
}

type tableSlot struct {
	gen uint32
	rec *record
}

const maxSlots = 1 << 24 // cookie encoding bound

func newTable() *table { return &table{} }

// alloc places rec into a free slot and stamps its identity.
func (t *table) alloc(rec *record) (api.FiberID, error) {
	var slot uint32
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.slots) >= maxSlots {
			return api.FiberID{}, api.ErrResourceExhausted
		}
		t.slots = append(t.slots, tableSlot{gen: 1})
		slot = uint32(len(t.slots) - 1)
	}
	id := api.FiberID{Slot: slot, Gen: t.slots[slot].gen}
	rec.id = id
	t.slots[slot].rec = rec
	t.count++
	return id, nil
}

// lookup resolves a weak id; nil means the fiber is gone.
func (t *table) lookup(id api.FiberID) *record {
	if int(id.Slot) >= len(t.slots) {
		return nil
	}
	s := t.slots[id.Slot]
	if s.gen != id.Gen || s.rec == nil {
		return nil
	}
	return s.rec
}

// get resolves an id that must be live.
func (t *table) get(id api.FiberID) *record {
	rec := t.lookup(id)
	if rec == nil {
		panic("fiber table: dangling id " + id.String())
	}
	return rec
}

// release frees the slot and bumps the generation.
func (t *table) release(id api.FiberID) {
	s := &t.slots[id.Slot]
	if s.gen != id.Gen || s.rec == nil {
		panic("fiber table: double release " + id.String())
	}
	s.rec = nil
	s.gen++
	t.count--
	t.free = append(t.free, id.Slot)
}

// live returns the number of occupied slots.
func (t *table) live() int { return t.count }
