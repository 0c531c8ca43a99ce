//go:build linux

// File: reactor/reactor.go
// Package reactor: io_uring submission/completion engine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/uring"
)

// Ring is the slice of io_uring the reactor needs. Satisfied by
// *uring.Ring; tests substitute an in-memory fake.
type Ring interface {
	NextSQE() *uring.SQE
	Submit(minComplete uint32) (int, error)
	DrainCQ(fn func(uring.CQE)) int
	SQSpace() uint32
	Features() uint32
	Close() error
}

// Completion is one reaped CQE routed to its waiter.
type Completion struct {
	Cookie Cookie
	Fiber  api.FiberID
	Kind   api.OpKind
	Res    int32

	// Discarded is set for cancellation-in-flight entries: the kernel may
	// have completed the operation, but the result must not be interpreted.
	Discarded bool
}

type waiter struct {
	kind api.OpKind

	// cancelInFlight: an ASYNC_CANCEL was issued for this entry; whatever
	// the kernel reports is discarded.
	cancelInFlight bool

	// keep pins buffers referenced by the SQE until the CQE is observed.
	keep []any
}

// Stats are the reactor counters folded into api.Stats.
type Stats struct {
	SQESubmitted  uint64
	CQEReaped     uint64
	Cancellations uint64
}

// Reactor owns the ring, the submission accumulator and the waiter map.
// Single-threaded by contract with the scheduler.
type Reactor struct {
	ring    Ring
	waiters map[Cookie]*waiter
	stats   Stats
}

// New sets up a ring of the requested size and verifies the features the
// runtime depends on.
func New(entries uint32) (*Reactor, error) {
	ring, err := uring.Setup(entries)
	if err != nil {
		return nil, err
	}
	r, err := NewWithRing(ring)
	if err != nil {
		_ = ring.Close()
		return nil, err
	}
	return r, nil
}

// NewWithRing wraps an existing ring. The reactor takes ownership.
func NewWithRing(ring Ring) (*Reactor, error) {
	const need = uring.FeatFastPoll
	if got := ring.Features(); got&need != need {
		return nil, fmt.Errorf("kernel too old: io_uring features %#x, need FAST_POLL (linux >= 6.1)", got)
	}
	return &Reactor{
		ring:    ring,
		waiters: make(map[Cookie]*waiter),
	}, nil
}

// Submit stages one SQE built by prep and records fid as its waiter. The
// SQE is not flushed; the scheduler flushes on idle, and Submit flushes
// eagerly when the accumulator is full. keep pins buffer memory until the
// completion is reaped.
func (r *Reactor) Submit(fid api.FiberID, kind api.OpKind, prep func(*uring.SQE), keep ...any) (Cookie, error) {
	sqe, err := r.stage()
	if err != nil {
		return 0, err
	}
	prep(sqe)
	c := MakeCookie(fid, kind)
	sqe.UserData = uint64(c)
	if _, dup := r.waiters[c]; dup {
		panic("reactor: duplicate in-flight cookie " + c.Fiber().String())
	}
	r.waiters[c] = &waiter{kind: kind, keep: keep}
	r.stats.SQESubmitted++
	return c, nil
}

// SubmitLinkedTimeout stages an SQE linked to a LINK_TIMEOUT bounding it.
// The timeout's own CQE carries CancelCookie and is dropped on drain.
func (r *Reactor) SubmitLinkedTimeout(fid api.FiberID, kind api.OpKind, prep func(*uring.SQE), ts *uring.Timespec, keep ...any) (Cookie, error) {
	// Both entries must land in the same SQ window so the kernel sees the
	// link; reserve the pair up front.
	if r.ring.SQSpace() < 2 {
		if err := r.Flush(); err != nil {
			return 0, err
		}
	}
	keep = append(keep, ts)
	c, err := r.Submit(fid, kind, func(sqe *uring.SQE) {
		prep(sqe)
		sqe.Flags |= uring.SQEIOLink
	}, keep...)
	if err != nil {
		return 0, err
	}
	lt, err := r.stage()
	if err != nil {
		return 0, err
	}
	uring.PrepLinkTimeout(lt, ts)
	lt.UserData = uint64(CancelCookie)
	return c, nil
}

// Cancel asks the kernel to cancel the in-flight operation behind cookie
// and marks the entry cancellation-in-flight. Idempotent; unknown cookies
// are a no-op (the completion already landed).
func (r *Reactor) Cancel(c Cookie) {
	w, ok := r.waiters[c]
	if !ok || w.cancelInFlight {
		return
	}
	w.cancelInFlight = true
	r.stats.Cancellations++

	sqe, err := r.stage()
	if err != nil {
		// SQ and flush both wedged; the entry stays marked and the op
		// completes at its own pace.
		return
	}
	uring.PrepAsyncCancel(sqe, uint64(c))
	sqe.UserData = uint64(CancelCookie)
}

// Discard marks an entry cancellation-in-flight without asking the kernel
// to hurry. Used when the waiter gave up but the buffer must stay pinned.
func (r *Reactor) Discard(c Cookie) {
	if w, ok := r.waiters[c]; ok {
		w.cancelInFlight = true
	}
}

// Flush publishes every staged SQE without waiting.
func (r *Reactor) Flush() error {
	_, err := r.ring.Submit(0)
	return err
}

// WaitAndDrain flushes, blocks for at least one CQE, then routes every
// available completion through out.
func (r *Reactor) WaitAndDrain(out func(Completion)) error {
	if _, err := r.ring.Submit(1); err != nil {
		return err
	}
	r.Drain(out)
	return nil
}

// Drain routes available completions without blocking. Stale cookies (slot
// reused by a younger generation, or the reserved cancel cookie) are
// dropped.
func (r *Reactor) Drain(out func(Completion)) int {
	return r.ring.DrainCQ(func(cqe uring.CQE) {
		r.stats.CQEReaped++
		c := Cookie(cqe.UserData)
		if c == CancelCookie {
			return
		}
		w, ok := r.waiters[c]
		if !ok {
			return
		}
		delete(r.waiters, c)
		out(Completion{
			Cookie:    c,
			Fiber:     c.Fiber(),
			Kind:      w.kind,
			Res:       cqe.Res,
			Discarded: w.cancelInFlight,
		})
	})
}

// WaiterCount returns the number of in-flight entries.
func (r *Reactor) WaiterCount() int { return len(r.waiters) }

// Stats returns a snapshot of the reactor counters.
func (r *Reactor) Stats() Stats { return r.stats }

// Close tears the ring down. The waiter map must already be empty.
func (r *Reactor) Close() error {
	if len(r.waiters) != 0 {
		panic(fmt.Sprintf("reactor: closing with %d in-flight waiters", len(r.waiters)))
	}
	return r.ring.Close()
}

// stage pulls an SQE slot, flushing once if the accumulator is full.
func (r *Reactor) stage() (*uring.SQE, error) {
	sqe := r.ring.NextSQE()
	if sqe != nil {
		return sqe, nil
	}
	if err := r.Flush(); err != nil {
		return nil, err
	}
	if sqe = r.ring.NextSQE(); sqe != nil {
		return sqe, nil
	}
	return nil, fmt.Errorf("submission queue wedged: %w", api.ErrResourceExhausted)
}
