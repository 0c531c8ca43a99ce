//go:build linux && amd64

// File: fiber/channel.go
// Package fiber: unbounded channel between fibers of one runtime.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"errors"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-fiber/api"
)

// ErrChanClosed is returned by Recv after Close once the buffer drains,
// and by Send on a closed channel.
var ErrChanClosed = errors.New("fiber: channel closed")

// Chan is an unbounded FIFO between fibers of one runtime. Send never
// blocks; Recv parks until a value or Close arrives. One receiver at a
// time.
type Chan[T any] struct {
	rt     *Runtime
	buf    *queue.Queue
	waiter api.FiberID
	closed bool
}

// NewChan creates a channel bound to the current runtime.
func NewChan[T any]() *Chan[T] {
	return &Chan[T]{rt: mustActive(), buf: queue.New()}
}

// Send enqueues v and wakes the receiver, if parked.
func (c *Chan[T]) Send(v T) error {
	c.rt.checkThread()
	if c.closed {
		return ErrChanClosed
	}
	c.buf.Add(v)
	c.wakeWaiter()
	return nil
}

// Recv parks until a value is available. After Close, buffered values are
// still drained, then ErrChanClosed. Cancellation-aware.
func (c *Chan[T]) Recv() (T, error) {
	var zero T
	rt := c.rt
	rt.checkThread()
	self := rt.table.get(rt.running)

	for c.buf.Length() == 0 {
		if self.cancelled {
			c.dropWaiter(self.id)
			return zero, api.ErrCancelled
		}
		if c.closed {
			return zero, ErrChanClosed
		}
		if !c.waiter.Zero() && c.waiter != self.id {
			panic("fiber: channel already has a receiver")
		}
		c.waiter = self.id
		rt.park(self)
	}
	c.dropWaiter(self.id)
	return c.buf.Remove().(T), nil
}

// Len returns the buffered value count.
func (c *Chan[T]) Len() int { return c.buf.Length() }

// Close marks the channel closed and wakes the receiver. Idempotent.
func (c *Chan[T]) Close() {
	c.rt.checkThread()
	if c.closed {
		return
	}
	c.closed = true
	c.wakeWaiter()
}

func (c *Chan[T]) wakeWaiter() {
	if !c.waiter.Zero() {
		c.rt.wake(c.waiter)
		c.waiter = api.FiberID{}
	}
}

func (c *Chan[T]) dropWaiter(id api.FiberID) {
	if c.waiter == id {
		c.waiter = api.FiberID{}
	}
}
