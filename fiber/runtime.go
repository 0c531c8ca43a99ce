//go:build linux && amd64

// File: fiber/runtime.go
// Package fiber: per-thread runtime instance and entry point.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/arch"
	"github.com/momentics/hioload-fiber/internal/stack"
	"github.com/momentics/hioload-fiber/reactor"
)

// registry maps OS thread id to its runtime instance. Looked up once per
// public API call; the scheduler loop threads the *Runtime explicitly, so
// nothing inside a scheduling tick touches shared state.
var registry sync.Map // int (tid) -> *Runtime

// Runtime is one single-threaded scheduler instance. Everything it owns is
// accessed only from the hosting OS thread while a fiber (or Run itself)
// executes; no locking, no atomics.
type Runtime struct {
	cfg api.Config
	log zerolog.Logger

	table  *table
	ready  *queue.Queue // FIFO of api.FiberID
	rx     *reactor.Reactor
	stacks *stack.Pool

	running api.FiberID
	origin  arch.Continuation // host context under Run

	spawned uint64
}

func active() *Runtime {
	v, _ := registry.Load(unix.Gettid())
	rt, _ := v.(*Runtime)
	return rt
}

func mustActive() *Runtime {
	rt := active()
	if rt == nil {
		panic("fiber: no runtime on this thread (call inside fiber.Run)")
	}
	return rt
}

// Run initializes a runtime on the calling OS thread, executes fn as the
// root fiber and drives the scheduler until the root and every descendant
// have finished. The thread is locked for the duration. A panic escaping
// any fiber that nothing joined is returned as *api.PanicError.
//
// Re-entering Run on a thread that already hosts a runtime panics.
func Run[T any](fn func() (T, error), opts ...Option) (T, error) {
	var zero T

	if !arch.Supported() {
		return zero, fmt.Errorf("fiber: unsupported CPU or platform")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	o := buildOptions(opts)
	rx, err := reactor.New(o.cfg.RingEntries)
	if err != nil {
		return zero, err
	}
	rt := &Runtime{
		cfg:    o.cfg,
		log:    o.logger,
		table:  newTable(),
		ready:  queue.New(),
		rx:     rx,
		stacks: stack.NewPool(o.cfg.StackCacheSize, o.cfg.HugePages),
	}

	tid := unix.Gettid()
	if _, loaded := registry.LoadOrStore(tid, rt); loaded {
		_ = rx.Close()
		panic(api.ErrRuntimeActive)
	}
	defer registry.Delete(tid)
	defer rt.stacks.Drain()
	defer func() { _ = rt.rx.Close() }()

	rootID, err := rt.newFiber(func() (any, error) { return fn() }, api.FiberID{}, false)
	if err != nil {
		return zero, err
	}
	root := rt.table.get(rootID)
	root.state = api.StateRunning
	rt.running = rootID
	rt.log.Debug().Stringer("fiber", rootID).Msg("root start")

	// Enter the scheduler; the root's trampoline jumps back here once the
	// whole tree has drained.
	arch.Jump(&rt.origin, &root.cont)

	var out T
	var outErr error
	if root.panicked {
		outErr = &api.PanicError{Value: root.panicVal}
	} else {
		out, _ = root.value.(T)
		outErr = root.err
	}
	rt.releaseSlot(root)

	if n := rt.table.live(); n != 0 {
		panic(fmt.Sprintf("fiber: %d fibers leaked past root exit", n))
	}
	if n := rt.rx.WaiterCount(); n != 0 {
		panic(fmt.Sprintf("fiber: %d reactor waiters leaked past root exit", n))
	}
	return out, outErr
}

// newFiber allocates stack and slot for entry and prepares its first frame.
// The caller links it to a parent and enqueues it.
func (rt *Runtime) newFiber(entry func() (any, error), parent api.FiberID, inheritCancel bool) (api.FiberID, error) {
	s, err := rt.stacks.Acquire(rt.cfg.StackSize)
	if err != nil {
		return api.FiberID{}, fmt.Errorf("%w: %v", api.ErrResourceExhausted, err)
	}
	rec := &record{
		state:     api.StateReady,
		stack:     s,
		entry:     entry,
		parent:    parent,
		children:  make(map[uint32]api.FiberID),
		unjoined:  make(map[uint32]api.FiberID),
		cancelled: inheritCancel,
	}
	id, err := rt.table.alloc(rec)
	if err != nil {
		rt.stacks.Release(s)
		return api.FiberID{}, err
	}
	rec.cont = arch.Prepare(s.Top(), trampolinePC)
	rt.spawned++
	return id, nil
}

// releaseSlot frees a finished fiber's slot and stack, deferring while the
// reactor still holds cookies for it (in-flight SQEs may reference the
// stack).
func (rt *Runtime) releaseSlot(rec *record) {
	if rec.pendingOps > 0 {
		rec.pendingReap = true
		return
	}
	if rec.stack != nil {
		rt.stacks.Release(rec.stack)
		rec.stack = nil
	}
	rt.table.release(rec.id)
}

// Stats snapshots the runtime counters. Callable only from inside Run.
func Stats() api.Stats {
	rt := mustActive()
	ps := rt.stacks.Stats()
	rs := rt.rx.Stats()
	return api.Stats{
		FibersLive:    rt.table.live(),
		FibersSpawned: rt.spawned,
		StacksLive:    ps.Live,
		StacksPooled:  ps.Pooled,
		StacksMapped:  ps.Mapped,
		SQESubmitted:  rs.SQESubmitted,
		CQEReaped:     rs.CQEReaped,
		Cancellations: rs.Cancellations,
		WaitersParked: rt.rx.WaiterCount(),
	}
}
