// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package fiber is a single-threaded concurrency runtime multiplexing
// stackful fibers over io_uring. Run starts a runtime instance on the
// calling OS thread and drives the root fiber plus all of its descendants
// to completion. Fibers are spawned with Spawn, joined through handles, and
// cancelled cooperatively: cancellation marks a whole subtree and is
// observed at the next check point (any I/O call, Yield, Join).
//
// A fiber may never outlive the fiber that spawned it. When a fiber's entry
// function returns, still-live children are cancelled and joined before the
// fiber finishes.
//
// One runtime instance serves one OS thread and shares no state with other
// instances; parallelism is achieved by running independent instances (see
// the facade package).
package fiber
