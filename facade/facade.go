//go:build linux && amd64

// File: facade/facade.go
// Unified entry layer for multi-instance deployments.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One fiber runtime serves one OS thread; parallelism across cores comes
// from running independent instances. RunEach launches n of them, each on
// its own locked, pinned thread, and joins them through an errgroup.

package facade

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-fiber/affinity"
	"github.com/momentics/hioload-fiber/control"
	"github.com/momentics/hioload-fiber/fiber"
)

// RunEach runs fn in n independent runtime instances, one per OS thread,
// pinned round-robin over the logical CPUs. It returns the first error.
// Instances share nothing; fn receives the instance index for sharding.
func RunEach(n int, fn func(instance int) error, opts ...fiber.Option) error {
	return RunEachStats(n, nil, fn, opts...)
}

// RunEachStats is RunEach with per-instance statistics published to reg
// (keyed "instance-<i>") when fn returns, before the root's scope exit
// drains any children still live. reg may be nil.
func RunEachStats(n int, reg *control.StatsRegistry, fn func(instance int) error, opts ...fiber.Option) error {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	cpus := runtime.NumCPU()

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			// fiber.Run locks the thread; pinning must happen on the same
			// goroutine so the lock covers it.
			runtime.LockOSThread()
			if err := affinity.SetAffinity(i % cpus); err != nil {
				// Pinning is an optimization; refusal (cpusets, containers)
				// is not fatal.
				_ = err
			}
			_, err := fiber.Run(func() (struct{}, error) {
				defer func() {
					if reg != nil {
						reg.Publish(fmt.Sprintf("instance-%d", i), fiber.Stats())
					}
				}()
				return struct{}{}, fn(i)
			}, opts...)
			return err
		})
	}
	return g.Wait()
}
