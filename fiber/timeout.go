//go:build linux && amd64

// File: fiber/timeout.go
// Package fiber: composable timeout built from racing spawns.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"errors"
	"os"
	"time"

	"github.com/momentics/hioload-fiber/api"
)

// WithTimeout runs fn in a child fiber and cancels it if it has not
// finished within d, returning os.ErrDeadlineExceeded in that case. This
// is the user-facing composable form; the kernel-side equivalent is the
// reactor's linked LINK_TIMEOUT submission.
func WithTimeout[T any](d time.Duration, fn func() (T, error)) (T, error) {
	var zero T

	work, err := Spawn(fn)
	if err != nil {
		return zero, err
	}

	fired := false
	watchdog, err := Spawn(func() (struct{}, error) {
		if err := Sleep(d); err != nil {
			return struct{}{}, err
		}
		fired = true
		work.Cancel()
		return struct{}{}, nil
	})
	if err != nil {
		// Run fn unbounded rather than leak it; the spawner decides what
		// exhaustion means.
		return work.Join()
	}

	out, workErr := work.Join()
	watchdog.Cancel()
	_, _ = watchdog.Join()

	if fired && errors.Is(workErr, api.ErrCancelled) {
		return zero, os.ErrDeadlineExceeded
	}
	return out, workErr
}
