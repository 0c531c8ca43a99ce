//go:build linux && amd64

// File: fiber/sleep.go
// Package fiber: timer primitive.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"errors"
	"syscall"
	"time"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/uring"
)

// Sleep parks the fiber for at least d using an io_uring TIMEOUT op.
// Returns api.ErrCancelled if the fiber is cancelled before the timer
// expires. A zero or negative duration still round-trips the scheduler.
func Sleep(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	ts := &uring.Timespec{
		Sec:  int64(d / time.Second),
		Nsec: int64(d % time.Second),
	}
	_, err := Syscall(api.OpTimeout, func(sqe *uring.SQE) {
		uring.PrepTimeout(sqe, ts)
	}, ts)
	if err != nil {
		// Expiry is reported as -ETIME; that is the success path.
		var sys *api.SyscallError
		if errors.As(err, &sys) && sys.Errno == syscall.ETIME {
			return nil
		}
		return err
	}
	return nil
}
