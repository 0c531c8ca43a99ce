//go:build linux && amd64

// File: fiber/signals.go
// Package fiber: signal delivery as a lazy sequence.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/uring"
)

// Signals blocks sigs for the hosting thread and yields them as they
// arrive, reading a signalfd through the ring. The sequence ends when the
// fiber is cancelled; any other failure is yielded once with a nil signal.
//
// With FAST_POLL negotiated the reads are poll-driven, so an idle sequence
// costs one parked fiber and one in-flight SQE.
func Signals(sigs ...os.Signal) iter.Seq2[os.Signal, error] {
	return func(yield func(os.Signal, error) bool) {
		var mask unix.Sigset_t
		for _, s := range sigs {
			signo, ok := s.(syscall.Signal)
			if !ok {
				yield(nil, fmt.Errorf("signals: not a POSIX signal: %v", s))
				return
			}
			sigaddset(&mask, int(signo))
		}

		var old unix.Sigset_t
		if err := unix.PthreadSigmask(unix.SIG_BLOCK, &mask, &old); err != nil {
			yield(nil, fmt.Errorf("signals: sigmask: %w", err))
			return
		}
		defer func() { _ = unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil) }()

		fd, err := unix.Signalfd(-1, &mask, unix.SFD_CLOEXEC)
		if err != nil {
			yield(nil, fmt.Errorf("signals: signalfd: %w", err))
			return
		}
		defer unix.Close(fd)

		buf := make([]byte, unsafe.Sizeof(unix.SignalfdSiginfo{}))
		for {
			n, err := Syscall(api.OpRead, func(sqe *uring.SQE) {
				uring.PrepRead(sqe, int32(fd), buf, 0)
			}, buf)
			if err != nil {
				if !errors.Is(err, api.ErrCancelled) {
					yield(nil, err)
				}
				return
			}
			if int(n) < len(buf) {
				yield(nil, fmt.Errorf("signals: short siginfo read: %d", n))
				return
			}
			info := (*unix.SignalfdSiginfo)(unsafe.Pointer(&buf[0]))
			if !yield(syscall.Signal(info.Signo), nil) {
				return
			}
		}
	}
}

func sigaddset(set *unix.Sigset_t, signo int) {
	set.Val[(signo-1)/64] |= 1 << (uint(signo-1) % 64)
}
