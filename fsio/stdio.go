//go:build linux && amd64

// File: fsio/stdio.go
// Package fsio: process stdio through the ring.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fsio

import (
	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/fiber"
	"github.com/momentics/hioload-fiber/internal/uring"
)

// Print writes s to standard output, suspending the fiber instead of the
// thread.
func Print(s string) error { return writeAll(1, s) }

// Eprint writes s to standard error.
func Eprint(s string) error { return writeAll(2, s) }

func writeAll(fd int32, s string) error {
	buf := []byte(s)
	for len(buf) > 0 {
		chunk := buf
		res, err := fiber.Syscall(api.OpWrite, func(sqe *uring.SQE) {
			uring.PrepWrite(sqe, fd, chunk, 0)
		}, chunk)
		if err != nil {
			return err
		}
		buf = buf[res:]
	}
	return nil
}
