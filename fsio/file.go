//go:build linux && amd64

// File: fsio/file.go
// Package fsio: file handle over the ring.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fsio

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/fiber"
	"github.com/momentics/hioload-fiber/internal/uring"
)

// File is an open file descriptor with a runtime-tracked position for the
// sequential Read/Write forms.
type File struct {
	fd   int32
	pos  uint64
	name string
}

// Open opens path read-only.
func Open(path string) (*File, error) {
	return OpenFile(path, unix.O_RDONLY, 0)
}

// Create truncates or creates path write-only with mode 0644.
func Create(path string) (*File, error) {
	return OpenFile(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 0o644)
}

// OpenFile opens path with explicit flags and mode through an OPENAT op.
func OpenFile(path string, flags int, mode uint32) (*File, error) {
	p, err := unix.BytePtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("fsio: %w", err)
	}
	res, err := fiber.Syscall(api.OpOpenat, func(sqe *uring.SQE) {
		uring.PrepOpenat(sqe, unix.AT_FDCWD, p, uint32(flags|unix.O_CLOEXEC), mode)
	}, p)
	if err != nil {
		return nil, fmt.Errorf("fsio: open %s: %w", path, err)
	}
	return &File{fd: res, name: path}, nil
}

// Name returns the path the file was opened with.
func (f *File) Name() string { return f.name }

// Fd returns the raw descriptor.
func (f *File) Fd() int32 { return f.fd }

// ReadAt reads into p at offset off. Returns io.EOF at end of file.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	res, err := fiber.Syscall(api.OpRead, func(sqe *uring.SQE) {
		uring.PrepRead(sqe, f.fd, p, uint64(off))
	}, p)
	if err != nil {
		return 0, err
	}
	if res == 0 {
		return 0, io.EOF
	}
	return int(res), nil
}

// WriteAt writes all of p at offset off.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	written := 0
	for written < len(p) {
		chunk := p[written:]
		res, err := fiber.Syscall(api.OpWrite, func(sqe *uring.SQE) {
			uring.PrepWrite(sqe, f.fd, chunk, uint64(off)+uint64(written))
		}, chunk)
		if err != nil {
			return written, err
		}
		written += int(res)
	}
	return written, nil
}

// Read reads from the tracked position, advancing it.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, int64(f.pos))
	f.pos += uint64(n)
	return n, err
}

// Write writes at the tracked position, advancing it.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, int64(f.pos))
	f.pos += uint64(n)
	return n, err
}

// Sync flushes file data and metadata to stable storage.
func (f *File) Sync() error {
	_, err := fiber.Syscall(api.OpFsync, func(sqe *uring.SQE) {
		uring.PrepFsync(sqe, f.fd, 0)
	})
	return err
}

// Datasync flushes file data, skipping metadata where the filesystem
// allows.
func (f *File) Datasync() error {
	_, err := fiber.Syscall(api.OpFsync, func(sqe *uring.SQE) {
		uring.PrepFsync(sqe, f.fd, uring.FsyncDatasync)
	})
	return err
}

// Close releases the descriptor through the ring.
func (f *File) Close() error {
	_, err := fiber.Syscall(api.OpClose, func(sqe *uring.SQE) {
		uring.PrepClose(sqe, f.fd)
	})
	return err
}
