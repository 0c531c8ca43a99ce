//go:build linux

// File: internal/uring/uring.go
// Package uring holds the raw io_uring bindings the reactor is built on.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Layouts mirror include/uapi/linux/io_uring.h for kernels >= 6.1.

package uring

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmap offsets.
const (
	offSQRing = 0
	offCQRing = 0x8000000
	offSQEs   = 0x10000000
)

// Setup features negotiated with the kernel.
const (
	FeatSingleMmap uint32 = 1 << 0
	FeatNoDrop     uint32 = 1 << 1
	FeatFastPoll   uint32 = 1 << 5
	FeatExtArg     uint32 = 1 << 8
)

// io_uring_enter flags.
const (
	EnterGetEvents uint32 = 1 << 0
)

type sqOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	userAddr    uint64
}

type cqOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	userAddr    uint64
}

type params struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        sqOffsets
	cqOff        cqOffsets
}

// Ring owns one io_uring instance: the ring fd and the three shared
// mappings. All submission-side access is single-threaded; tail/head
// publishes use release/acquire stores because the kernel reads them
// concurrently.
type Ring struct {
	fd       int
	features uint32

	sqRing []byte
	cqRing []byte
	sqeMem []byte

	sqHead    *uint32
	sqTail    *uint32
	sqMask    uint32
	sqEntries uint32
	sqArray   []uint32
	sqes      []SQE
	sqLocal   uint32 // unsubmitted local tail

	cqHead    *uint32
	cqTail    *uint32
	cqMask    uint32
	cqEntries uint32
	cqes      []CQE
}

// Setup creates a ring with the requested SQ size. Oversized requests are
// clamped by the kernel rather than rejected.
func Setup(entries uint32) (*Ring, error) {
	var p params
	p.flags = 1 << 4 // IORING_SETUP_CLAMP
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP,
		uintptr(entries), uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("io_uring_setup: %w", errno)
	}

	r := &Ring{fd: int(fd), features: p.features}

	sqSize := int(p.sqOff.array + p.sqEntries*4)
	cqSize := int(p.cqOff.cqes) + int(p.cqEntries)*int(unsafe.Sizeof(CQE{}))

	var err error
	r.sqRing, err = unix.Mmap(r.fd, offSQRing, sqSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Close(r.fd)
		return nil, fmt.Errorf("mmap sq ring: %w", err)
	}
	r.cqRing, err = unix.Mmap(r.fd, offCQRing, cqSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Munmap(r.sqRing)
		_ = unix.Close(r.fd)
		return nil, fmt.Errorf("mmap cq ring: %w", err)
	}
	r.sqeMem, err = unix.Mmap(r.fd, offSQEs,
		int(p.sqEntries)*int(unsafe.Sizeof(SQE{})),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		_ = unix.Munmap(r.cqRing)
		_ = unix.Munmap(r.sqRing)
		_ = unix.Close(r.fd)
		return nil, fmt.Errorf("mmap sqes: %w", err)
	}

	sqBase := unsafe.Pointer(&r.sqRing[0])
	r.sqHead = (*uint32)(unsafe.Add(sqBase, p.sqOff.head))
	r.sqTail = (*uint32)(unsafe.Add(sqBase, p.sqOff.tail))
	r.sqMask = *(*uint32)(unsafe.Add(sqBase, p.sqOff.ringMask))
	r.sqEntries = p.sqEntries
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Add(sqBase, p.sqOff.array)), p.sqEntries)
	r.sqes = unsafe.Slice((*SQE)(unsafe.Pointer(&r.sqeMem[0])), p.sqEntries)
	r.sqLocal = *r.sqTail

	cqBase := unsafe.Pointer(&r.cqRing[0])
	r.cqHead = (*uint32)(unsafe.Add(cqBase, p.cqOff.head))
	r.cqTail = (*uint32)(unsafe.Add(cqBase, p.cqOff.tail))
	r.cqMask = *(*uint32)(unsafe.Add(cqBase, p.cqOff.ringMask))
	r.cqEntries = p.cqEntries
	r.cqes = unsafe.Slice((*CQE)(unsafe.Add(cqBase, p.cqOff.cqes)), p.cqEntries)

	return r, nil
}

// Features returns the negotiated IORING_FEAT bits.
func (r *Ring) Features() uint32 { return r.features }

// SQEntries returns the SQ capacity granted by the kernel.
func (r *Ring) SQEntries() uint32 { return r.sqEntries }

// SQSpace returns how many SQEs can still be staged before a flush.
func (r *Ring) SQSpace() uint32 {
	head := atomic.LoadUint32(r.sqHead)
	return r.sqEntries - (r.sqLocal - head)
}

// Pending returns the number of staged-but-unsubmitted SQEs.
func (r *Ring) Pending() uint32 {
	return r.sqLocal - atomic.LoadUint32(r.sqTail)
}

// NextSQE stages a zeroed SQE slot. Returns nil when the SQ is full; the
// caller must Submit and retry.
func (r *Ring) NextSQE() *SQE {
	head := atomic.LoadUint32(r.sqHead)
	if r.sqLocal-head >= r.sqEntries {
		return nil
	}
	idx := r.sqLocal & r.sqMask
	r.sqArray[idx] = idx
	r.sqLocal++
	sqe := &r.sqes[idx]
	*sqe = SQE{}
	return sqe
}

// Submit publishes staged SQEs and enters the kernel. minComplete > 0
// blocks for that many completions.
func (r *Ring) Submit(minComplete uint32) (int, error) {
	toSubmit := r.sqLocal - atomic.LoadUint32(r.sqTail)
	atomic.StoreUint32(r.sqTail, r.sqLocal)

	var flags uint32
	if minComplete > 0 {
		flags |= EnterGetEvents
	}
	for {
		n, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER,
			uintptr(r.fd), uintptr(toSubmit), uintptr(minComplete),
			uintptr(flags), 0, 0)
		if errno == unix.EINTR {
			toSubmit = 0 // already consumed; just wait again
			continue
		}
		if errno != 0 {
			return 0, fmt.Errorf("io_uring_enter: %w", errno)
		}
		return int(n), nil
	}
}

// DrainCQ hands every available CQE to fn and frees the ring slots.
// Returns the number of entries drained.
func (r *Ring) DrainCQ(fn func(CQE)) int {
	head := *r.cqHead
	tail := atomic.LoadUint32(r.cqTail)
	n := 0
	for head != tail {
		fn(r.cqes[head&r.cqMask])
		head++
		n++
	}
	if n > 0 {
		atomic.StoreUint32(r.cqHead, head)
	}
	return n
}

// Close unmaps the rings and closes the fd.
func (r *Ring) Close() error {
	_ = unix.Munmap(r.sqeMem)
	_ = unix.Munmap(r.cqRing)
	_ = unix.Munmap(r.sqRing)
	return unix.Close(r.fd)
}
