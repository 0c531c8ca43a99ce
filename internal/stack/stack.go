//go:build linux

// File: internal/stack/stack.go
// Package stack allocates guard-paged fiber stacks.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stack

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// Canary is written at the lowest usable word of every stack and checked at
// each park. A mismatch means the guard page was bypassed.
const Canary uint64 = 0x7ac7ac7ac7ac7ac7

// Stack is a fixed-size virtual allocation. Addresses grow downward from
// Top; the page at mapping base is PROT_NONE so overflow faults instead of
// corrupting neighbours.
type Stack struct {
	mapping []byte
	usable  int
}

// New maps a stack with usable bytes of writable memory above one guard
// page. usable is rounded up to a page multiple.
func New(usable int, hugePages bool) (*Stack, error) {
	usable = roundUpPage(usable)
	length := usable + pageSize

	mem, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("stack mmap: %w", err)
	}

	// Guard page at the low end, where a growing stack would run into it.
	if err := unix.Mprotect(mem[:pageSize], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(mem)
		return nil, fmt.Errorf("stack guard mprotect: %w", err)
	}

	if hugePages {
		// Advisory only; ENOMEM or EINVAL here is not fatal.
		_ = unix.Madvise(mem[pageSize:], unix.MADV_HUGEPAGE)
	}

	s := &Stack{mapping: mem, usable: usable}
	*s.canaryPtr() = Canary
	return s, nil
}

// Top returns the highest stack address, where the first frame is laid out.
func (s *Stack) Top() uintptr {
	return uintptr(unsafe.Pointer(&s.mapping[0])) + uintptr(len(s.mapping))
}

// Usable returns the writable byte count.
func (s *Stack) Usable() int { return s.usable }

// CheckCanary panics if the canary word was overwritten.
func (s *Stack) CheckCanary() {
	if *s.canaryPtr() != Canary {
		panic("fiber stack overflow")
	}
}

// Unmap releases the mapping. The Stack must not be used afterwards.
func (s *Stack) Unmap() error {
	mem := s.mapping
	s.mapping = nil
	return unix.Munmap(mem)
}

func (s *Stack) canaryPtr() *uint64 {
	return (*uint64)(unsafe.Pointer(&s.mapping[pageSize]))
}

func roundUpPage(n int) int {
	if n <= 0 {
		n = pageSize
	}
	return (n + pageSize - 1) &^ (pageSize - 1)
}
