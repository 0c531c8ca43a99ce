//go:build linux

// File: reactor/cookie.go
// Package reactor: submission cookie encoding.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "github.com/momentics/hioload-fiber/api"

// Cookie is the 64-bit user_data token placed in every SQE:
//
//	bits 63..32  fiber generation
//	bits 31..8   fiber slot
//	bits  7..0   operation kind
//
// Generation in the high bits makes stale completions detectable after a
// slot is reused.
type Cookie uint64

// CancelCookie marks the ASYNC_CANCEL SQEs themselves; their CQEs carry no
// waiter.
const CancelCookie Cookie = ^Cookie(0)

// maxSlot bounds the table size encodable in a cookie.
const maxSlot = 1<<24 - 1

// MakeCookie encodes a fiber id and op kind.
func MakeCookie(id api.FiberID, kind api.OpKind) Cookie {
	return Cookie(id.Gen)<<32 | Cookie(id.Slot&maxSlot)<<8 | Cookie(kind)
}

// Fiber decodes the originating fiber id.
func (c Cookie) Fiber() api.FiberID {
	return api.FiberID{Slot: uint32(c>>8) & maxSlot, Gen: uint32(c >> 32)}
}

// Kind decodes the operation kind.
func (c Cookie) Kind() api.OpKind { return api.OpKind(c & 0xff) }
