//go:build linux && amd64

// File: transport/addr.go
// Package transport: sockaddr conversions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"fmt"
	"net/netip"
	"unsafe"

	"golang.org/x/sys/unix"
)

// rawSockaddr builds the kernel sockaddr for ap. The returned pin must be
// kept referenced until the CQE that consumed it is reaped.
func rawSockaddr(ap netip.AddrPort) (ptr unsafe.Pointer, size uint64, pin any, err error) {
	port := ap.Port()
	switch {
	case ap.Addr().Is4() || ap.Addr().Is4In6():
		sa := &unix.RawSockaddrInet4{
			Family: unix.AF_INET,
			Port:   htons(port),
			Addr:   ap.Addr().Unmap().As4(),
		}
		return unsafe.Pointer(sa), unix.SizeofSockaddrInet4, sa, nil
	case ap.Addr().Is6():
		sa := &unix.RawSockaddrInet6{
			Family: unix.AF_INET6,
			Port:   htons(port),
			Addr:   ap.Addr().As16(),
		}
		return unsafe.Pointer(sa), unix.SizeofSockaddrInet6, sa, nil
	default:
		return nil, 0, nil, fmt.Errorf("transport: invalid address %v", ap)
	}
}

// fromRawSockaddr decodes a kernel-filled sockaddr_storage.
func fromRawSockaddr(rsa *unix.RawSockaddrAny) (netip.AddrPort, error) {
	switch rsa.Addr.Family {
	case unix.AF_INET:
		sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(rsa))
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), ntohs(sa.Port)), nil
	case unix.AF_INET6:
		sa := (*unix.RawSockaddrInet6)(unsafe.Pointer(rsa))
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), ntohs(sa.Port)), nil
	default:
		return netip.AddrPort{}, fmt.Errorf("transport: unknown address family %d", rsa.Addr.Family)
	}
}

// localAddr reads the bound address of fd.
func localAddr(fd int) (netip.AddrPort, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("getsockname: %w", err)
	}
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)), nil
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port)), nil
	default:
		return netip.AddrPort{}, fmt.Errorf("transport: unknown sockaddr %T", sa)
	}
}

// Port fields of the raw structs are in network byte order.
func htons(v uint16) uint16 { return v<<8 | v>>8 }
func ntohs(v uint16) uint16 { return v<<8 | v>>8 }
