//go:build linux && amd64

// File: transport/tcp.go
// Package transport: TCP listener and stream over the ring.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"fmt"
	"io"
	"net/netip"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/fiber"
	"github.com/momentics/hioload-fiber/internal/uring"
)

// Listener is a bound, listening TCP socket.
type Listener struct {
	fd   int32
	addr netip.AddrPort
}

// Listen binds addr ("127.0.0.1:0", "[::]:8080") and starts listening.
// Bind and listen are non-blocking syscalls and run inline; only Accept
// suspends.
func Listen(addr string) (*Listener, error) {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	family := unix.AF_INET
	if ap.Addr().Is6() && !ap.Addr().Is4In6() {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("setsockopt: %w", err)
	}

	var sa unix.Sockaddr
	if family == unix.AF_INET {
		sa = &unix.SockaddrInet4{Port: int(ap.Port()), Addr: ap.Addr().Unmap().As4()}
	} else {
		sa = &unix.SockaddrInet6{Port: int(ap.Port()), Addr: ap.Addr().As16()}
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind %v: %w", ap, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	local, err := localAddr(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &Listener{fd: int32(fd), addr: local}, nil
}

// Addr returns the bound address, with the kernel-chosen port resolved.
func (l *Listener) Addr() netip.AddrPort { return l.addr }

// Accept suspends until a connection arrives.
func (l *Listener) Accept() (*Conn, error) {
	storage := &unix.RawSockaddrAny{}
	length := new(uint32)
	*length = unix.SizeofSockaddrAny

	res, err := fiber.Syscall(api.OpAccept, func(sqe *uring.SQE) {
		uring.PrepAccept(sqe, l.fd,
			unsafe.Pointer(storage), unsafe.Pointer(length),
			unix.SOCK_CLOEXEC)
	}, storage, length)
	if err != nil {
		return nil, err
	}

	peer, err := fromRawSockaddr(storage)
	if err != nil {
		peer = netip.AddrPort{}
	}
	local, _ := localAddr(int(res))
	return &Conn{fd: res, local: local, remote: peer}, nil
}

// Close releases the listening socket through the ring.
func (l *Listener) Close() error {
	_, err := fiber.Syscall(api.OpClose, func(sqe *uring.SQE) {
		uring.PrepClose(sqe, l.fd)
	})
	return err
}

// Conn is a connected TCP stream. Read and Write suspend the fiber;
// io.Reader/io.Writer semantics otherwise.
type Conn struct {
	fd     int32
	local  netip.AddrPort
	remote netip.AddrPort
}

// Dial connects to addr.
func Dial(addr string) (*Conn, error) {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	family := unix.AF_INET
	if ap.Addr().Is6() && !ap.Addr().Is4In6() {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	ptr, size, pin, err := rawSockaddr(ap)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if _, err := fiber.Syscall(api.OpConnect, func(sqe *uring.SQE) {
		uring.PrepConnect(sqe, int32(fd), ptr, size)
	}, pin); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	local, _ := localAddr(fd)
	return &Conn{fd: int32(fd), local: local, remote: ap}, nil
}

// LocalAddr returns the local endpoint.
func (c *Conn) LocalAddr() netip.AddrPort { return c.local }

// RemoteAddr returns the peer endpoint.
func (c *Conn) RemoteAddr() netip.AddrPort { return c.remote }

// Read fills p with received bytes, suspending until at least one arrives.
// Returns io.EOF on orderly peer shutdown.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	res, err := fiber.Syscall(api.OpRead, func(sqe *uring.SQE) {
		uring.PrepRecv(sqe, c.fd, p)
	}, p)
	if err != nil {
		return 0, err
	}
	if res == 0 {
		return 0, io.EOF
	}
	return int(res), nil
}

// Write sends all of p, suspending as the socket applies back-pressure.
func (c *Conn) Write(p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		chunk := p[sent:]
		res, err := fiber.Syscall(api.OpWrite, func(sqe *uring.SQE) {
			uring.PrepSend(sqe, c.fd, chunk)
		}, chunk)
		if err != nil {
			return sent, err
		}
		sent += int(res)
	}
	return sent, nil
}

// Shutdown half-closes the stream; how is unix.SHUT_RD, SHUT_WR or
// SHUT_RDWR.
func (c *Conn) Shutdown(how int) error {
	_, err := fiber.Syscall(api.OpShutdown, func(sqe *uring.SQE) {
		uring.PrepShutdown(sqe, c.fd, int32(how))
	})
	return err
}

// Close releases the socket through the ring.
func (c *Conn) Close() error {
	_, err := fiber.Syscall(api.OpClose, func(sqe *uring.SQE) {
		uring.PrepClose(sqe, c.fd)
	})
	return err
}
