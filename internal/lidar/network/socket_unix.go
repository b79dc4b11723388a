//go:build unix

package network

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	if serr != nil {
		return fmt.Errorf("SO_REUSEADDR: %w", serr)
	}
	return nil
}

// Wait blocks up to timeout until at least one socket has a datagram queued
// and returns the ready set. A timeout, or a signal interrupting the wait,
// yields an empty set and no error. A negative timeout waits indefinitely.
// At most MaxHandles sockets can be waited on.
func Wait(handles []*Socket, timeout time.Duration) (ReadySet, error) {
	if len(handles) > MaxHandles {
		return 0, fmt.Errorf("wait: %d handles exceeds limit of %d", len(handles), MaxHandles)
	}
	var fds [MaxHandles]unix.PollFd
	for i, h := range handles {
		if h == nil || h.closed.Load() {
			return 0, fmt.Errorf("wait: handle %d: %w", i, net.ErrClosed)
		}
		fds[i] = unix.PollFd{Fd: int32(h.fd), Events: unix.POLLIN}
	}

	n, err := unix.Poll(fds[:len(handles)], pollTimeout(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("wait: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	var ready ReadySet
	for i := range handles {
		ev := fds[i].Revents
		if ev&unix.POLLNVAL != 0 {
			return 0, fmt.Errorf("wait: handle %d: %w", i, net.ErrClosed)
		}
		if ev&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 {
			ready = ready.With(i)
		}
	}
	return ready, nil
}

func pollTimeout(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if ms == 0 && d > 0 {
		ms = 1
	}
	return int(ms)
}

// Read performs one non-blocking receive into buf. It returns ErrWouldBlock
// when nothing is queued and a *ReadError on any hard failure. A datagram
// longer than buf is truncated.
func (s *Socket) Read(buf []byte) (int, error) {
	if s.closed.Load() {
		return 0, s.readError(net.ErrClosed)
	}
	var n int
	var rerr error
	err := s.raw.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), buf)
		return true
	})
	if err != nil {
		return 0, s.readError(err)
	}
	if rerr != nil {
		if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) || errors.Is(rerr, unix.EINTR) {
			return 0, ErrWouldBlock
		}
		return 0, s.readError(rerr)
	}
	return n, nil
}
