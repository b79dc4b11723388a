//go:build !unix

package network

import (
	"errors"
	"net"
	"syscall"
	"time"
)

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}

// Wait is only implemented on unix platforms.
func Wait(handles []*Socket, timeout time.Duration) (ReadySet, error) {
	return 0, errors.ErrUnsupported
}

// Read performs one non-blocking receive into buf using an immediate read
// deadline.
func (s *Socket) Read(buf []byte) (int, error) {
	if s.closed.Load() {
		return 0, s.readError(net.ErrClosed)
	}
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		return 0, s.readError(err)
	}
	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, ErrWouldBlock
		}
		return 0, s.readError(err)
	}
	return n, nil
}
