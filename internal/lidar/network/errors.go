package network

import (
	"errors"
	"fmt"
)

// ErrWouldBlock is returned by Read when no datagram is queued. It is not a
// failure.
var ErrWouldBlock = errors.New("no datagram available")

// SocketError reports a failure to create, bind, configure or connect a
// socket. It is fatal at start-up.
type SocketError struct {
	Op   string // "listen", "setsockopt", "join", "dial", ...
	Addr string
	Err  error
}

func (e *SocketError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("socket %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("socket %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *SocketError) Unwrap() error { return e.Err }

// ReadError reports a hard receive failure on a socket. The socket should be
// treated as unusable.
type ReadError struct {
	Port int // local port of the failing socket
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read udp port %d: %v", e.Port, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
