package network

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"syscall"

	"golang.org/x/net/ipv4"
)

// DefaultRcvBuf is the receive buffer requested for lidar sockets.
const DefaultRcvBuf = 1024 * 1024

// ListenerConfig configures one UDP listener.
type ListenerConfig struct {
	Address        string // bind host; empty binds all interfaces
	Port           int    // 0 picks an ephemeral port
	RcvBuf         int    // defaults to DefaultRcvBuf
	MulticastGroup string // optional IPv4 group to join
	Interface      string // interface for the group join; empty lets the kernel pick
}

// Socket is a bound, non-blocking, address-reusable UDP socket.
type Socket struct {
	conn   *net.UDPConn
	raw    syscall.RawConn
	fd     uintptr
	port   int
	closed atomic.Bool
}

// ListenUDP binds a UDP socket as described by cfg. Any bind, option or
// group-join failure is a *SocketError and leaves nothing open.
func ListenUDP(ctx context.Context, cfg ListenerConfig) (*Socket, error) {
	if cfg.RcvBuf <= 0 {
		cfg.RcvBuf = DefaultRcvBuf
	}
	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))

	var group net.IP
	if cfg.MulticastGroup != "" {
		group = net.ParseIP(cfg.MulticastGroup)
		if group == nil || group.To4() == nil || !group.IsMulticast() {
			return nil, &SocketError{Op: "join", Addr: cfg.MulticastGroup, Err: fmt.Errorf("not an IPv4 multicast group")}
		}
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, &SocketError{Op: "listen", Addr: addr, Err: err}
	}
	conn := pc.(*net.UDPConn)

	if err := conn.SetReadBuffer(cfg.RcvBuf); err != nil {
		conn.Close()
		return nil, &SocketError{Op: "setsockopt", Addr: addr, Err: fmt.Errorf("receive buffer %d: %w", cfg.RcvBuf, err)}
	}

	if group != nil {
		if err := joinGroup(conn, group, cfg.Interface); err != nil {
			conn.Close()
			return nil, &SocketError{Op: "join", Addr: group.String(), Err: err}
		}
		diagf("joined multicast group %s on %s", group, ifaceName(cfg.Interface))
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, &SocketError{Op: "listen", Addr: addr, Err: err}
	}
	s := &Socket{conn: conn, raw: raw}
	if err := raw.Control(func(fd uintptr) { s.fd = fd }); err != nil {
		conn.Close()
		return nil, &SocketError{Op: "listen", Addr: addr, Err: err}
	}
	s.port = conn.LocalAddr().(*net.UDPAddr).Port

	diagf("UDP listener bound on %s with receive buffer %d bytes", conn.LocalAddr(), cfg.RcvBuf)
	return s, nil
}

func joinGroup(conn *net.UDPConn, group net.IP, name string) error {
	var ifi *net.Interface
	if name != "" {
		var err error
		if ifi, err = net.InterfaceByName(name); err != nil {
			return err
		}
	}
	return ipv4.NewPacketConn(conn).JoinGroup(ifi, &net.UDPAddr{IP: group})
}

func ifaceName(name string) string {
	if name == "" {
		return "default interface"
	}
	return name
}

// Port is the bound local port.
func (s *Socket) Port() int { return s.port }

// LocalAddr returns the bound local address.
func (s *Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close releases the socket. Further Wait or Read calls on it fail.
func (s *Socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.conn.Close()
}

func (s *Socket) readError(err error) error {
	return &ReadError{Port: s.port, Err: err}
}
