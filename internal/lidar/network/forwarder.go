package network

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// DropCounter receives a tick for every datagram the forwarder discards.
type DropCounter interface {
	AddForwardDropped()
}

const forwardQueueSize = 1000

// PacketForwarder relays received datagrams to another UDP destination
// without blocking the receive loop. Datagrams are copied into a bounded
// queue and dropped when it is full. Copy buffers circulate through a free
// list, so once the queue has been filled no further buffers are allocated.
type PacketForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	free        chan []byte
	done        chan struct{}
	closed      atomic.Bool
	stats       DropCounter
	logInterval time.Duration
	address     string
	sent        atomic.Uint64
}

// NewPacketForwarder creates a forwarder sending to addr:port. stats may be
// nil.
func NewPacketForwarder(addr string, port int, stats DropCounter, logInterval time.Duration) (*PacketForwarder, error) {
	forwardAddress := net.JoinHostPort(addr, fmt.Sprint(port))
	forwardUDPAddr, err := net.ResolveUDPAddr("udp", forwardAddress)
	if err != nil {
		return nil, &SocketError{Op: "resolve", Addr: forwardAddress, Err: err}
	}

	conn, err := net.DialUDP("udp", nil, forwardUDPAddr)
	if err != nil {
		return nil, &SocketError{Op: "dial", Addr: forwardAddress, Err: err}
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}

	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, forwardQueueSize),
		free:        make(chan []byte, forwardQueueSize+1),
		done:        make(chan struct{}),
		stats:       stats,
		logInterval: logInterval,
		address:     forwardAddress,
	}, nil
}

// Start runs the send loop until ctx is done or the forwarder is closed.
// Write failures are summarised on the ops stream once per log interval.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		droppedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-f.done:
				return
			case packet := <-f.channel:
				_, err := f.conn.Write(packet)
				f.release(packet)
				if err != nil {
					droppedCount++
					lastError = err
					continue
				}
				f.sent.Add(1)
			case <-ticker.C:
				if droppedCount > 0 && lastError != nil {
					opsf("dropped %d forwarded packets due to errors (latest: %v)", droppedCount, lastError)
					droppedCount = 0
					lastError = nil
				}
			}
		}
	}()

	diagf("forwarding packets to %s", f.address)
}

// ForwardAsync queues a copy of packet. If the queue is full, or the
// forwarder is closed, the packet is dropped and counted. It is safe to
// call concurrently with Close.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	if f.closed.Load() {
		f.drop()
		return
	}

	var buf []byte
	select {
	case buf = <-f.free:
	default:
	}
	buf = append(buf[:0], packet...)

	select {
	case f.channel <- buf:
	default:
		f.release(buf)
		f.drop()
	}
}

func (f *PacketForwarder) release(buf []byte) {
	select {
	case f.free <- buf:
	default:
	}
}

func (f *PacketForwarder) drop() {
	if f.stats != nil {
		f.stats.AddForwardDropped()
	}
}

// Sent is the number of datagrams written to the destination.
func (f *PacketForwarder) Sent() uint64 { return f.sent.Load() }

// Address is the destination host:port.
func (f *PacketForwarder) Address() string { return f.address }

// Close stops the send loop and closes the connection. Queued datagrams
// are discarded. Close is idempotent.
func (f *PacketForwarder) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(f.done)
	return f.conn.Close()
}
