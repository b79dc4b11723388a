package network

import (
	"errors"
	"net"
	"sync"
	"time"
)

// Source is the receive side of a pipeline: a fixed, ordered set of handles
// that can be waited on together and read one at a time.
type Source interface {
	// Wait blocks up to timeout and returns the handles with data pending.
	Wait(timeout time.Duration) (ReadySet, error)
	// Read performs one non-blocking receive on handle into buf.
	Read(handle int, buf []byte) (int, error)
	// Close releases every handle.
	Close() error
}

// SocketSet implements Source over real sockets. Handle i is SocketSet[i].
type SocketSet []*Socket

// Wait waits on every socket in the set.
func (s SocketSet) Wait(timeout time.Duration) (ReadySet, error) {
	return Wait(s, timeout)
}

// Read reads from the socket at index handle.
func (s SocketSet) Read(handle int, buf []byte) (int, error) {
	if handle < 0 || handle >= len(s) {
		return 0, &ReadError{Port: -1, Err: errors.New("handle out of range")}
	}
	return s[handle].Read(buf)
}

// Close closes every socket and returns the first error.
func (s SocketSet) Close() error {
	var first error
	for _, sock := range s {
		if sock == nil {
			continue
		}
		if err := sock.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MockPacket is one queued datagram for MockSource.
type MockPacket struct {
	Handle int
	Data   []byte
}

// MockSource implements Source for testing. Packets are delivered in order,
// each only on its own handle. Once drained, Wait reports a timeout without
// sleeping.
type MockSource struct {
	mu sync.Mutex

	// Packets holds the datagrams to deliver.
	Packets []MockPacket
	// ReadIndex tracks the current position in Packets.
	ReadIndex int
	// Closed indicates whether Close was called.
	Closed bool
	// WaitCalls counts calls to Wait.
	WaitCalls int
	// WaitError is returned on the next Wait call if set.
	WaitError error
	// ReadError is returned on the next Read call if set.
	ReadError error
}

// NewMockSource creates a MockSource delivering packets on handle 0.
func NewMockSource(packets ...[]byte) *MockSource {
	m := &MockSource{}
	for _, p := range packets {
		m.Packets = append(m.Packets, MockPacket{Data: p})
	}
	return m
}

// Add queues a datagram on handle.
func (m *MockSource) Add(handle int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Packets = append(m.Packets, MockPacket{Handle: handle, Data: data})
}

// Drained reports whether every queued datagram has been read.
func (m *MockSource) Drained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReadIndex >= len(m.Packets)
}

// Wait reports the handle of the next queued datagram as ready.
func (m *MockSource) Wait(timeout time.Duration) (ReadySet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WaitCalls++
	if m.Closed {
		return 0, net.ErrClosed
	}
	if m.WaitError != nil {
		err := m.WaitError
		m.WaitError = nil
		return 0, err
	}
	if m.ReadIndex >= len(m.Packets) {
		return 0, nil
	}
	return ReadySet(0).With(m.Packets[m.ReadIndex].Handle), nil
}

// Read returns the next queued datagram if it belongs to handle.
func (m *MockSource) Read(handle int, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, &ReadError{Port: handle, Err: net.ErrClosed}
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		return 0, &ReadError{Port: handle, Err: err}
	}
	if m.ReadIndex >= len(m.Packets) || m.Packets[m.ReadIndex].Handle != handle {
		return 0, ErrWouldBlock
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	return copy(buf, pkt.Data), nil
}

// Close marks the source as closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
