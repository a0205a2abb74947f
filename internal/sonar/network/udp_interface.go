// Package network moves sonar frames over UDP: a listener that feeds a
// reassembler, a paced sender, a live frame buffer and a pcap replay
// source.
package network

import (
	"net"
	"sync"
	"time"
)

// DefaultPort is the UDP port senders and receivers agree on by default.
const DefaultPort = 5700

// UDPSocket defines the socket operations the listener needs.
// This abstraction enables unit testing without real network connections.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory creates listening sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// DatagramWriter is a connected socket the sender writes datagrams to.
type DatagramWriter interface {
	Write(b []byte) (int, error)
	Close() error
}

// RealUDPSocketFactory implements UDPSocketFactory using net.ListenUDP.
// *net.UDPConn satisfies UDPSocket directly.
type RealUDPSocketFactory struct{}

// ListenUDP creates a new UDP socket.
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPSocket implements UDPSocket for testing. Once Packets are
// exhausted every read times out, like an idle socket.
type MockUDPSocket struct {
	mu sync.Mutex

	Packets        [][]byte
	ReadIndex      int
	Closed         bool
	ReadBufferSize int
	Timeouts       int
	LocalAddress   *net.UDPAddr
	deadline       time.Time

	// ReadError is returned once by the next ReadFromUDP call.
	ReadError error
	// SetReadBufferError is returned by SetReadBuffer if set.
	SetReadBufferError error
}

// NewMockUDPSocket creates a MockUDPSocket returning packets in order.
func NewMockUDPSocket(packets ...[]byte) *MockUDPSocket {
	return &MockUDPSocket{
		Packets:      packets,
		LocalAddress: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: DefaultPort},
	}
}

func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, nil, net.ErrClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		return 0, nil, err
	}
	if m.ReadIndex >= len(m.Packets) {
		m.Timeouts++
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	return copy(b, pkt), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}, nil
}

// Push queues more packets.
func (m *MockUDPSocket) Push(packets ...[]byte) {
	m.mu.Lock()
	m.Packets = append(m.Packets, packets...)
	m.mu.Unlock()
}

func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetReadBufferError != nil {
		return m.SetReadBufferError
	}
	m.ReadBufferSize = bytes
	return nil
}

func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	m.deadline = t
	m.mu.Unlock()
	return nil
}

// ReadDeadline returns the most recently set read deadline.
func (m *MockUDPSocket) ReadDeadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}

func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

func (m *MockUDPSocket) LocalAddr() net.Addr { return m.LocalAddress }

// Drained reports whether every queued packet has been read.
func (m *MockUDPSocket) Drained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReadIndex >= len(m.Packets)
}

// MockUDPSocketFactory implements UDPSocketFactory for testing.
type MockUDPSocketFactory struct {
	Socket *MockUDPSocket
	Error  error
	Addrs  []*net.UDPAddr
}

func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.Addrs = append(f.Addrs, laddr)
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

// MockDatagramWriter records written datagrams.
type MockDatagramWriter struct {
	mu        sync.Mutex
	Datagrams [][]byte
	Err       error
	Closed    bool
}

func (w *MockDatagramWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return 0, w.Err
	}
	w.Datagrams = append(w.Datagrams, append([]byte(nil), b...))
	return len(b), nil
}

func (w *MockDatagramWriter) Close() error {
	w.mu.Lock()
	w.Closed = true
	w.mu.Unlock()
	return nil
}

// Written returns a copy of the datagrams written so far.
func (w *MockDatagramWriter) Written() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.Datagrams...)
}

// timeoutError implements net.Error for timeout simulation.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
