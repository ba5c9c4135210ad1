// Package mocktransport is a test double for transport.Capability, in the
// style of katzensocks/client/client_test.go's scripted fake-dialer tests:
// instead of reaching the network, it hands back one end of an in-memory
// net.Pipe and exposes the other end to the test so it can script exactly
// what bytes arrive and when.
//
// net.Pipe is synchronous and unbuffered, so each Peer.Write call is
// delivered to the client's Socket as exactly one Readable chunk. Tests
// rely on this to distinguish a "fused" multi-field delivery (one Write
// covering several fields) from separate ones (one Write per field).
package mocktransport

import (
	"context"
	"net"
	"sync"

	"github.com/katzenpost/torsion/transport"
)

// Peer is the server-side handle for one connection accepted by a Mock.
type Peer struct {
	Host string
	Port uint16

	conn net.Conn
}

// Write sends b to the client. It blocks until the client's read pump
// consumes it, so tests should call it from their own goroutine if the
// client side is expected to be busy doing something else first.
func (p *Peer) Write(b []byte) (int, error) { return p.conn.Write(b) }

// Close ends the connection from the server side, simulating a peer
// disconnect.
func (p *Peer) Close() error { return p.conn.Close() }

// Conn exposes the server-side net.Conn directly, for tests that need to
// read raw bytes the client wrote.
func (p *Peer) Conn() net.Conn { return p.conn }

// Mock is a transport.Capability whose Open calls are answered entirely
// in-memory.
type Mock struct {
	notifier *transport.ReadyNotifier

	mu           sync.Mutex
	attempts     int
	flakyAttempt int

	conns chan *Peer
}

// New returns a Mock that is not yet SOCKS-ready. The first flakyAttempts
// calls to Open succeed in establishing a TCP-level connection but have
// the peer immediately disconnect, simulating the "three flaky connects"
// scenario; attempts after that hand a live Peer to the Conns channel for
// the test to drive.
func New(flakyAttempts int) *Mock {
	return &Mock{
		notifier:     transport.NewReadyNotifier(),
		flakyAttempt: flakyAttempts,
		conns:        make(chan *Peer, 16),
	}
}

// SetReady marks the mock's SOCKS endpoint usable, as the real Tor
// supervisor would once bootstrap completes.
func (m *Mock) SetReady() { m.notifier.SetReady() }

// IsSOCKSReady implements transport.Capability.
func (m *Mock) IsSOCKSReady() bool { return m.notifier.IsReady() }

// Ready implements transport.Capability.
func (m *Mock) Ready() <-chan struct{} { return m.notifier.Ready() }

// Conns delivers a Peer for every Open call that was not scripted to be
// flaky.
func (m *Mock) Conns() <-chan *Peer { return m.conns }

// Attempts returns how many times Open has been called so far.
func (m *Mock) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Open implements transport.Capability.
func (m *Mock) Open(ctx context.Context, host string, port uint16) (*transport.Socket, error) {
	m.mu.Lock()
	m.attempts++
	n := m.attempts
	m.mu.Unlock()

	client, server := net.Pipe()

	if n <= m.flakyAttempt {
		_ = server.Close()
		return transport.NewSocket(client), nil
	}

	m.conns <- &Peer{Host: host, Port: port, conn: server}
	return transport.NewSocket(client), nil
}

var _ transport.Capability = (*Mock)(nil)
