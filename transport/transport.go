// Package transport provides the Tor-tunneled TCP connection capability
// the Request State Machine depends on: a signal that the local Tor
// process's SOCKS port is usable, and a way to open a connection through
// it. The dialer itself lives in socks.go, adapted from the reference
// corpus's internal/proxy package; this file holds the Capability
// interface and the Socket event model shared by the real dialer and
// test doubles.
package transport

import (
	"context"
	"io"
	"sync"
)

// Capability is what the Request State Machine needs from the transport
// layer: whether the local SOCKS proxy is usable yet, a one-shot
// readiness signal, and a way to open a connection through it.
type Capability interface {
	// IsSOCKSReady reports whether the local Tor SOCKS endpoint is
	// currently usable.
	IsSOCKSReady() bool

	// Ready returns a channel that is closed the moment IsSOCKSReady
	// transitions from false to true. If it is already true, the
	// returned channel is already closed.
	Ready() <-chan struct{}

	// Open establishes a TCP stream to host:port through the local Tor
	// SOCKS proxy. It blocks until the connection is established or
	// fails; there is no separate asynchronous "connected" event because
	// Go's dial is itself the suspension point.
	Open(ctx context.Context, host string, port uint16) (*Socket, error)
}

// Socket is the live transport handed to a Request while a connection
// attempt is active. Reads are delivered as chunks on the Readable
// channel; the connection's end (error or explicit Close) is signaled by
// closing Closed, after which Err holds the terminal error, if any.
type Socket struct {
	conn io.ReadWriteCloser

	readable chan []byte
	closed   chan struct{}
	closeErr error

	closeOnce sync.Once
	detached  bool
	mu        sync.Mutex
}

// NewSocket wraps conn and starts its background read pump. It is
// exported so test doubles and the SOCKS5 dialer share one
// implementation of the event plumbing.
func NewSocket(conn io.ReadWriteCloser) *Socket {
	s := &Socket{
		conn:     conn,
		readable: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
	go s.readPump()
	return s
}

func (s *Socket) readPump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.readable <- chunk:
			case <-s.closed:
				return
			}
		}
		if err != nil {
			s.fail(err)
			return
		}
	}
}

func (s *Socket) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr == nil {
		s.closeErr = err
	}
	s.closeOnce.Do(func() { close(s.closed) })
}

// Readable delivers chunks of newly read bytes in arrival order.
func (s *Socket) Readable() <-chan []byte { return s.readable }

// Closed is closed once the connection has ended, whether due to a read
// error, a write error, or an explicit Close call.
func (s *Socket) Closed() <-chan struct{} { return s.closed }

// Err returns the error that caused Closed to fire, or nil if the socket
// was closed deliberately with no prior error.
func (s *Socket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// Write writes all of data, looping internally to cope with short writes;
// payloads in this protocol are small (< 2 KiB) but the contract still
// holds for larger ones.
func (s *Socket) Write(data []byte) error {
	for len(data) > 0 {
		n, err := s.conn.Write(data)
		if err != nil {
			s.fail(err)
			return err
		}
		data = data[n:]
	}
	return nil
}

// Close terminates the connection. It is safe to call more than once.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return s.conn.Close()
}

// Detach marks the socket as handed off to another owner (the session
// layer, per §6) so that a subsequent Close from the request's own
// teardown path becomes a no-op. It mirrors the distilled spec's
// invariant 3: the socket must survive the request's destruction once
// accepted.
func (s *Socket) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
}

// Detached reports whether Detach has been called.
func (s *Socket) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// Conn exposes the underlying connection, e.g. for handoff to the session
// layer which expects a plain net.Conn-shaped collaborator.
func (s *Socket) Conn() io.ReadWriteCloser { return s.conn }

// ReadyNotifier is a small one-shot broadcast of "SOCKS is ready now",
// adapted from the non-blocking-send-to-a-buffered-channel pattern used
// by the reference corpus's connection.onPKIFetch to signal readiness
// without blocking the signaler.
type ReadyNotifier struct {
	mu    sync.Mutex
	ready bool
	ch    chan struct{}
}

// NewReadyNotifier returns a ReadyNotifier that is not yet ready.
func NewReadyNotifier() *ReadyNotifier {
	return &ReadyNotifier{ch: make(chan struct{})}
}

// IsReady reports the current readiness state.
func (n *ReadyNotifier) IsReady() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

// Ready returns a channel closed once SetReady has been called.
func (n *ReadyNotifier) Ready() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// SetReady marks the notifier ready and wakes anyone waiting on Ready. It
// is idempotent.
func (n *ReadyNotifier) SetReady() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ready {
		return
	}
	n.ready = true
	close(n.ch)
}
