package contactrequest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	golog "github.com/op/go-logging"

	"github.com/katzenpost/torsion/internal/retry"
	"github.com/katzenpost/torsion/internal/worker"
	"github.com/katzenpost/torsion/keycap"
	"github.com/katzenpost/torsion/logging"
	"github.com/katzenpost/torsion/transport"
	"github.com/katzenpost/torsion/wire"
)

// DefaultPort is the TCP port every Torsion node listens for contact
// requests on, behind its hidden service.
const DefaultPort uint16 = 11009

// Config describes a single outbound contact request.
type Config struct {
	// Host is the target peer's hostname, passed to Transport.Open as
	// given, e.g. "abcdefghijklmnop.onion" (no "torsion:" prefix).
	Host string

	// Port is the peer's contact-request listener port. Zero means
	// DefaultPort.
	Port uint16

	// MyNickname and Message are the human-readable fields sent with the
	// request, chosen by the local user.
	MyNickname string
	Message    string

	// LocalHostname is this node's own 16-character identity string, sent
	// so the peer knows who is asking and can dial back.
	LocalHostname string

	// LocalSecret is a 16-byte value the peer echoes back out of band
	// (e.g. over a second channel) to let the local user correlate an
	// incoming contact with the request they sent; see the distilled
	// spec's description of local_secret.
	LocalSecret []byte

	// Key signs the request frame and is never transmitted in private
	// form.
	Key keycap.Capability

	// Transport dials the peer through Tor.
	Transport transport.Capability

	// Observer receives the four lifecycle callbacks. If nil, NopObserver
	// is used.
	Observer Observer

	// SessionHandoff, if set, is notified before Observer.OnAccepted so
	// the accepted connection can be folded into an existing session.
	SessionHandoff SessionHandoff

	// Policy governs reconnect delays. The zero value means
	// retry.DefaultPolicy.
	Policy retry.Policy

	// Log, if set, is used to derive a per-peer diagnostic logger via
	// GetPeerLogger, so concurrent requests to different peers can be
	// told apart in a shared log stream.
	Log *logging.Backend
}

func (c *Config) fixup() error {
	if c.Host == "" {
		return errors.New("contactrequest: Config.Host is required")
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if len(c.LocalHostname) != hostnameFieldSize {
		return errBadHostname
	}
	if len(c.LocalSecret) != localSecretFieldSize {
		return errBadLocalSecret
	}
	if c.Key == nil {
		return errors.New("contactrequest: Config.Key is required")
	}
	if c.Transport == nil {
		return errors.New("contactrequest: Config.Transport is required")
	}
	if c.Observer == nil {
		c.Observer = NopObserver{}
	}
	if c.Policy == (retry.Policy{}) {
		c.Policy = retry.DefaultPolicy
	}
	return nil
}

// Request is one outbound contact request's state machine. A Request is
// driven by a single internal goroutine, started by Send and stopped by
// Close; every exported accessor is safe to call from any goroutine.
type Request struct {
	cfg Config

	worker worker.Worker

	mu              sync.Mutex
	state           State
	response        Response
	connectAttempts int
	socket          *transport.Socket
	sendErr         error
	rejectCode      byte

	sent  bool
	inbuf []byte

	log *golog.Logger
}

// New validates cfg and returns a Request ready to Send.
func New(cfg Config) (*Request, error) {
	if err := cfg.fixup(); err != nil {
		return nil, err
	}
	r := &Request{cfg: cfg}
	if cfg.Log != nil {
		r.log = cfg.Log.GetPeerLogger("contactrequest", cfg.Host)
	}
	return r, nil
}

// State returns the current lifecycle state.
func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Response returns the current outcome, NoResponse until one is known.
func (r *Request) Response() Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// ConnectAttempts returns how many connection attempts have ended without
// a terminal response; an attempt still in progress is not counted.
func (r *Request) ConnectAttempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectAttempts
}

// Send starts the request's connection attempts. It returns
// ErrAlreadySent if called more than once, or ErrClosed if Close has
// already run.
func (r *Request) Send() error {
	r.mu.Lock()
	if r.sent {
		r.mu.Unlock()
		return ErrAlreadySent
	}
	if r.state == Done {
		r.mu.Unlock()
		return ErrClosed
	}
	r.sent = true
	r.mu.Unlock()

	r.worker.Go(r.run)
	return nil
}

// Close halts the request's goroutine and releases any open socket. It is
// idempotent and safe to call even if Send was never called.
func (r *Request) Close() error {
	r.worker.Halt()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.socket != nil && !r.socket.Detached() {
		_ = r.socket.Close()
	}
	r.socket = nil
	r.state = Done
	return nil
}

func (r *Request) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Request) setResponse(resp Response) {
	r.mu.Lock()
	r.response = resp
	r.mu.Unlock()
	r.cfg.Observer.OnResponseChanged(resp)
}

func (r *Request) logf(format string, args ...interface{}) {
	if r.log != nil {
		r.log.Debugf(format, args...)
	}
}

// run is the Request's entire lifecycle, executed on the worker goroutine.
func (r *Request) run() {
	r.driveConnectionAttempts()
}

// driveConnectionAttempts is the outer loop: wait for the transport to be
// usable, attempt a connection, and if it ends without a terminal
// response, back off and try again. Grounded on connection.go's
// connectWorker outer retry loop.
func (r *Request) driveConnectionAttempts() {
	halt := r.worker.HaltCh()

	for {
		if !r.cfg.Transport.IsSOCKSReady() {
			select {
			case <-r.cfg.Transport.Ready():
			case <-halt:
				return
			}
		}

		r.setState(WaitConnect)
		terminal := r.attemptConnection(halt)
		if terminal {
			return
		}

		r.mu.Lock()
		r.connectAttempts++
		attempt := r.connectAttempts
		r.mu.Unlock()

		delay := r.cfg.Policy.Delay(attempt)
		r.logf("contactrequest: reconnecting to %s in %s (attempt %d)", r.cfg.Host, delay, attempt)
		r.setState(Reconnecting)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-halt:
			timer.Stop()
			return
		}
	}
}

// attemptConnection dials once, drives the per-connection read loop, and
// reports whether a terminal outcome was reached (true) or the connection
// ended early and should be retried (false).
func (r *Request) attemptConnection(halt <-chan struct{}) (terminal bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-halt:
			cancel()
		case <-ctx.Done():
		}
	}()

	sock, err := r.cfg.Transport.Open(ctx, r.cfg.Host, r.cfg.Port)
	if err != nil {
		r.logf("contactrequest: connect to %s failed: %v", r.cfg.Host, err)
		if !retry.IsTransientError(err) {
			r.failLocal(err)
			return true
		}
		return false
	}

	r.mu.Lock()
	r.socket = sock
	r.inbuf = nil
	r.mu.Unlock()

	if err := sock.Write([]byte{protocolVersion, purposeContactReq}); err != nil {
		r.closeSocket()
		return false
	}

	for {
		select {
		case chunk := <-sock.Readable():
			if _, terminal := r.feed(chunk); terminal {
				return true
			}
		case <-sock.Closed():
			err := sock.Err()
			if err != nil {
				r.logf("contactrequest: connection to %s ended: %v", r.cfg.Host, err)
				if !retry.IsTransientError(err) {
					r.closeSocket()
					r.failLocal(err)
					return true
				}
			}
			r.closeSocket()
			return false
		case <-halt:
			r.closeSocket()
			return false
		}
	}
}

func (r *Request) closeSocket() {
	r.mu.Lock()
	sock := r.socket
	r.socket = nil
	r.mu.Unlock()
	if sock != nil && !sock.Detached() {
		_ = sock.Close()
	}
}

// feed appends chunk to the accumulation buffer and advances the state
// machine as far as the buffered bytes allow, looping internally so a
// connect-then-cookie pair delivered in a single underlying read (the
// "fused cookie" case) is handled within one feed call rather than
// waiting for a second Readable event.
func (r *Request) feed(chunk []byte) (consumedSomething, terminal bool) {
	r.mu.Lock()
	r.inbuf = append(r.inbuf, chunk...)
	r.mu.Unlock()

	for {
		advanced, term, err := r.advance()
		if err != nil {
			r.failLocal(err)
			return true, true
		}
		if term {
			return true, true
		}
		if !advanced {
			return consumedSomething, false
		}
		consumedSomething = true
	}
}

// advance attempts a single state transition from the front of inbuf. It
// returns advanced=false (with no error) when there is not yet enough
// data buffered, which the caller must treat as "wait for more".
func (r *Request) advance() (advanced, terminal bool, err error) {
	r.mu.Lock()
	buf := r.inbuf
	state := r.state
	r.mu.Unlock()

	reader := wire.NewReader(buf)

	switch state {
	case WaitConnect:
		version := reader.U8()
		if errors.Is(reader.Err(), wire.ErrUnderflow) {
			return false, false, nil
		}
		if reader.Err() != nil {
			return false, false, errMalformedFrame
		}
		r.consume(reader.Pos())
		if version != protocolVersion {
			r.rejectTerminal(codeVersionMismatch)
			return true, true, nil
		}
		r.setState(WaitCookie)
		return true, false, nil

	case WaitCookie:
		cookie := reader.Fixed(cookieSize)
		if errors.Is(reader.Err(), wire.ErrUnderflow) {
			return false, false, nil
		}
		if reader.Err() != nil {
			return false, false, errMalformedFrame
		}
		r.consume(reader.Pos())

		var cookieArr [cookieSize]byte
		copy(cookieArr[:], cookie)
		var hostArr [hostnameFieldSize]byte
		copy(hostArr[:], r.cfg.LocalHostname)

		frame, err := buildRequestFrame(hostArr, cookieArr, r.cfg.LocalSecret, r.cfg.Key, r.cfg.MyNickname, r.cfg.Message)
		if err != nil {
			return false, false, err
		}

		r.mu.Lock()
		sock := r.socket
		r.mu.Unlock()
		if sock == nil {
			return false, false, fmt.Errorf("contactrequest: no socket to send request on")
		}
		if err := sock.Write(frame); err != nil {
			return false, false, nil // transient: the Closed() case will drive the retry
		}

		r.setState(WaitAck)
		return true, false, nil

	case WaitAck:
		code := reader.U8()
		if errors.Is(reader.Err(), wire.ErrUnderflow) {
			return false, false, nil
		}
		if reader.Err() != nil {
			return false, false, errMalformedFrame
		}
		r.consume(reader.Pos())
		return r.handleResponseCode(code)

	case WaitResponse:
		code := reader.U8()
		if errors.Is(reader.Err(), wire.ErrUnderflow) {
			return false, false, nil
		}
		if reader.Err() != nil {
			return false, false, errMalformedFrame
		}
		r.consume(reader.Pos())
		return r.handleResponseCode(code)

	default:
		return false, false, nil
	}
}

func (r *Request) consume(n int) {
	r.mu.Lock()
	r.inbuf = r.inbuf[n:]
	r.mu.Unlock()
}

// handleResponseCode interprets a single response byte received during
// WaitAck or WaitResponse.
func (r *Request) handleResponseCode(code byte) (advanced, terminal bool, err error) {
	switch code {
	case codeAcknowledged:
		r.cfg.Observer.OnAcknowledged()
		r.setResponse(Acknowledged)
		r.setState(WaitResponse)
		return true, false, nil
	case codeAccepted:
		r.handleAcceptance()
		return true, true, nil
	default:
		r.rejectTerminal(code)
		return true, true, nil
	}
}

// handleAcceptance detaches the socket from the request's own teardown
// path, hands it to the session layer, and marks the response Accepted.
// The ordering (detach, then hand off, then notify) mirrors invariant 3:
// the connection must outlive the Request once accepted.
func (r *Request) handleAcceptance() {
	r.mu.Lock()
	sock := r.socket
	r.socket = nil
	r.mu.Unlock()

	if sock == nil {
		return
	}
	sock.Detach()
	conn := sock.Conn()

	if r.cfg.SessionHandoff != nil {
		r.cfg.SessionHandoff.AdoptPrimaryConnection(conn)
	}
	r.cfg.Observer.OnAccepted(conn)
	r.setState(Done)
	r.setResponse(Accepted)
}

// rejectTerminal handles every peer-supplied terminal byte that is not
// acceptance: an explicit user rejection (0x40), a version mismatch
// surfaced during WaitConnect, or any other unrecognized code.
func (r *Request) rejectTerminal(code byte) {
	r.closeSocket()
	resp := ErrorResponse
	if code == codeRejectedByUser {
		resp = Rejected
	}
	r.mu.Lock()
	r.rejectCode = code
	r.mu.Unlock()
	r.setState(Done)
	r.cfg.Observer.OnRejected(code)
	r.setResponse(resp)
}

// failLocal handles a purely local failure (malformed frame, signing
// error, short write) that has no corresponding peer-supplied byte code,
// so OnRejected is not called.
func (r *Request) failLocal(err error) {
	r.logf("contactrequest: local failure: %v", err)
	r.closeSocket()
	r.mu.Lock()
	r.sendErr = err
	r.mu.Unlock()
	r.setState(Done)
	r.setResponse(ErrorResponse)
}

// Err returns a *ResponseError describing a Rejected or ErrorResponse
// outcome, and nil for any other response. For a local failure its Cause
// holds the local error.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.response != ErrorResponse && r.response != Rejected {
		return nil
	}
	return &ResponseError{Response: r.response, Code: r.rejectCode, Cause: r.sendErr}
}
