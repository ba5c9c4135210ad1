package contactrequest

import "io"

// Observer receives the Request's externally-visible events. All four
// methods are called from the Request's own goroutine and must not block
// or call back into the Request; reunion/client/exchange.go's pattern of
// shipping a small update struct down a channel suggested one observer
// per event, but the protocol specification calls these out as four named
// signals, so that is what this interface exposes.
type Observer interface {
	// OnAcknowledged fires once the peer has confirmed receipt of the
	// request (WaitAck -> WaitResponse).
	OnAcknowledged()

	// OnAccepted fires once the peer has accepted the request. conn is
	// the live, already-detached connection; the Request will not close
	// it. If a SessionHandoff was configured, it is notified before this
	// callback runs.
	OnAccepted(conn io.ReadWriteCloser)

	// OnRejected fires when the peer actively refused the request,
	// carrying the raw wire response code. It is not called for local
	// failures (bad hostname, signing failure, and similar), which are
	// reported only through OnResponseChanged(ErrorResponse).
	OnRejected(code byte)

	// OnResponseChanged fires whenever Response() changes, including the
	// transition into ErrorResponse for purely local failures.
	OnResponseChanged(response Response)
}

// SessionHandoff receives the live connection once a request is Accepted,
// so the caller can fold it into an existing peer session rather than
// treat it as a new one. It is optional; nil means "no handoff needed".
type SessionHandoff interface {
	AdoptPrimaryConnection(conn io.ReadWriteCloser)
}

// NopObserver implements Observer with no-op methods, useful for tests
// that only care about the Request's polled state.
type NopObserver struct{}

func (NopObserver) OnAcknowledged()              {}
func (NopObserver) OnAccepted(io.ReadWriteCloser) {}
func (NopObserver) OnRejected(byte)               {}
func (NopObserver) OnResponseChanged(Response)    {}

var _ Observer = NopObserver{}
