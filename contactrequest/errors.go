package contactrequest

import "errors"

var (
	// ErrClosed is returned by Send if the Request has already been
	// closed.
	ErrClosed = errors.New("contactrequest: request is closed")

	// ErrAlreadySent is returned by Send if it has already been called.
	ErrAlreadySent = errors.New("contactrequest: request already sent")

	errBadHostname    = errors.New("contactrequest: local hostname must decode to exactly 16 bytes")
	errBadLocalSecret = errors.New("contactrequest: local secret must be exactly 16 bytes")
	errMalformedFrame = errors.New("contactrequest: malformed frame from peer")
)

// ResponseError reports a peer- or locally-terminated request that did not
// reach Accepted. Code is the raw wire response byte for a peer rejection,
// or 0 for a purely local failure (Cause is then non-nil).
type ResponseError struct {
	Response Response
	Code     byte
	Cause    error
}

func (e *ResponseError) Error() string {
	if e.Cause != nil {
		return "contactrequest: " + e.Response.String() + ": " + e.Cause.Error()
	}
	return "contactrequest: " + e.Response.String()
}

func (e *ResponseError) Unwrap() error { return e.Cause }
