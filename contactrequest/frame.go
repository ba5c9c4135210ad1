package contactrequest

import (
	"github.com/katzenpost/torsion/keycap"
	"github.com/katzenpost/torsion/wire"
)

// buildRequestFrame assembles the signed contact request frame sent once
// the 16-byte cookie has arrived, following original_source's
// buildRequestData sequencing exactly: a u16 length placeholder is
// written first and patched in last with the length of everything from
// offset 2 onward (inclusive of the signature, exclusive of the length
// field itself); the signature covers every byte from offset 2
// (immediately after the length placeholder) through the end of the
// nickname/message fields, i.e. everything the peer will reconstruct and
// verify before the signature field itself is appended.
func buildRequestFrame(hostname [hostnameFieldSize]byte, cookie [cookieSize]byte, localSecret []byte, key keycap.Capability, nickname, message string) ([]byte, error) {
	pub, err := key.PublicEncoding()
	if err != nil {
		return nil, err
	}

	w := wire.NewWriter()
	w.PutU16(0) // length placeholder, patched below
	w.PutFixed(hostname[:])
	w.PutFixed(cookie[:])
	w.PutFixed(localSecret)
	w.PutVariable(pub)
	w.PutString(nickname)
	w.PutString(message)
	if err := w.Err(); err != nil {
		return nil, err
	}

	signed := w.Bytes()[2:] // everything after the length placeholder so far
	toSign := make([]byte, len(signed))
	copy(toSign, signed)

	sig, err := key.Sign(toSign)
	if err != nil {
		return nil, err
	}

	w.PutVariable(sig)
	if err := w.Err(); err != nil {
		return nil, err
	}

	w.PatchU16(0, uint16(w.Len()-2))
	return w.Bytes(), nil
}
