// Package keycap wraps an identity's asymmetric key so the contact
// request state machine can obtain its wire encoding and sign request
// bytes without knowing which concrete key type backs it. It is grounded
// on the ed25519 primitive already used for signing in the wire protocol's
// authenticate command (wire/common/common.go in the reference corpus).
package keycap

import (
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ed25519"
)

// ErrNotLoaded is returned by Sign and PublicEncoding when the capability
// wraps no key material, matching the distilled spec's "Both may fail if
// the key is not loaded" failure mode.
var ErrNotLoaded = errors.New("keycap: key is not loaded")

// Capability is the abstraction the Request State Machine depends on. It
// is supplied by the identity layer; this package provides one concrete
// ed25519-backed implementation plus a test double.
type Capability interface {
	// PublicEncoding returns the wire encoding of the public key. It must
	// be byte-exact across both peers.
	PublicEncoding() ([]byte, error)

	// Sign returns a signature over data, verifiable against the key
	// PublicEncoding returns.
	Sign(data []byte) ([]byte, error)
}

// Ed25519 is the default Capability, backed by an ed25519 keypair.
type Ed25519 struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// Generate creates a new random Ed25519 capability.
func Generate() (*Ed25519, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519{pub: pub, priv: priv}, nil
}

// FromPrivateKey wraps an existing ed25519 private key, as loaded by the
// identity-storage layer.
func FromPrivateKey(priv ed25519.PrivateKey) *Ed25519 {
	return &Ed25519{pub: priv.Public().(ed25519.PublicKey), priv: priv}
}

// Unloaded returns a capability with no key material, for exercising the
// ErrNotLoaded failure path.
func Unloaded() *Ed25519 {
	return &Ed25519{}
}

// PublicEncoding returns the raw 32-byte ed25519 public key.
func (k *Ed25519) PublicEncoding() ([]byte, error) {
	if len(k.pub) == 0 {
		return nil, ErrNotLoaded
	}
	out := make([]byte, len(k.pub))
	copy(out, k.pub)
	return out, nil
}

// Sign returns the ed25519 signature over data.
func (k *Ed25519) Sign(data []byte) ([]byte, error) {
	if len(k.priv) == 0 {
		return nil, ErrNotLoaded
	}
	return ed25519.Sign(k.priv, data), nil
}

// Verify checks sig over data against pub, for use by server-side or test
// code that needs to confirm a request was signed correctly.
func Verify(pub, data, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}

// pemBlockType is the PEM block type this package writes and expects,
// matching the generic "PRIVATE KEY" label x509's PKCS#8 encoding uses
// for ed25519 keys.
const pemBlockType = "PRIVATE KEY"

// LoadPrivateKeyFile reads a PKCS#8 PEM-encoded ed25519 private key from
// path. There is no corpus-wide post-quantum key codec applicable to a
// plain ed25519 key, so this uses crypto/x509's standard PKCS#8 envelope
// rather than inventing a bespoke format.
func LoadPrivateKeyFile(path string) (*Ed25519, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keycap: failed to read key file: %w", err)
	}
	block, _ := pem.Decode(b)
	if block == nil || block.Type != pemBlockType {
		return nil, fmt.Errorf("keycap: %s does not contain a PEM %s block", path, pemBlockType)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keycap: failed to parse private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("keycap: %s does not contain an ed25519 key", path)
	}
	return FromPrivateKey(priv), nil
}

// SavePrivateKeyFile writes k's private key to path as a PKCS#8 PEM block,
// creating the file with owner-only permissions.
func SavePrivateKeyFile(k *Ed25519, path string) error {
	if len(k.priv) == 0 {
		return ErrNotLoaded
	}
	der, err := x509.MarshalPKCS8PrivateKey(k.priv)
	if err != nil {
		return fmt.Errorf("keycap: failed to marshal private key: %w", err)
	}
	block := &pem.Block{Type: pemBlockType, Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}
