// SOCKS5 dialing through the local Tor process, adapted from the
// reference corpus's internal/proxy package. That package supported a
// generic "none | socks5 | tor+socks5" upstream proxy for mix network
// connections; Torsion always tunnels through Tor, so this file keeps
// only the tor+socks5 path, generalized from "dial the next mix hop" to
// "dial a peer's hidden service".
package transport

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyConfig describes how to reach the local Tor SOCKS port.
type ProxyConfig struct {
	// Network is the proxy address' network, "tcp" or "unix".
	Network string

	// Address is the proxy's listen address, e.g. "127.0.0.1:9050" or a
	// unix socket path.
	Address string
}

// processIsolationTag salts the SOCKS5 auth fields so Tor's stream
// isolation treats every dial from this process as its own circuit
// group, mirroring the upstream corpus's torSocks5ProcessIsolation.
var processIsolationTag string

func init() {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:], uint64(os.Getpid()))
	binary.BigEndian.PutUint64(buf[8:], uint64(time.Now().UnixNano()))
	sum := sha512.Sum512_256(buf[:])
	processIsolationTag = "torsion/contactrequest:" + hex.EncodeToString(sum[:8]) + ":"
}

// TorSOCKS is a Capability that dials through Tor's SOCKS5 port.
type TorSOCKS struct {
	cfg   ProxyConfig
	ready *ReadyNotifier
}

// NewTorSOCKS returns a TorSOCKS capability bound to cfg. The caller
// (typically the Tor daemon supervisor) calls Notifier().SetReady() once
// Tor reports a usable SOCKS endpoint.
func NewTorSOCKS(cfg ProxyConfig) *TorSOCKS {
	return &TorSOCKS{cfg: cfg, ready: NewReadyNotifier()}
}

// Notifier returns the readiness notifier this capability is wired to.
func (t *TorSOCKS) Notifier() *ReadyNotifier { return t.ready }

// IsSOCKSReady reports whether the local SOCKS endpoint is believed
// usable.
func (t *TorSOCKS) IsSOCKSReady() bool { return t.ready.IsReady() }

// Ready returns a channel closed once the SOCKS endpoint becomes usable.
func (t *TorSOCKS) Ready() <-chan struct{} { return t.ready.Ready() }

// Open dials host:port through Tor's SOCKS5 port, tagging the connection
// for per-process stream isolation.
func (t *TorSOCKS) Open(ctx context.Context, host string, port uint16) (*Socket, error) {
	auth := &proxy.Auth{
		User:     processIsolationTag,
		Password: string([]byte{0x00}),
	}

	socksDialer, err := proxy.SOCKS5(t.cfg.Network, t.cfg.Address, auth, &contextDialer{})
	if err != nil {
		return nil, fmt.Errorf("transport: failed to construct SOCKS5 dialer: %w", err)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	var conn net.Conn
	if ctxDialer, ok := socksDialer.(proxy.ContextDialer); ok {
		conn, err = ctxDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = socksDialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	return NewSocket(conn), nil
}

// contextDialer is the net.Dialer golang.org/x/net/proxy.SOCKS5 uses to
// reach the proxy itself; it is a plain direct dialer since the SOCKS
// proxy is always local.
type contextDialer struct{}

func (contextDialer) Dial(network, address string) (net.Conn, error) {
	return (&net.Dialer{}).Dial(network, address)
}

func (contextDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return (&net.Dialer{}).DialContext(ctx, network, address)
}

var _ Capability = (*TorSOCKS)(nil)
