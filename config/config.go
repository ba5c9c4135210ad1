// Package config implements Torsion's on-disk configuration: where to
// reach the local Tor SOCKS port, how to log, and the reconnection
// schedule a contact request retries on. Adapted from the reference
// corpus's client2/config package: a TOML-backed struct tree with a
// FixupAndValidate pass that fills defaults and validates each section.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/katzenpost/torsion/internal/retry"
	"github.com/katzenpost/torsion/transport"
)

const (
	defaultLogLevel         = "NOTICE"
	defaultSOCKSNetwork     = "tcp"
	defaultSOCKSAddress     = "127.0.0.1:9050"
	defaultListenPort       = 11009
	defaultLowAttempts      = 4
	defaultLowDelaySeconds  = 30
	defaultMidAttempts      = 6
	defaultMidDelaySeconds  = 120
	defaultHighDelaySeconds = 600
)

var defaultLogging = Logging{
	Disable: false,
	File:    "",
	Level:   defaultLogLevel,
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file; if empty, stdout is used.
	File string

	// Level specifies the log level: ERROR, WARNING, NOTICE, INFO, or
	// DEBUG.
	Level string
}

func (l *Logging) validate() error {
	lvl := strings.ToUpper(l.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level %q is invalid", l.Level)
	}
	l.Level = lvl
	return nil
}

// SOCKS describes how to reach the local Tor daemon's SOCKS5 port.
type SOCKS struct {
	// Network is the proxy address' network, "tcp" or "unix".
	Network string

	// Address is the proxy's listen address.
	Address string
}

func (s *SOCKS) fixup() {
	if s.Network == "" {
		s.Network = defaultSOCKSNetwork
	}
	if s.Address == "" {
		s.Address = defaultSOCKSAddress
	}
}

func (s *SOCKS) toProxyConfig() transport.ProxyConfig {
	return transport.ProxyConfig{Network: s.Network, Address: s.Address}
}

// Reconnect describes the reconnection backoff schedule a contact request
// uses between failed connection attempts, in seconds.
type Reconnect struct {
	LowAttempts      int
	LowDelaySeconds  int
	MidAttempts      int
	MidDelaySeconds  int
	HighDelaySeconds int
}

func (r *Reconnect) fixup() {
	if r.LowAttempts == 0 {
		r.LowAttempts = defaultLowAttempts
	}
	if r.LowDelaySeconds == 0 {
		r.LowDelaySeconds = defaultLowDelaySeconds
	}
	if r.MidAttempts == 0 {
		r.MidAttempts = defaultMidAttempts
	}
	if r.MidDelaySeconds == 0 {
		r.MidDelaySeconds = defaultMidDelaySeconds
	}
	if r.HighDelaySeconds == 0 {
		r.HighDelaySeconds = defaultHighDelaySeconds
	}
}

// Policy converts the on-disk seconds-based schedule into a retry.Policy.
func (r *Reconnect) Policy() retry.Policy {
	return retry.Policy{
		LowAttempts: r.LowAttempts,
		LowDelay:    time.Duration(r.LowDelaySeconds) * time.Second,
		MidAttempts: r.MidAttempts,
		MidDelay:    time.Duration(r.MidDelaySeconds) * time.Second,
		HighDelay:   time.Duration(r.HighDelaySeconds) * time.Second,
	}
}

// Identity locates this node's persisted identity: its 16-character
// hostname and its signing key file.
type Identity struct {
	// Hostname is this node's own 16-character identity string.
	Hostname string

	// KeyFile holds the PEM-encoded ed25519 private key.
	KeyFile string
}

func (i *Identity) validate() error {
	if i.Hostname == "" {
		return errors.New("config: Identity.Hostname is required")
	}
	if i.KeyFile == "" {
		return errors.New("config: Identity.KeyFile is required")
	}
	return nil
}

// Config is Torsion's top-level on-disk configuration.
type Config struct {
	// ListenPort is the port the contact-request listener binds to
	// behind the node's hidden service.
	ListenPort uint16

	Identity  *Identity
	SOCKS     *SOCKS
	Logging   *Logging
	Reconnect *Reconnect

	socksProxy transport.ProxyConfig
}

// SOCKSProxyConfig returns the validated transport.ProxyConfig derived
// from the SOCKS section.
func (c *Config) SOCKSProxyConfig() transport.ProxyConfig {
	return c.socksProxy
}

// FixupAndValidate fills in defaults for missing sections and validates
// every section present.
func (c *Config) FixupAndValidate() error {
	if c.ListenPort == 0 {
		c.ListenPort = defaultListenPort
	}
	if c.Identity == nil {
		return errors.New("config: no Identity section was present")
	}
	if err := c.Identity.validate(); err != nil {
		return err
	}

	if c.SOCKS == nil {
		c.SOCKS = &SOCKS{}
	}
	c.SOCKS.fixup()
	c.socksProxy = c.SOCKS.toProxyConfig()

	if c.Logging == nil {
		c.Logging = &defaultLogging
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}

	if c.Reconnect == nil {
		c.Reconnect = &Reconnect{}
	}
	c.Reconnect.fixup()

	return nil
}

// Load parses and validates b as a config file body.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the config file at f.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
