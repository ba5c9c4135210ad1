// Package logging provides the leveled logging backend shared by
// Torsion's contact request, transport, and CLI packages. Adapted from
// the reference corpus's log package: a Backend that owns the output
// writer and hands out per-module *logging.Logger values, so nothing in
// this module reaches for a package-level logger singleton (see the
// "Global state" design note: capabilities are injected, not global).
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/op/go-logging"
)

// Backend owns where log output goes and at what level.
type Backend struct {
	w       io.Writer
	backend logging.LeveledBackend
}

// GetLogger returns a logger for module, sharing this Backend's output
// and level.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b.backend)
	return l
}

// GetPeerLogger returns a logger for module tagged with peer. Torsion
// runs many concurrent per-peer operations under one module name (a
// contact request per onion address, each reconnecting independently),
// so a bare module name is not enough to tell their log lines apart the
// way it is for the single-instance subsystems a module name otherwise
// identifies; this folds the peer identifier into the %{module} field
// instead of requiring every call site to hand-format its own prefix.
func (b *Backend) GetPeerLogger(module, peer string) *logging.Logger {
	return b.GetLogger(module + "(" + peer + ")")
}

// New creates a logging Backend. If f is empty, output goes to stdout;
// if disable is true, output is discarded regardless of f.
func New(f string, level string, disable bool) (*Backend, error) {
	b := new(Backend)

	lvl, err := logLevelFromString(level)
	if err != nil {
		return nil, err
	}

	switch {
	case disable:
		b.w = io.Discard
	case f == "":
		b.w = os.Stdout
	default:
		const fileMode = 0600
		flags := os.O_CREATE | os.O_APPEND | os.O_WRONLY
		b.w, err = os.OpenFile(f, flags, fileMode)
		if err != nil {
			return nil, fmt.Errorf("logging: failed to create log file: %w", err)
		}
	}

	logFmt := logging.MustStringFormatter("%{time:15:04:05.000} %{level:.4s} %{module}: %{message}")
	base := logging.NewLogBackend(b.w, "", 0)
	formatted := logging.NewBackendFormatter(base, logFmt)
	b.backend = logging.AddModuleLevel(formatted)
	b.backend.SetLevel(lvl, "")
	return b, nil
}

func logLevelFromString(l string) (logging.Level, error) {
	switch l {
	case "":
		return logging.NOTICE, nil
	case "ERROR":
		return logging.ERROR, nil
	case "WARNING":
		return logging.WARNING, nil
	case "NOTICE":
		return logging.NOTICE, nil
	case "INFO":
		return logging.INFO, nil
	case "DEBUG":
		return logging.DEBUG, nil
	default:
		return 0, fmt.Errorf("logging: invalid log level %q", l)
	}
}
