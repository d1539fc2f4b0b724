// Package capture defines the LoopbackSource capability: obtain PCM frames
// from whichever endpoint is currently the system default render device.
// Production wiring lives in loopback_windows.go; Fake backs engine tests
// on any platform.
package capture

import (
	"errors"

	"github.com/superyngo/wemux/internal/audioformat"
)

// Sentinel errors of the capture capability. The WASAPI source's Read
// returns ErrNoDefaultDevice once the source has been stopped; OpenDefault
// returns the backend's own wrapped errors, and no code in this package
// returns ErrFormatUnsupported.
var (
	ErrNoDefaultDevice   = errors.New("capture: no default render device")
	ErrFormatUnsupported = errors.New("capture: mix format unsupported")
)

// ReadResult is returned by Source.Read. Empty is true on a timeout, which
// is not an error: the engine's capture task writes nothing to the ring
// for that tick, and renderers, finding nothing new to read, write no
// frames of their own until data arrives.
type ReadResult struct {
	Data  []byte
	Empty bool
}

// Source captures PCM frames from the current default render endpoint in
// loopback. Re-creation on default-device change is explicit: only the
// engine may Stop and reopen a Source on a new default device.
type Source interface {
	// Format returns the session's negotiated format. It does not change
	// while the source is open.
	Format() audioformat.Format

	// Start begins capture. Idempotent.
	Start() error

	// Stop halts capture and releases the endpoint. Idempotent.
	Stop() error

	// Read blocks up to timeoutMs for one capture packet. A timeout
	// yields ReadResult{Empty: true}, not an error.
	Read(timeoutMs int) (ReadResult, error)
}

// Opener abstracts construction of a Source bound to whatever the system
// default render endpoint currently is, so the engine can recreate capture
// without depending on a concrete backend.
type Opener interface {
	OpenDefault() (Source, error)
}
