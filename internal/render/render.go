// Package render defines the SinkRenderer capability: write frames to one
// render endpoint with bounded latency and report queued-frame counts for
// clock sync. Production wiring lives in renderer_windows.go (raw WASAPI
// via internal/wasapi); Fake backs engine tests.
package render

import "github.com/superyngo/wemux/internal/audioformat"

// State is a renderer's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Error
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Error:
		return "error"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Sink writes PCM frames to one render endpoint. Non-zero timeouts on
// Write never return an error; a timeout simply writes fewer frames than
// requested.
type Sink interface {
	// Format returns the format negotiated for this sink, which may
	// differ from the capture format: the spec treats sink format
	// conversion as out of scope, so callers must not assume they match.
	Format() audioformat.Format

	// Start begins playback. Idempotent.
	Start() error

	// Stop halts playback and releases the endpoint. Idempotent.
	Stop() error

	// WriteFrames waits up to timeoutMs for buffer space, writes
	// min(frames available in data, free space) frames, and returns the
	// number of frames actually written. 0 on timeout is not an error.
	WriteFrames(data []byte, timeoutMs int) (framesWritten int, err error)

	// WriteSilence fills up to n frames of silence without consuming any
	// caller-provided buffer.
	WriteSilence(frames int) error

	// QueuedFrames reports frames currently pending in the endpoint's
	// hardware buffer, for clock sync.
	QueuedFrames() (uint64, error)

	// SetError records a failure and moves the renderer's reported state
	// to Error; the caller (the renderer loop) continues to retry and
	// never tears down the Sink because of it.
	SetError(msg string)

	// LastError returns the message passed to the most recent SetError,
	// or "" if none since the last successful write.
	LastError() string

	// DeviceState reports the renderer's current lifecycle state.
	DeviceState() State
}

// Opener constructs a Sink bound to a specific render endpoint id.
type Opener interface {
	Open(deviceID string) (Sink, error)
}
