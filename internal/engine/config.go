package engine

import "time"

// Configuration is immutable for the lifetime of a Running session.
type Configuration struct {
	// BufferMs sizes the ring in milliseconds of audio at the session
	// sample rate when a hardware-capability query for optimal buffer
	// sizing is unavailable. Default 50.
	BufferMs uint32

	// TargetIDs, if non-empty, restricts target sinks to those whose id or
	// friendly name contains any of these substrings (case-insensitive).
	TargetIDs []string

	// ExcludeIDs removes matching ids from the resolved target set,
	// applied after TargetIDs/UseAllOutputs resolution.
	ExcludeIDs []string

	// InitialPausedIDs are device ids that start paused (a user preference
	// loaded from the settings file), independent of the auto-pause rule
	// applied to the current system default.
	InitialPausedIDs map[string]bool

	// UseAllOutputs, when TargetIDs is empty, selects every render
	// endpoint instead of only HDMI-classified ones.
	UseAllOutputs bool

	// ClockClampFrames bounds clock corrections; 0 selects the session
	// sample rate / 10, resolved at Start.
	ClockClampFrames int64

	// CaptureTimeout bounds a single loopback read, around 100ms.
	CaptureTimeout time.Duration

	// RenderTimeout bounds a single sink write wait, around 50ms.
	RenderTimeout time.Duration

	// ChangeDispatchPollInterval bounds how long the change-dispatch task
	// blocks on its event channel before re-checking the stop flag, around
	// 100ms.
	ChangeDispatchPollInterval time.Duration
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// their defaults.
func (c Configuration) WithDefaults() Configuration {
	if c.BufferMs == 0 {
		c.BufferMs = 50
	}
	if c.InitialPausedIDs == nil {
		c.InitialPausedIDs = map[string]bool{}
	}
	if c.ClockClampFrames == 0 {
		c.ClockClampFrames = 0 // resolved against sample rate at Start
	}
	if c.CaptureTimeout == 0 {
		c.CaptureTimeout = 100 * time.Millisecond
	}
	if c.RenderTimeout == 0 {
		c.RenderTimeout = 50 * time.Millisecond
	}
	if c.ChangeDispatchPollInterval == 0 {
		c.ChangeDispatchPollInterval = 100 * time.Millisecond
	}
	return c
}
