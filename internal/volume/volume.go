// Package volume defines VolumeProbe: polls the system master volume and
// exposes the current scalar for renderers to apply. Production wiring
// lives in volume_windows.go (WASAPI IAudioEndpointVolume via
// internal/wasapi); Fake backs engine tests.
package volume

// Probe reports the current system master-volume scalar in [0.0, 1.0].
type Probe interface {
	// Scalar returns the most recently polled volume.
	Scalar() float64

	// Poll refreshes the scalar from the OS. Called by the engine's
	// volume-probe task on a timer; transient errors are logged and
	// retried, never fatal.
	Poll() error

	// Reinitialize re-binds the probe to the current default endpoint's
	// volume control, called after a default-device change alongside
	// capture reinitialization.
	Reinitialize() error

	// Close releases any OS handles.
	Close() error
}

// PollInterval is the engine's volume-probe task sleep between polls, in
// milliseconds.
const PollInterval = 100
