// Package audioformat describes the PCM mix format negotiated for a capture
// or render session and the byte/frame/millisecond conversions every other
// package needs.
package audioformat

import "fmt"

// Format is immutable for the lifetime of a capture or render session.
type Format struct {
	SampleRateHz  uint32
	Channels      uint16
	BitsPerSample uint16
	// BlockAlignBytes is Channels * BitsPerSample/8. Every buffer size in
	// bytes this format touches is a multiple of BlockAlignBytes.
	BlockAlignBytes uint16
}

// New builds a Format and derives BlockAlignBytes.
func New(sampleRateHz uint32, channels, bitsPerSample uint16) Format {
	return Format{
		SampleRateHz:    sampleRateHz,
		Channels:        channels,
		BitsPerSample:   bitsPerSample,
		BlockAlignBytes: channels * (bitsPerSample / 8),
	}
}

// Validate checks the invariant BlockAlignBytes > 0 and that it agrees with
// Channels/BitsPerSample.
func (f Format) Validate() error {
	if f.BlockAlignBytes == 0 {
		return fmt.Errorf("audioformat: block align is zero")
	}
	want := f.Channels * (f.BitsPerSample / 8)
	if want != f.BlockAlignBytes {
		return fmt.Errorf("audioformat: block align %d does not match channels=%d bits=%d", f.BlockAlignBytes, f.Channels, f.BitsPerSample)
	}
	return nil
}

// BytesToFrames converts a byte count to whole frames, truncating any
// partial trailing frame.
func (f Format) BytesToFrames(n int) int {
	if f.BlockAlignBytes == 0 {
		return 0
	}
	return n / int(f.BlockAlignBytes)
}

// FramesToBytes converts a frame count to bytes.
func (f Format) FramesToBytes(frames int) int {
	return frames * int(f.BlockAlignBytes)
}

// MillisToFrames converts a duration in milliseconds to whole frames.
func (f Format) MillisToFrames(ms int) int {
	return int(uint64(ms) * uint64(f.SampleRateHz) / 1000)
}

// FramesToMillis converts a frame count to milliseconds.
func (f Format) FramesToMillis(frames int) int {
	if f.SampleRateHz == 0 {
		return 0
	}
	return int(uint64(frames) * 1000 / uint64(f.SampleRateHz))
}

// MillisToBytes converts a duration in milliseconds directly to a
// block-aligned byte count.
func (f Format) MillisToBytes(ms int) int {
	return f.FramesToBytes(f.MillisToFrames(ms))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRateHz, f.Channels, f.BitsPerSample)
}
