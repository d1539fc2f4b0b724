//go:build windows

package wasapi

import (
	"fmt"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// WaveFormatExtensible mirrors WAVEFORMATEXTENSIBLE; this package only
// builds it for integer PCM streams (NewPCMFormat).
type WaveFormatExtensible struct {
	FormatTag          uint16
	Channels           uint16
	SamplesPerSec      uint32
	AvgBytesPerSec     uint32
	BlockAlign         uint16
	BitsPerSample      uint16
	Size               uint16
	ValidBitsPerSample uint16
	ChannelMask        uint32
	SubFormat          [16]byte
}

const waveFormatExtensibleTag = 0xFFFE

// NewPCMFormat builds a WaveFormatExtensible for interleaved PCM at the
// given rate/channels/bit depth.
func NewPCMFormat(sampleRate, channels, bitsPerSample int) *WaveFormatExtensible {
	blockAlign := channels * bitsPerSample / 8
	return &WaveFormatExtensible{
		FormatTag:          waveFormatExtensibleTag,
		Channels:           uint16(channels),
		SamplesPerSec:      uint32(sampleRate),
		AvgBytesPerSec:     uint32(sampleRate * blockAlign),
		BlockAlign:         uint16(blockAlign),
		BitsPerSample:      uint16(bitsPerSample),
		Size:               22,
		ValidBitsPerSample: uint16(bitsPerSample),
		ChannelMask:        0,
		SubFormat:          pcmSubFormatGUIDBytes,
	}
}

// KSDATAFORMAT_SUBTYPE_PCM {00000001-0000-0010-8000-00AA00389B71}.
var pcmSubFormatGUIDBytes = [16]byte{
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
	0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71,
}

type audioClientVtbl struct {
	ole.IUnknownVtbl
	Initialize           uintptr
	GetBufferSize        uintptr
	GetStreamLatency     uintptr
	GetCurrentPadding    uintptr
	IsFormatSupported    uintptr
	GetMixFormat         uintptr
	GetDevicePeriod      uintptr
	Start                uintptr
	Stop                 uintptr
	Reset                uintptr
	SetEventHandle       uintptr
	GetService           uintptr
}

// AudioClient wraps IAudioClient.
type AudioClient struct {
	ole.IUnknown
}

func (v *AudioClient) vtbl() *audioClientVtbl {
	return (*audioClientVtbl)(unsafe.Pointer(v.RawVTable))
}

// ActivateAudioClient activates IAudioClient on dev.
func ActivateAudioClient(dev *Device) (*AudioClient, error) {
	unk, err := dev.Activate(iidIAudioClient)
	if err != nil {
		return nil, err
	}
	return (*AudioClient)(unsafe.Pointer(unk)), nil
}

// referenceTimeHns converts milliseconds to the 100ns units
// IAudioClient.Initialize expects for its buffer-duration argument.
func referenceTimeHns(ms int) int64 { return int64(ms) * 10000 }

// Initialize opens the client in shared mode, exclusive of event-driven
// callbacks: the engine pulls/pushes on its own schedule instead.
func (v *AudioClient) Initialize(format *WaveFormatExtensible, bufferMs int) error {
	_, err := vtableCall(v.vtbl().Initialize,
		uintptr(unsafe.Pointer(v)),
		uintptr(shareModeShared),
		uintptr(audclntStreamFlagsNone),
		uintptr(referenceTimeHns(bufferMs)),
		0,
		uintptr(unsafe.Pointer(format)),
		0,
	)
	return err
}

// GetBufferSize returns the allocated buffer size in frames.
func (v *AudioClient) GetBufferSize() (uint32, error) {
	var n uint32
	_, err := vtableCall(v.vtbl().GetBufferSize, uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&n)))
	return n, err
}

// GetCurrentPadding returns the number of frames currently queued in the
// endpoint buffer, i.e. not yet played. This is the value ClockSync
// compares across renderers.
func (v *AudioClient) GetCurrentPadding() (uint32, error) {
	var n uint32
	_, err := vtableCall(v.vtbl().GetCurrentPadding, uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&n)))
	return n, err
}

// Start begins streaming.
func (v *AudioClient) Start() error {
	_, err := vtableCall(v.vtbl().Start, uintptr(unsafe.Pointer(v)))
	return err
}

// Stop halts streaming without discarding the client.
func (v *AudioClient) Stop() error {
	_, err := vtableCall(v.vtbl().Stop, uintptr(unsafe.Pointer(v)))
	return err
}

// Reset flushes the endpoint buffer; must be called while stopped.
func (v *AudioClient) Reset() error {
	_, err := vtableCall(v.vtbl().Reset, uintptr(unsafe.Pointer(v)))
	return err
}

// GetRenderClient retrieves the IAudioRenderClient service for this
// client.
func (v *AudioClient) GetRenderClient() (*RenderClient, error) {
	var out *RenderClient
	_, err := vtableCall(v.vtbl().GetService,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(iidIAudioRenderClient)), uintptr(unsafe.Pointer(&out)))
	return out, err
}

// GetEndpointVolume retrieves the IAudioEndpointVolume service; this is
// activated directly from the Device, not via GetService, since it is not
// itself an IAudioClient sub-object but its own COM activation target.
func GetEndpointVolume(dev *Device) (*EndpointVolume, error) {
	unk, err := dev.Activate(iidIAudioEndpointVolume)
	if err != nil {
		return nil, err
	}
	return (*EndpointVolume)(unsafe.Pointer(unk)), nil
}

type renderClientVtbl struct {
	ole.IUnknownVtbl
	GetBuffer     uintptr
	ReleaseBuffer uintptr
}

// RenderClient wraps IAudioRenderClient.
type RenderClient struct {
	ole.IUnknown
}

func (v *RenderClient) vtbl() *renderClientVtbl {
	return (*renderClientVtbl)(unsafe.Pointer(v.RawVTable))
}

// GetBuffer reserves numFrames frames of the endpoint buffer and returns a
// pointer to the first byte.
func (v *RenderClient) GetBuffer(numFrames uint32) (uintptr, error) {
	var p uintptr
	_, err := vtableCall(v.vtbl().GetBuffer,
		uintptr(unsafe.Pointer(v)), uintptr(numFrames), uintptr(unsafe.Pointer(&p)))
	if err != nil {
		return 0, fmt.Errorf("GetBuffer(%d): %w", numFrames, err)
	}
	return p, nil
}

const audclntBufferFlagsSilent = 0x2

// ReleaseBuffer commits numFrames frames written into the buffer returned
// by GetBuffer. If silent is true the frames are flagged as silence
// regardless of their content, the fast path WriteSilence uses.
func (v *RenderClient) ReleaseBuffer(numFrames uint32, silent bool) error {
	flags := uint32(0)
	if silent {
		flags = audclntBufferFlagsSilent
	}
	_, err := vtableCall(v.vtbl().ReleaseBuffer, uintptr(unsafe.Pointer(v)), uintptr(numFrames), uintptr(flags))
	return err
}
