//go:build windows

package render

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/superyngo/wemux/internal/audioformat"
	"github.com/superyngo/wemux/internal/wasapi"
)

// WASAPIOpener opens a push-model IAudioClient/IAudioRenderClient pair on
// a specific endpoint id, the production counterpart to FakeOpener.
type WASAPIOpener struct {
	enumerator *wasapi.DeviceEnumerator
	format     audioformat.Format
	bufferMs   int
}

// NewWASAPIOpener builds an opener that initializes every sink it opens
// with format; no endpoint's own mix format is queried.
func NewWASAPIOpener(enumerator *wasapi.DeviceEnumerator, format audioformat.Format, bufferMs int) *WASAPIOpener {
	return &WASAPIOpener{enumerator: enumerator, format: format, bufferMs: bufferMs}
}

func (o *WASAPIOpener) Open(deviceID string) (Sink, error) {
	dev, err := o.enumerator.GetDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("render: resolve device %s: %w", deviceID, err)
	}
	client, err := wasapi.ActivateAudioClient(dev)
	if err != nil {
		return nil, fmt.Errorf("render: activate audio client for %s: %w", deviceID, err)
	}
	wf := wasapi.NewPCMFormat(int(o.format.SampleRateHz), int(o.format.Channels), int(o.format.BitsPerSample))
	if err := client.Initialize(wf, o.bufferMs); err != nil {
		return nil, fmt.Errorf("render: initialize audio client for %s: %w", deviceID, err)
	}
	renderClient, err := client.GetRenderClient()
	if err != nil {
		return nil, fmt.Errorf("render: get render client for %s: %w", deviceID, err)
	}
	bufferFrames, err := client.GetBufferSize()
	if err != nil {
		return nil, fmt.Errorf("render: get buffer size for %s: %w", deviceID, err)
	}
	return &wasapiSink{
		deviceID:     deviceID,
		format:       o.format,
		client:       client,
		renderClient: renderClient,
		bufferFrames: bufferFrames,
		state:        Idle,
	}, nil
}

type wasapiSink struct {
	deviceID     string
	format       audioformat.Format
	client       *wasapi.AudioClient
	renderClient *wasapi.RenderClient
	bufferFrames uint32

	mu      sync.Mutex
	state   State
	lastErr string
	started bool
}

func (s *wasapiSink) Format() audioformat.Format { return s.format }

func (s *wasapiSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.client.Start(); err != nil {
		s.state = Error
		s.lastErr = err.Error()
		return err
	}
	s.started = true
	s.state = Running
	return nil
}

func (s *wasapiSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	err := s.client.Stop()
	s.started = false
	s.state = Idle
	return err
}

func (s *wasapiSink) availableFrames() (uint32, error) {
	padding, err := s.client.GetCurrentPadding()
	if err != nil {
		return 0, err
	}
	if padding >= s.bufferFrames {
		return 0, nil
	}
	return s.bufferFrames - padding, nil
}

func (s *wasapiSink) WriteFrames(data []byte, timeoutMs int) (int, error) {
	frames := s.format.BytesToFrames(len(data))
	if frames == 0 {
		return 0, nil
	}
	avail, err := s.availableFrames()
	if err != nil {
		s.SetError(err.Error())
		return 0, err
	}
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for avail == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		if avail, err = s.availableFrames(); err != nil {
			s.SetError(err.Error())
			return 0, err
		}
	}
	if uint32(frames) > avail {
		frames = int(avail)
	}
	if frames == 0 {
		return 0, nil
	}
	ptr, err := s.renderClient.GetBuffer(uint32(frames))
	if err != nil {
		s.SetError(err.Error())
		return 0, err
	}
	copyToWASAPIBuffer(ptr, data[:s.format.FramesToBytes(frames)])
	if err := s.renderClient.ReleaseBuffer(uint32(frames), false); err != nil {
		s.SetError(err.Error())
		return 0, err
	}
	s.mu.Lock()
	s.lastErr = ""
	s.state = Running
	s.mu.Unlock()
	return frames, nil
}

func (s *wasapiSink) WriteSilence(frames int) error {
	if frames <= 0 {
		return nil
	}
	avail, err := s.availableFrames()
	if err != nil {
		return err
	}
	if uint32(frames) > avail {
		frames = int(avail)
	}
	if frames == 0 {
		return nil
	}
	if _, err := s.renderClient.GetBuffer(uint32(frames)); err != nil {
		return err
	}
	return s.renderClient.ReleaseBuffer(uint32(frames), true)
}

func (s *wasapiSink) QueuedFrames() (uint64, error) {
	padding, err := s.client.GetCurrentPadding()
	return uint64(padding), err
}

func (s *wasapiSink) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
	s.state = Error
}

func (s *wasapiSink) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *wasapiSink) DeviceState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func copyToWASAPIBuffer(dst uintptr, src []byte) {
	if len(src) == 0 {
		return
	}
	out := unsafe.Slice((*byte)(unsafe.Pointer(dst)), len(src))
	copy(out, src)
}
