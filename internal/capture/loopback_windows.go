//go:build windows

package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/superyngo/wemux/internal/audioformat"
)

// LoopbackOpener opens the current default render device in WASAPI
// loopback mode, adapted from the capture routine the teacher uses for
// speech transcription: here capture requests a fixed 48kHz stereo
// 16-bit format instead of a 16kHz mono target, and miniaudio converts the
// default endpoint's mix to it.
type LoopbackOpener struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewLoopbackOpener initializes the shared malgo context used by every
// loopback source this opener creates.
func NewLoopbackOpener() (*LoopbackOpener, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("init malgo context: %w", err)
	}
	return &LoopbackOpener{ctx: ctx}, nil
}

// OpenDefault opens the default render endpoint in loopback at 48kHz,
// 2 channels, signed 16-bit, and reports that as the session format.
func (o *LoopbackOpener) OpenDefault() (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 2
	deviceConfig.SampleRate = 48000

	src := &loopbackSource{
		packets: make(chan []byte, 256),
		stopped: make(chan struct{}),
	}

	dev, err := malgo.InitDevice(o.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			b := make([]byte, len(input))
			copy(b, input)
			select {
			case src.packets <- b:
			default:
				// Drop rather than block the OS audio callback thread; the
				// ring buffer downstream is the real overrun boundary.
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init loopback device: %w", err)
	}
	src.device = dev
	src.format = audioformat.New(
		deviceConfig.SampleRate,
		uint16(deviceConfig.Capture.Channels),
		16,
	)
	return src, nil
}

// Close tears down the shared malgo context. Call once at process exit.
func (o *LoopbackOpener) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx != nil {
		o.ctx.Uninit()
		o.ctx = nil
	}
}

type loopbackSource struct {
	format  audioformat.Format
	device  *malgo.Device
	packets chan []byte

	closeOnce sync.Once
	stopped   chan struct{}
}

func (s *loopbackSource) Format() audioformat.Format { return s.format }

func (s *loopbackSource) Start() error {
	return s.device.Start()
}

func (s *loopbackSource) Stop() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.device.Stop()
		s.device.Uninit()
		close(s.stopped)
	})
	return err
}

func (s *loopbackSource) Read(timeoutMs int) (ReadResult, error) {
	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case b, ok := <-s.packets:
		if !ok {
			return ReadResult{Empty: true}, nil
		}
		return ReadResult{Data: b}, nil
	case <-s.stopped:
		return ReadResult{Empty: true}, ErrNoDefaultDevice
	case <-timer.C:
		return ReadResult{Empty: true}, nil
	}
}
