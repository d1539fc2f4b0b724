package render

import (
	"bytes"
	"sync"

	"github.com/superyngo/wemux/internal/audioformat"
)

// FakeOpener hands out FakeSinks keyed by device id for a test to inspect.
type FakeOpener struct {
	mu    sync.Mutex
	Fmt   audioformat.Format
	Sinks map[string]*FakeSink
	// OpenErr, if set for a device id, is returned once then cleared.
	OpenErr map[string]error
}

func NewFakeOpener(format audioformat.Format) *FakeOpener {
	return &FakeOpener{
		Fmt:     format,
		Sinks:   make(map[string]*FakeSink),
		OpenErr: make(map[string]error),
	}
}

func (o *FakeOpener) Open(deviceID string) (Sink, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.OpenErr[deviceID]; err != nil {
		delete(o.OpenErr, deviceID)
		return nil, err
	}
	s := &FakeSink{deviceID: deviceID, format: o.Fmt}
	o.Sinks[deviceID] = s
	return s, nil
}

// FakeSink is a Sink a test can inspect: Written accumulates every byte
// passed to WriteFrames (post clock-correction, volume, etc., since those
// are applied by the renderer loop before calling WriteFrames), and
// QueuedFramesValue is settable to drive clock-sync scenarios.
type FakeSink struct {
	mu                sync.Mutex
	deviceID          string
	format            audioformat.Format
	Written           bytes.Buffer
	SilenceFrames     int
	QueuedFramesValue uint64
	state             State
	lastErr           string
	started           bool
}

func (s *FakeSink) Format() audioformat.Format { return s.format }

func (s *FakeSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.state = Running
	return nil
}

func (s *FakeSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.state = Idle
	return nil
}

func (s *FakeSink) WriteFrames(data []byte, timeoutMs int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Written.Write(data)
	s.state = Running
	s.lastErr = ""
	return s.format.BytesToFrames(len(data)), nil
}

func (s *FakeSink) WriteSilence(frames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SilenceFrames += frames
	return nil
}

func (s *FakeSink) QueuedFrames() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.QueuedFramesValue, nil
}

func (s *FakeSink) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
	s.state = Error
}

func (s *FakeSink) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *FakeSink) DeviceState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetQueuedFrames lets a test drive the simulated hardware padding value.
func (s *FakeSink) SetQueuedFrames(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueuedFramesValue = n
}
