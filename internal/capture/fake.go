package capture

import (
	"sync"
	"time"

	"github.com/superyngo/wemux/internal/audioformat"
)

// FakeOpener is a test/non-Windows Opener backed by an in-memory queue of
// packets a test feeds in with Push. It never fails unless NextErr is set.
type FakeOpener struct {
	mu      sync.Mutex
	Fmt     audioformat.Format
	NextErr error
	latest  *FakeSource
}

// NewFakeOpener builds a FakeOpener with the given session format.
func NewFakeOpener(format audioformat.Format) *FakeOpener {
	return &FakeOpener{Fmt: format}
}

func (o *FakeOpener) OpenDefault() (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.NextErr != nil {
		err := o.NextErr
		o.NextErr = nil
		return nil, err
	}
	src := &FakeSource{format: o.Fmt, packets: make(chan []byte, 64)}
	o.latest = src
	return src, nil
}

// PushToLatest enqueues a capture packet into whichever Source was most
// recently opened, letting a test feed bytes into the engine's capture
// task without needing to know when a default-device reinit last
// recreated it.
func (o *FakeOpener) PushToLatest(packet []byte) {
	o.mu.Lock()
	src := o.latest
	o.mu.Unlock()
	if src != nil {
		src.Push(packet)
	}
}

// FakeSource is a Source a test drives directly via Push.
type FakeSource struct {
	format  audioformat.Format
	packets chan []byte
	mu      sync.Mutex
	started bool
	stopped bool
}

func (s *FakeSource) Format() audioformat.Format { return s.format }

func (s *FakeSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *FakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.packets)
	}
	return nil
}

// Push enqueues one capture packet for a test to simulate the OS handing
// the capture callback real PCM bytes.
func (s *FakeSource) Push(packet []byte) {
	defer func() { recover() }() // ignore push-after-close in teardown races
	s.packets <- packet
}

func (s *FakeSource) Read(timeoutMs int) (ReadResult, error) {
	select {
	case b, ok := <-s.packets:
		if !ok {
			return ReadResult{Empty: true}, nil
		}
		return ReadResult{Data: b}, nil
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return ReadResult{Empty: true}, nil
	}
}
