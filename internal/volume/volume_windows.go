//go:build windows

package volume

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/superyngo/wemux/internal/wasapi"
)

// WASAPIProbe polls IAudioEndpointVolume on the current default render
// endpoint, folding mute into the reported scalar (a muted endpoint
// reports 0.0 regardless of its stored level) so the renderer loop only
// has one number to apply.
type WASAPIProbe struct {
	enumerator *wasapi.DeviceEnumerator

	mu   sync.Mutex
	ev   *wasapi.EndpointVolume
	bits atomic.Uint64
}

// NewWASAPIProbe opens the endpoint volume interface for the current
// default render device.
func NewWASAPIProbe(enumerator *wasapi.DeviceEnumerator) (*WASAPIProbe, error) {
	p := &WASAPIProbe{enumerator: enumerator}
	p.bits.Store(math.Float64bits(1.0))
	if err := p.Reinitialize(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *WASAPIProbe) Scalar() float64 {
	return math.Float64frombits(p.bits.Load())
}

func (p *WASAPIProbe) Poll() error {
	p.mu.Lock()
	ev := p.ev
	p.mu.Unlock()
	if ev == nil {
		return fmt.Errorf("volume: not initialized")
	}
	level, err := ev.GetMasterVolumeLevelScalar()
	if err != nil {
		return err
	}
	muted, err := ev.GetMute()
	if err != nil {
		return err
	}
	scalar := float64(level)
	if muted {
		scalar = 0
	}
	p.bits.Store(math.Float64bits(scalar))
	return nil
}

func (p *WASAPIProbe) Reinitialize() error {
	dev, err := p.enumerator.GetDefaultAudioEndpoint(wasapi.EDataFlowRender, wasapi.ERoleConsole)
	if err != nil {
		return fmt.Errorf("volume: get default endpoint: %w", err)
	}
	ev, err := wasapi.GetEndpointVolume(dev)
	if err != nil {
		return fmt.Errorf("volume: activate endpoint volume: %w", err)
	}
	p.mu.Lock()
	p.ev = ev
	p.mu.Unlock()
	return p.Poll()
}

func (p *WASAPIProbe) Close() error {
	p.mu.Lock()
	p.ev = nil
	p.mu.Unlock()
	return nil
}
