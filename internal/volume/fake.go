package volume

import (
	"math"
	"sync/atomic"
)

// FakeProbe is a test Probe whose scalar a test sets directly with Set.
type FakeProbe struct {
	bits uint64 // float64 bit pattern, accessed via atomic
}

// NewFakeProbe builds a FakeProbe starting at full volume.
func NewFakeProbe() *FakeProbe {
	p := &FakeProbe{}
	p.Set(1.0)
	return p
}

func (p *FakeProbe) Scalar() float64 {
	return math.Float64frombits(atomic.LoadUint64(&p.bits))
}

// Set lets a test drive the simulated system volume.
func (p *FakeProbe) Set(v float64) {
	atomic.StoreUint64(&p.bits, math.Float64bits(v))
}

func (p *FakeProbe) Poll() error         { return nil }
func (p *FakeProbe) Reinitialize() error { return nil }
func (p *FakeProbe) Close() error        { return nil }
