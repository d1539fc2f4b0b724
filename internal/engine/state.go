package engine

import (
	"sync"
	"sync/atomic"

	"github.com/superyngo/wemux/internal/clocksync"
	"github.com/superyngo/wemux/internal/render"
	"github.com/superyngo/wemux/internal/ring"
)

// RunState is the Engine's top-level lifecycle.
type RunState int

const (
	Uninitialized RunState = iota
	Stopped
	Running
	ShuttingDown

	// starting is an internal-only guard value occupied while Start is
	// mid-flight, so a concurrent Start call observes AlreadyRunning
	// instead of racing the first one. State() reports it while Start is
	// in progress.
	starting
)

func (s RunState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case starting:
		return "starting"
	default:
		return "unknown"
	}
}

// managedRenderer is the engine's bookkeeping for one render target: the
// sink, its clock-sync role, its reader into the shared ring, its pause
// flags, and the goroutine-visible stop signal.
type managedRenderer struct {
	deviceID     string
	friendlyName string
	sink         render.Sink
	reader       *ring.Reader
	role         clocksync.Role

	// paused is the OR of pausedByUser and pausedByDefault, recomputed
	// under mu whenever either changes.
	paused atomic.Bool

	mu               sync.Mutex
	pausedByUser     bool
	pausedByDefault  bool

	stopCh chan struct{}
	done   chan struct{}

	// diagnostics counters surfaced through Stats.
	framesWritten    atomic.Uint64
	lastCorrection   atomic.Int64
	lastQueuedFrames atomic.Uint64
}

func newManagedRenderer(id, name string, sink render.Sink, reader *ring.Reader, role clocksync.Role) *managedRenderer {
	r := &managedRenderer{
		deviceID:     id,
		friendlyName: name,
		sink:         sink,
		reader:       reader,
		role:         role,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
	return r
}

func (r *managedRenderer) recomputePaused() {
	r.paused.Store(r.pausedByUser || r.pausedByDefault)
}

// setUserPaused implements external pause_renderer/resume_renderer.
func (r *managedRenderer) setUserPaused(v bool) {
	r.mu.Lock()
	r.pausedByUser = v
	r.recomputePaused()
	r.mu.Unlock()
}

// setDefaultPaused implements the engine-internal auto-pause rule applied
// to whichever renderer targets the current system default.
func (r *managedRenderer) setDefaultPaused(v bool) {
	r.mu.Lock()
	r.pausedByDefault = v
	r.recomputePaused()
	r.mu.Unlock()
}

func (r *managedRenderer) isPausedByDefault() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pausedByDefault
}

// Status is the struct returned for each renderer by DeviceStatuses.
type Status struct {
	ID              string
	Name            string
	Enabled         bool // !Paused
	Paused          bool
	IsSystemDefault bool
	State           render.State
	LastError       string
}

// Stats carries per-renderer diagnostics counters for an external status
// view.
type Stats struct {
	ID               string
	FramesWritten    uint64
	CorrectionFrames int64
	QueuedFrames     uint64
}
