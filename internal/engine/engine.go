// Package engine is the coordinator: it owns configuration, spawns the
// capture, volume-probe, change-dispatch, and per-sink renderer tasks,
// exposes a thread-safe control surface, and enforces the cross-component
// invariants (one master renderer, the default-device auto-pause rule,
// glitch-free recreation of capture on default changes).
package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/superyngo/wemux/internal/audioformat"
	"github.com/superyngo/wemux/internal/capture"
	"github.com/superyngo/wemux/internal/clocksync"
	"github.com/superyngo/wemux/internal/device"
	"github.com/superyngo/wemux/internal/directory"
	"github.com/superyngo/wemux/internal/render"
	"github.com/superyngo/wemux/internal/ring"
	"github.com/superyngo/wemux/internal/volume"
)

// NotifierFactory constructs a fresh OS change-notifier registration. The
// engine calls it once per Start and tears the result down in Stop,
// before joining the dispatch task, so no callback can fire into freed
// engine state.
type NotifierFactory func() (directory.Notifier, error)

// Deps bundles the capability implementations the engine coordinates.
// Production callers wire these to the WASAPI/malgo backends; tests wire
// them to the fakes in each package.
type Deps struct {
	CaptureOpener capture.Opener
	RenderOpener  render.Opener
	Directory     directory.Directory
	NewNotifier   NotifierFactory
	VolumeProbe   volume.Probe
	Logger        *log.Logger
}

// Engine coordinates one duplication session. The zero value is not
// usable; use New.
type Engine struct {
	cfg  Configuration
	deps Deps
	log  *log.Logger

	mu    sync.Mutex
	state RunState

	// Running-session state, valid only while state == Running or during
	// the Start/Stop transition that sets it up/tears it down.
	format        audioformat.Format
	ringBuf       *ring.Buffer
	clock         *clocksync.State
	renderers     map[string]*managedRenderer
	rendererOrder []string // registration order, for master re-selection

	currentDefaultID string
	deviceNames      map[string]string

	notifier       directory.Notifier
	captureCancel  func()
	volumeCancel   func()
	dispatchCancel func()
	taskWG         sync.WaitGroup

	reinitCaptureCh chan struct{}

	eventMu sync.Mutex
	eventCh chan<- Event
}

// New constructs an Engine in the Uninitialized state.
func New(cfg Configuration, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &Engine{
		cfg:   cfg.WithDefaults(),
		deps:  deps,
		log:   deps.Logger.With("component", "engine"),
		state: Uninitialized,
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetEventChannel registers the sink external listeners receive
// EngineEvents on. Replaces any previously registered sink.
func (e *Engine) SetEventChannel(ch chan<- Event) {
	e.eventMu.Lock()
	e.eventCh = ch
	e.eventMu.Unlock()
}

func (e *Engine) emitEvent(ev Event) {
	e.eventMu.Lock()
	ch := e.eventCh
	e.eventMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

// Start opens a capture probe, resolves target sinks, sizes the shared
// ring buffer, and spins up the capture/volume/dispatch/renderer tasks. On
// any failure it rolls the engine back to Stopped and returns a
// *StartError (except AlreadyRunning).
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state == Running || e.state == ShuttingDown || e.state == starting {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.state = starting
	e.mu.Unlock()

	if err := e.start(); err != nil {
		e.mu.Lock()
		e.state = Stopped
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	e.state = Running
	e.mu.Unlock()
	return nil
}

func (e *Engine) start() error {
	// Step 1: open a throwaway loopback source purely to learn the
	// session format.
	probe, err := e.deps.CaptureOpener.OpenDefault()
	if err != nil {
		return &StartError{Reason: "open default loopback for format probe", Err: err}
	}
	format := probe.Format()
	_ = probe.Stop()

	// Step 2: resolve target sinks.
	all, err := e.deps.Directory.EnumerateAll()
	if err != nil {
		return &StartError{Reason: "enumerate render endpoints", Err: err}
	}
	targets := resolveTargets(all, e.cfg)
	if len(targets) == 0 {
		return &StartError{Reason: "no target devices found", Err: ErrNoTargetDevices}
	}

	defaultDev, err := e.deps.Directory.GetDefault()
	if err != nil {
		// The loopback probe above already succeeded; a directory that
		// names no default leaves no renderer auto-paused.
		e.log.Warn("query default device failed, no renderer auto-paused", "err", err)
		defaultDev = device.Info{}
	}

	// Step 3: size the ring from BufferMs widened per extra target sink;
	// no hardware-capability query is made (see computeRingCapacity).
	capacity := computeRingCapacity(format, e.cfg.BufferMs, len(targets))
	ringBuf := ring.New(capacity)

	clampFrames := e.cfg.ClockClampFrames
	if clampFrames == 0 {
		clampFrames = int64(format.SampleRateHz) / 10
	}
	clock := clocksync.New(clampFrames)

	renderers := make(map[string]*managedRenderer, len(targets))
	order := make([]string, 0, len(targets))
	deviceNames := make(map[string]string, len(all))
	for _, d := range all {
		deviceNames[d.ID] = d.FriendlyName
	}

	for _, target := range targets {
		sink, err := e.deps.RenderOpener.Open(target.ID)
		if err != nil {
			// Roll back any renderers already opened.
			for _, r := range renderers {
				_ = r.sink.Stop()
			}
			return &StartError{Reason: fmt.Sprintf("open renderer for %s", target.ID), Err: err}
		}
		role := clock.Register(target.ID)
		mr := newManagedRenderer(target.ID, target.FriendlyName, sink, ringBuf.NewReader(), role)
		if target.ID == defaultDev.ID {
			mr.setDefaultPaused(true)
		}
		if e.cfg.InitialPausedIDs[target.ID] {
			mr.setUserPaused(true)
		}
		renderers[target.ID] = mr
		order = append(order, target.ID)
	}

	// Step 4 & 5 recorded; step 6 starts the worker tasks below.
	e.mu.Lock()
	e.format = format
	e.ringBuf = ringBuf
	e.clock = clock
	e.renderers = renderers
	e.rendererOrder = order
	e.currentDefaultID = defaultDev.ID
	e.deviceNames = deviceNames
	e.reinitCaptureCh = make(chan struct{}, 1)
	e.mu.Unlock()

	notifier, err := e.deps.NewNotifier()
	if err != nil {
		for _, r := range renderers {
			_ = r.sink.Stop()
		}
		return &StartError{Reason: "register change notifier", Err: err}
	}
	e.mu.Lock()
	e.notifier = notifier
	e.mu.Unlock()

	e.startTasks(notifier)
	e.log.Info("engine started", "targets", len(targets), "default", defaultDev.ID, "format", format.String())
	return nil
}

func (e *Engine) startTasks(notifier directory.Notifier) {
	captureStop := make(chan struct{})
	e.captureCancel = func() { close(captureStop) }
	e.taskWG.Add(1)
	go e.runCapture(captureStop)

	volumeStop := make(chan struct{})
	e.volumeCancel = func() { close(volumeStop) }
	e.taskWG.Add(1)
	go e.runVolumeProbe(volumeStop)

	dispatchStop := make(chan struct{})
	e.dispatchCancel = func() { close(dispatchStop) }
	e.taskWG.Add(1)
	go e.runChangeDispatch(notifier, dispatchStop)

	for _, id := range e.rendererOrder {
		mr := e.renderers[id]
		e.taskWG.Add(1)
		go e.runRenderer(mr)
	}
}

// Stop tears down the running session: the notifier, then the worker
// tasks, then every sink. Idempotent from any non-Running state.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return nil
	}
	e.state = ShuttingDown
	notifier := e.notifier
	captureCancel := e.captureCancel
	volumeCancel := e.volumeCancel
	dispatchCancel := e.dispatchCancel
	renderers := e.renderers
	e.mu.Unlock()

	// Drop the notifier registration before joining the dispatch task so no
	// OS callback can ever fire into freed engine state.
	if notifier != nil {
		_ = notifier.Close()
	}

	for _, r := range renderers {
		close(r.stopCh)
	}

	if captureCancel != nil {
		captureCancel()
	}
	if volumeCancel != nil {
		volumeCancel()
	}
	if dispatchCancel != nil {
		dispatchCancel()
	}

	e.taskWG.Wait()

	for _, r := range renderers {
		_ = r.sink.Stop()
	}
	_ = e.deps.VolumeProbe.Close()

	e.mu.Lock()
	e.ringBuf = nil
	e.clock = nil
	e.renderers = nil
	e.rendererOrder = nil
	e.deviceNames = nil
	e.notifier = nil
	e.format = audioformat.Format{}
	e.state = Stopped
	e.mu.Unlock()

	e.log.Info("engine stopped")
	return nil
}

// PauseRenderer sets a renderer's user-pause flag. The Engine itself
// allows pausing the current system default (rejecting that, if desired,
// is the caller's job); it never auto-resumes a device it did not
// auto-pause.
func (e *Engine) PauseRenderer(id string) error {
	return e.setUserPause(id, true)
}

// ResumeRenderer clears a renderer's user-pause flag.
func (e *Engine) ResumeRenderer(id string) error {
	return e.setUserPause(id, false)
}

func (e *Engine) setUserPause(id string, paused bool) error {
	e.mu.Lock()
	mr, ok := e.renderers[id]
	e.mu.Unlock()
	if !ok {
		return &DeviceNotFoundError{ID: id}
	}
	mr.setUserPaused(paused)
	return nil
}

// IsDeviceDefault reports whether id is the currently recorded system
// default render device.
func (e *Engine) IsDeviceDefault(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentDefaultID == id
}

// DeviceStatuses returns the current status of every managed renderer.
func (e *Engine) DeviceStatuses() []Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Status, 0, len(e.renderers))
	for _, id := range e.rendererOrder {
		mr, ok := e.renderers[id]
		if !ok {
			continue
		}
		paused := mr.paused.Load()
		out = append(out, Status{
			ID:              mr.deviceID,
			Name:            mr.friendlyName,
			Enabled:         !paused,
			Paused:          paused,
			IsSystemDefault: mr.deviceID == e.currentDefaultID,
			State:           mr.sink.DeviceState(),
			LastError:       mr.sink.LastError(),
		})
	}
	return out
}

// Stats returns the SPEC_FULL.md diagnostics snapshot for every managed
// renderer.
func (e *Engine) Stats() []Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Stats, 0, len(e.renderers))
	for _, id := range e.rendererOrder {
		mr, ok := e.renderers[id]
		if !ok {
			continue
		}
		out = append(out, Stats{
			ID:               mr.deviceID,
			FramesWritten:    mr.framesWritten.Load(),
			CorrectionFrames: mr.lastCorrection.Load(),
			QueuedFrames:     mr.lastQueuedFrames.Load(),
		})
	}
	return out
}

// resolveTargets picks which enumerated endpoints to duplicate to: an
// explicit TargetIDs list wins, then UseAllOutputs, otherwise HDMI-only,
// with ExcludeIDs always filtering the result.
func resolveTargets(all []device.Info, cfg Configuration) []device.Info {
	var targets []device.Info
	switch {
	case len(cfg.TargetIDs) > 0:
		for _, d := range all {
			for _, needle := range cfg.TargetIDs {
				if containsFold(d.ID, needle) || containsFold(d.FriendlyName, needle) {
					targets = append(targets, d)
					break
				}
			}
		}
	case cfg.UseAllOutputs:
		targets = append(targets, all...)
	default:
		for _, d := range all {
			if d.IsHDMI {
				targets = append(targets, d)
			}
		}
	}

	if len(cfg.ExcludeIDs) == 0 {
		return targets
	}
	filtered := targets[:0]
	for _, d := range targets {
		excluded := false
		for _, needle := range cfg.ExcludeIDs {
			if containsFold(d.ID, needle) {
				excluded = true
				break
			}
		}
		if !excluded {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// computeRingCapacity sizes the ring in bytes. A hardware-capability query
// for optimal buffer sizing is not exposed by any capability interface in
// this module, so this always falls back to BufferMs of audio at the
// session format, widened by 10ms per additional target sink beyond the
// first so slower renderers have more slack before overrunning.
func computeRingCapacity(format audioformat.Format, bufferMs uint32, targetCount int) int {
	extraMs := 0
	if targetCount > 1 {
		extraMs = (targetCount - 1) * 10
	}
	capacity := format.MillisToBytes(int(bufferMs) + extraMs)
	if capacity < int(format.BlockAlignBytes) {
		capacity = int(format.BlockAlignBytes) * 256
	}
	return capacity
}
