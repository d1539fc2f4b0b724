package engine

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/superyngo/wemux/internal/capture"
	"github.com/superyngo/wemux/internal/directory"
	"github.com/superyngo/wemux/internal/volume"
)

// runCapture owns a capture.Source, feeding every successfully read packet
// into the shared ring. A capture error is recovered locally with a
// ~10ms backoff; it never propagates out of the task.
func (e *Engine) runCapture(stop chan struct{}) {
	defer e.taskWG.Done()
	logger := e.log.With("component", "capture")

	var src capture.Source
	open := func() {
		s, err := e.deps.CaptureOpener.OpenDefault()
		if err != nil {
			logger.Warn("open default loopback failed, will retry", "err", err)
			src = nil
			return
		}
		if err := s.Start(); err != nil {
			logger.Warn("start loopback failed, will retry", "err", err)
			src = nil
			return
		}
		src = s
	}
	open()

	timeoutMs := int(e.cfg.CaptureTimeout.Milliseconds())

	for {
		select {
		case <-stop:
			if src != nil {
				_ = src.Stop()
			}
			return
		case <-e.reinitCaptureCh:
			if src != nil {
				_ = src.Stop()
			}
			logger.Info("reinitializing capture after default-device change")
			time.Sleep(100 * time.Millisecond) // let the old endpoint settle
			open()
			continue
		default:
		}

		if src == nil {
			time.Sleep(10 * time.Millisecond)
			open()
			continue
		}

		res, err := src.Read(timeoutMs)
		if err != nil {
			logger.Warn("capture read error, retrying", "err", err)
			_ = src.Stop()
			src = nil
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if res.Empty || len(res.Data) == 0 {
			continue
		}

		e.mu.Lock()
		rb := e.ringBuf
		e.mu.Unlock()
		if rb != nil {
			rb.Write(res.Data)
		}
	}
}

// runVolumeProbe sleeps PollInterval milliseconds between volume polls.
func (e *Engine) runVolumeProbe(stop chan struct{}) {
	defer e.taskWG.Done()
	logger := e.log.With("component", "volume")
	ticker := time.NewTicker(time.Duration(volume.PollInterval) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := e.deps.VolumeProbe.Poll(); err != nil {
				logger.Warn("volume poll failed", "err", err)
			}
		}
	}
}

// runChangeDispatch blocks on the notifier's event channel with a timeout
// so it can observe the stop flag, and serializes default-device
// transitions (two transitions cannot interleave because this is the only
// goroutine that processes them).
func (e *Engine) runChangeDispatch(notifier directory.Notifier, stop chan struct{}) {
	defer e.taskWG.Done()
	logger := e.log.With("component", "dispatch")
	timeout := e.cfg.ChangeDispatchPollInterval

	for {
		select {
		case <-stop:
			return
		case ev, ok := <-notifier.Events():
			if !ok {
				return
			}
			e.handleDirectoryEvent(ev, logger)
		case <-time.After(timeout):
		}
	}
}

func (e *Engine) handleDirectoryEvent(ev directory.Event, logger *log.Logger) {
	switch ev.Kind {
	case directory.DefaultChanged:
		if ev.DataFlow != directory.Render {
			return
		}
		e.handleDefaultChanged(ev.DeviceID)
	case directory.DeviceRemoved:
		e.handleDeviceRemoved(ev.DeviceID, logger)
	case directory.DeviceAdded:
		logger.Info("device added", "id", ev.DeviceID)
	case directory.StateChanged:
		logger.Info("device state changed", "id", ev.DeviceID, "state", ev.State)
	}
}

// handleDefaultChanged reinitializes capture and the volume probe against
// the new default endpoint and flips auto-pause between the old and new
// default renderers.
func (e *Engine) handleDefaultChanged(newDefault string) {
	e.mu.Lock()
	prevDefault := e.currentDefaultID
	e.currentDefaultID = newDefault
	renderers := e.renderers
	e.mu.Unlock()

	// When newDefault == prevDefault this is a no-op for every renderer's
	// flags below; reinitializing capture/volume regardless is harmless.

	// Bounded send: delivery to capture is required, but the capture task
	// always drains this channel promptly (every loop iteration), so a
	// buffered send of 1 with a short wait is enough to avoid dropping a
	// reinit request without risking an unbounded block if capture is
	// mid-teardown.
	select {
	case e.reinitCaptureCh <- struct{}{}:
	case <-time.After(500 * time.Millisecond):
		e.log.Warn("capture reinit signal dropped: capture task not draining")
	}

	if err := e.deps.VolumeProbe.Reinitialize(); err != nil {
		e.log.Warn("volume probe reinit failed", "err", err)
	}

	for id, r := range renderers {
		switch {
		case id == newDefault:
			r.setDefaultPaused(true)
		case id == prevDefault:
			if r.isPausedByDefault() {
				r.setDefaultPaused(false)
			}
		}
	}

	e.emitEvent(Event{Kind: DefaultDeviceChanged, DeviceID: newDefault})
	e.log.Info("default device changed", "from", prevDefault, "to", newDefault)
}

// handleDeviceRemoved stops the removed renderer (if managed) and, if it
// held the master clock role, promotes a remaining slave.
func (e *Engine) handleDeviceRemoved(id string, logger *log.Logger) {
	e.mu.Lock()
	mr, ok := e.renderers[id]
	if ok {
		delete(e.renderers, id)
		for i, rid := range e.rendererOrder {
			if rid == id {
				e.rendererOrder = append(e.rendererOrder[:i], e.rendererOrder[i+1:]...)
				break
			}
		}
	}
	clock := e.clock
	remaining := append([]string(nil), e.rendererOrder...)
	e.mu.Unlock()

	if !ok {
		return
	}

	wasMaster := clock != nil && clock.IsMaster(id)
	close(mr.stopCh)
	if clock != nil {
		clock.Unregister(id)
	}

	if wasMaster && clock != nil && len(remaining) > 0 {
		next := remaining[0]
		clock.PromoteMaster(next)
		logger.Info("promoted new master after device removal", "new_master", next, "removed", id)
	}
}
