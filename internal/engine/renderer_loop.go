package engine

import "time"

// runRenderer drives one managed renderer: a start-up silence pre-fill,
// then per-iteration either silence (paused) or a volume- and
// clock-corrected write from the shared ring.
func (e *Engine) runRenderer(mr *managedRenderer) {
	defer e.taskWG.Done()
	defer close(mr.done)

	logger := e.log.With("component", "renderer", "device", mr.deviceID)

	if err := mr.sink.Start(); err != nil {
		mr.sink.SetError(err.Error())
		logger.Warn("renderer start failed, will retry", "err", err)
	}

	format := mr.sink.Format()
	prefillFrames := format.MillisToFrames(20)
	if prefillFrames > 0 {
		_ = mr.sink.WriteSilence(prefillFrames)
	}

	pausedSilenceFrames := format.MillisToFrames(10)
	scratch := make([]byte, format.MillisToBytes(100))
	timeoutMs := int(e.cfg.RenderTimeout.Milliseconds())

	for {
		select {
		case <-mr.stopCh:
			_ = mr.sink.Stop()
			return
		default:
		}

		if mr.paused.Load() {
			if pausedSilenceFrames > 0 {
				_ = mr.sink.WriteSilence(pausedSilenceFrames)
			}
			// Keep the reader at the live edge so resuming never starts
			// with stale, possibly overrun-lost data.
			mr.reader.CatchUp()
			time.Sleep(e.cfg.RenderTimeout)
			continue
		}

		if mr.reader.IsLagging() {
			mr.reader.CatchUp()
		}

		n := mr.reader.Read(scratch)
		if n == 0 {
			time.Sleep(e.cfg.RenderTimeout)
			continue
		}
		data := scratch[:n]

		vol := 1.0
		if e.deps.VolumeProbe != nil {
			vol = e.deps.VolumeProbe.Scalar()
		}
		applyVolume(data, vol)

		correction := int64(0)
		e.mu.Lock()
		clock := e.clock
		e.mu.Unlock()
		if clock != nil {
			correction = clock.Correction(mr.deviceID)
		}
		mr.lastCorrection.Store(correction)

		if correction > 0 {
			// Slave ahead of master: drop correction frames worth of
			// leading bytes.
			dropBytes := format.FramesToBytes(int(correction))
			if dropBytes > len(data) {
				dropBytes = len(data)
			}
			data = data[dropBytes:]
		} else if correction < 0 {
			// Slave behind master: insert |correction| silent frames ahead
			// of the real write instead of waiting for a natural underrun
			// (see DESIGN.md for why).
			insertFrames := int(-correction)
			_ = mr.sink.WriteSilence(insertFrames)
		}

		written, err := mr.sink.WriteFrames(data, timeoutMs)
		if err != nil {
			mr.sink.SetError(err.Error())
			logger.Warn("write failed", "err", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		mr.framesWritten.Add(uint64(written))

		if queued, err := mr.sink.QueuedFrames(); err == nil {
			mr.lastQueuedFrames.Store(queued)
			if clock != nil {
				clock.ReportQueued(mr.deviceID, int64(queued))
			}
		}
	}
}

// applyVolume scales interleaved S16LE samples in place by scalar, the
// mix format malgo/WASAPI negotiate for loopback throughout this module.
func applyVolume(data []byte, scalar float64) {
	if scalar == 1.0 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		scaled := float64(sample) * scalar
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		out := int16(scaled)
		data[i] = byte(uint16(out))
		data[i+1] = byte(uint16(out) >> 8)
	}
}
