package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/superyngo/wemux/internal/audioformat"
	"github.com/superyngo/wemux/internal/capture"
	"github.com/superyngo/wemux/internal/device"
	"github.com/superyngo/wemux/internal/directory"
	"github.com/superyngo/wemux/internal/render"
	"github.com/superyngo/wemux/internal/volume"
)

const testFastTimeout = 5 * time.Millisecond

func testFormat() audioformat.Format {
	return audioformat.New(48000, 2, 16)
}

type harness struct {
	t             *testing.T
	engine        *Engine
	dir           *directory.FakeDirectory
	renders       *render.FakeOpener
	captureOpener *capture.FakeOpener
	vol           *volume.FakeProbe
}

func newHarness(t *testing.T, devices []device.Info, cfg Configuration) *harness {
	t.Helper()
	dir := directory.NewFakeDirectory(devices...)
	renders := render.NewFakeOpener(testFormat())
	capOpener := capture.NewFakeOpener(testFormat())
	vol := volume.NewFakeProbe()

	cfg.CaptureTimeout = testFastTimeout
	cfg.RenderTimeout = testFastTimeout
	cfg.ChangeDispatchPollInterval = testFastTimeout

	e := New(cfg, Deps{
		CaptureOpener: capOpener,
		RenderOpener:  renders,
		Directory:     dir,
		NewNotifier:   func() (directory.Notifier, error) { return dir.NewNotifier() },
		VolumeProbe:   vol,
	})

	return &harness{t: t, engine: e, dir: dir, renders: renders, captureOpener: capOpener, vol: vol}
}

func hdmi(id, name string, isDefault bool) device.Info {
	return device.Info{ID: id, FriendlyName: name, IsDefault: isDefault, IsHDMI: true}
}

func speakers(id, name string, isDefault bool) device.Info {
	return device.Info{ID: id, FriendlyName: name, IsDefault: isDefault, IsHDMI: false}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// TestStart_TwoHDMISinksSystemDefaultHDMIA checks that of two HDMI sinks,
// the current default starts auto-paused and the other does not.
func TestStart_TwoHDMISinksSystemDefaultHDMIA(t *testing.T) {
	h := newHarness(t, []device.Info{
		hdmi("hdmi-a", "HDMI Output A", true),
		hdmi("hdmi-b", "HDMI Output B", false),
	}, Configuration{})

	require.NoError(t, h.engine.Start())
	defer h.engine.Stop()

	statuses := statusByID(h.engine.DeviceStatuses())
	require.True(t, statuses["hdmi-a"].Paused)
	require.False(t, statuses["hdmi-b"].Paused)

	sinkB := h.renders.Sinks["hdmi-b"]
	waitFor(t, func() bool { return sinkB.Written.Len() > 0 || sinkB.SilenceFrames > 0 })

	sinkA := h.renders.Sinks["hdmi-a"]
	// Give both sinks a moment to run; A should only ever receive silence.
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 0, sinkA.Written.Len(), "auto-paused default sink must not receive audio")
}

// TestDefaultChanged_FlipsAutoPauseBetweenTwoHDMISinks checks that moving
// the system default from one managed HDMI sink to another flips which
// one is auto-paused, while a separately user-paused sink is unaffected.
func TestDefaultChanged_FlipsAutoPauseBetweenTwoHDMISinks(t *testing.T) {
	h := newHarness(t, []device.Info{
		hdmi("hdmi-a", "HDMI Output A", true),
		hdmi("hdmi-b", "HDMI Output B", false),
		hdmi("hdmi-c", "HDMI Output C", false),
	}, Configuration{})

	require.NoError(t, h.engine.Start())
	defer h.engine.Stop()

	// User-pauses hdmi-c before the default flips.
	require.NoError(t, h.engine.PauseRenderer("hdmi-c"))

	h.dir.SetDefault("hdmi-b")
	waitFor(t, func() bool { return h.engine.IsDeviceDefault("hdmi-b") })

	// Let the dispatch task process the transition.
	waitFor(t, func() bool {
		st := statusByID(h.engine.DeviceStatuses())
		return st["hdmi-b"].Paused && !st["hdmi-a"].Paused
	})

	st := statusByID(h.engine.DeviceStatuses())
	require.True(t, st["hdmi-b"].Paused, "new default must be auto-paused")
	require.False(t, st["hdmi-a"].Paused, "previous default, auto-paused only, must resume")
	require.True(t, st["hdmi-c"].Paused, "user-paused sink must stay paused across a default change")
}

// TestDefaultChanged_ToNonManagedSpeakers checks that when the system
// default moves to an endpoint outside the managed set, the previously
// auto-paused sink resumes and an external event is published.
func TestDefaultChanged_ToNonManagedSpeakers(t *testing.T) {
	h := newHarness(t, []device.Info{
		hdmi("hdmi-a", "HDMI Output A", true),
		hdmi("hdmi-b", "HDMI Output B", false),
		speakers("speakers", "Speakers", false),
	}, Configuration{})

	require.NoError(t, h.engine.Start())
	defer h.engine.Stop()

	var gotEvent bool
	events := make(chan Event, 4)
	h.engine.SetEventChannel(events)

	h.dir.SetDefault("speakers")
	waitFor(t, func() bool { return h.engine.IsDeviceDefault("speakers") })
	waitFor(t, func() bool {
		return !statusByID(h.engine.DeviceStatuses())["hdmi-a"].Paused
	})

	select {
	case ev := <-events:
		gotEvent = ev.Kind == DefaultDeviceChanged && ev.DeviceID == "speakers"
	case <-time.After(time.Second):
	}
	require.True(t, gotEvent, "expected a DefaultDeviceChanged event")

	st := statusByID(h.engine.DeviceStatuses())
	require.False(t, st["hdmi-a"].Paused, "previous default auto-pause must clear")
	require.False(t, st["hdmi-b"].Paused, "untouched sink keeps its prior state")
}

// TestMasterRemoval_PromotesSlave checks that removing the clock master
// promotes one of the remaining renderers.
func TestMasterRemoval_PromotesSlave(t *testing.T) {
	h := newHarness(t, []device.Info{
		hdmi("hdmi-a", "HDMI Output A", false),
		hdmi("hdmi-b", "HDMI Output B", false),
	}, Configuration{UseAllOutputs: true})

	require.NoError(t, h.engine.Start())
	defer h.engine.Stop()

	// DeviceStatuses lists renderers in registration order, so statuses[0]
	// is the clock master; which device that is varies, since the fake
	// directory enumerates a map.
	statuses := h.engine.DeviceStatuses()
	require.Len(t, statuses, 2)

	h.dir.RemoveDevice(statuses[0].ID)
	waitFor(t, func() bool {
		return len(h.engine.DeviceStatuses()) == 1
	})

	remaining := h.engine.DeviceStatuses()
	require.Len(t, remaining, 1)
	require.NotEqual(t, statuses[0].ID, remaining[0].ID)

	// The surviving renderer must now hold the clock master role.
	waitFor(t, func() bool {
		h.engine.mu.Lock()
		clock := h.engine.clock
		h.engine.mu.Unlock()
		return clock != nil && clock.IsMaster(remaining[0].ID)
	})
}

// TestPauseRenderer_IdempotentAndDeviceNotFound checks that pausing an
// already-paused renderer is a no-op and that an unknown id returns
// DeviceNotFoundError.
func TestPauseRenderer_IdempotentAndDeviceNotFound(t *testing.T) {
	h := newHarness(t, []device.Info{
		hdmi("hdmi-a", "HDMI Output A", false),
	}, Configuration{})
	require.NoError(t, h.engine.Start())
	defer h.engine.Stop()

	require.NoError(t, h.engine.PauseRenderer("hdmi-a"))
	require.NoError(t, h.engine.PauseRenderer("hdmi-a"))
	require.True(t, statusByID(h.engine.DeviceStatuses())["hdmi-a"].Paused)

	err := h.engine.PauseRenderer("does-not-exist")
	require.Error(t, err)
	var notFound *DeviceNotFoundError
	require.ErrorAs(t, err, &notFound)
}

// TestStartStop_RestoresStoppedAndAllowsRestart checks that Stop restores
// the Stopped state cleanly enough for a subsequent Start to succeed.
func TestStartStop_RestoresStoppedAndAllowsRestart(t *testing.T) {
	h := newHarness(t, []device.Info{
		hdmi("hdmi-a", "HDMI Output A", false),
	}, Configuration{})

	require.NoError(t, h.engine.Start())
	require.Equal(t, Running, h.engine.State())
	require.NoError(t, h.engine.Stop())
	require.Equal(t, Stopped, h.engine.State())

	require.NoError(t, h.engine.Start())
	require.Equal(t, Running, h.engine.State())
	require.NoError(t, h.engine.Stop())
}

// TestStart_AlreadyRunning exercises the AlreadyRunning control-surface
// error.
func TestStart_AlreadyRunning(t *testing.T) {
	h := newHarness(t, []device.Info{hdmi("hdmi-a", "HDMI A", false)}, Configuration{})
	require.NoError(t, h.engine.Start())
	defer h.engine.Stop()
	require.ErrorIs(t, h.engine.Start(), ErrAlreadyRunning)
}

// TestStart_NoTargetDevices exercises the NoTargetDevices start-time error
// when HDMI classification finds nothing and UseAllOutputs is false.
func TestStart_NoTargetDevices(t *testing.T) {
	h := newHarness(t, []device.Info{speakers("speakers", "Speakers", true)}, Configuration{})
	err := h.engine.Start()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoTargetDevices)
	require.Equal(t, Stopped, h.engine.State())
}

// TestRenderer_ReceivesCapturedAudioWhenUnpaused exercises the basic data
// flow LoopbackSource -> RingBuffer -> SinkRenderer end to end through the
// fakes.
func TestRenderer_ReceivesCapturedAudioWhenUnpaused(t *testing.T) {
	h := newHarness(t, []device.Info{
		hdmi("hdmi-a", "HDMI Output A", false),
	}, Configuration{UseAllOutputs: true})

	require.NoError(t, h.engine.Start())
	defer h.engine.Stop()

	// Push a handful of packets through whatever Source the engine's
	// capture task opened.
	packet := make([]byte, 4*int(testFormat().BlockAlignBytes))
	for i := 0; i < 20; i++ {
		pushIntoLatestSource(h, packet)
		time.Sleep(2 * time.Millisecond)
	}

	sink := h.renders.Sinks["hdmi-a"]
	waitFor(t, func() bool { return sink.Written.Len() > 0 })
}

func statusByID(statuses []Status) map[string]Status {
	out := make(map[string]Status, len(statuses))
	for _, s := range statuses {
		out[s.ID] = s
	}
	return out
}

// pushIntoLatestSource feeds a packet into the fake capture opener's most
// recently opened source. Start opens the opener twice (the format probe,
// then the capture task's own source) and a default-device reinit opens it
// again, so this helper relies on FakeOpener.PushToLatest instead of a
// reference kept from any single OpenDefault call.
func pushIntoLatestSource(h *harness, packet []byte) {
	h.captureOpener.PushToLatest(packet)
}
