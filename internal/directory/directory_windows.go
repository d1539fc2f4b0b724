//go:build windows

package directory

import (
	"fmt"
	"sync"

	"github.com/superyngo/wemux/internal/device"
	"github.com/superyngo/wemux/internal/wasapi"
)

// WASAPIDirectory enumerates render endpoints through an
// IMMDeviceEnumerator and classifies HDMI sinks via device.IsHDMIDevice.
type WASAPIDirectory struct {
	enumerator *wasapi.DeviceEnumerator
}

// NewWASAPIDirectory wraps an already-created enumerator (shared with the
// render and volume backends so they agree on one COM apartment).
func NewWASAPIDirectory(enumerator *wasapi.DeviceEnumerator) *WASAPIDirectory {
	return &WASAPIDirectory{enumerator: enumerator}
}

func (d *WASAPIDirectory) EnumerateAll() ([]device.Info, error) {
	return d.enumerate(wasapi.DeviceStateActive | wasapi.DeviceStateUnplugged)
}

func (d *WASAPIDirectory) EnumerateHDMI() ([]device.Info, error) {
	all, err := d.EnumerateAll()
	if err != nil {
		return nil, err
	}
	var hdmi []device.Info
	for _, dev := range all {
		if dev.IsHDMI {
			hdmi = append(hdmi, dev)
		}
	}
	return hdmi, nil
}

func (d *WASAPIDirectory) enumerate(stateMask uint32) ([]device.Info, error) {
	defaultDev, err := d.enumerator.GetDefaultAudioEndpoint(wasapi.EDataFlowRender, wasapi.ERoleConsole)
	var defaultID string
	if err == nil {
		defaultID, _ = defaultDev.ID()
	}

	coll, err := d.enumerator.EnumAudioEndpoints(wasapi.EDataFlowRender, stateMask)
	if err != nil {
		return nil, fmt.Errorf("directory: enumerate endpoints: %w", err)
	}
	count, err := coll.Count()
	if err != nil {
		return nil, fmt.Errorf("directory: count endpoints: %w", err)
	}

	out := make([]device.Info, 0, count)
	for i := 0; i < count; i++ {
		item, err := coll.Item(i)
		if err != nil {
			continue
		}
		info, err := toDeviceInfo(item, defaultID)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func (d *WASAPIDirectory) GetDefault() (device.Info, error) {
	defaultDev, err := d.enumerator.GetDefaultAudioEndpoint(wasapi.EDataFlowRender, wasapi.ERoleConsole)
	if err != nil {
		return device.Info{}, fmt.Errorf("directory: get default endpoint: %w", err)
	}
	id, err := defaultDev.ID()
	if err != nil {
		return device.Info{}, err
	}
	return toDeviceInfo(defaultDev, id)
}

func (d *WASAPIDirectory) GetByID(id string) (device.Info, bool, error) {
	dev, err := d.enumerator.GetDevice(id)
	if err != nil {
		return device.Info{}, false, nil
	}
	var defaultID string
	if defaultDev, err := d.enumerator.GetDefaultAudioEndpoint(wasapi.EDataFlowRender, wasapi.ERoleConsole); err == nil {
		defaultID, _ = defaultDev.ID()
	}
	info, err := toDeviceInfo(dev, defaultID)
	if err != nil {
		return device.Info{}, false, err
	}
	return info, true, nil
}

func (d *WASAPIDirectory) DefaultName() (string, error) {
	def, err := d.GetDefault()
	if err != nil {
		return "", err
	}
	return def.FriendlyName, nil
}

func toDeviceInfo(dev *wasapi.Device, defaultID string) (device.Info, error) {
	id, err := dev.ID()
	if err != nil {
		return device.Info{}, err
	}
	name, err := dev.FriendlyName()
	if err != nil {
		name = id
	}
	return device.Info{
		ID:           id,
		FriendlyName: name,
		IsDefault:    id == defaultID,
		IsHDMI:       device.IsHDMIDevice(id, name),
	}, nil
}

// WASAPINotifier wraps a wasapi.NotificationSink registration, translating
// its raw callbacks into directory.Event values.
type WASAPINotifier struct {
	enumerator *wasapi.DeviceEnumerator
	sink       *wasapi.NotificationSink

	mu     sync.Mutex
	events chan Event
	done   chan struct{}
}

// NewWASAPINotifier registers a notification sink on enumerator and starts
// translating its callbacks.
func NewWASAPINotifier(enumerator *wasapi.DeviceEnumerator) (*WASAPINotifier, error) {
	sink := wasapi.NewNotificationSink()
	if err := enumerator.RegisterEndpointNotificationCallback(sink); err != nil {
		return nil, fmt.Errorf("directory: register notification callback: %w", err)
	}
	n := &WASAPINotifier{
		enumerator: enumerator,
		sink:       sink,
		events:     make(chan Event, EventChannelCapacity),
		done:       make(chan struct{}),
	}
	go n.pump()
	return n, nil
}

func (n *WASAPINotifier) pump() {
	for raw := range n.sink.Events() {
		ev, ok := translateNotification(raw)
		if !ok {
			continue
		}
		select {
		case n.events <- ev:
		default:
			// Drop-newest under backpressure per the Notifier contract.
		}
	}
	close(n.events)
}

func translateNotification(raw wasapi.Notification) (Event, bool) {
	switch raw.Kind {
	case wasapi.NotifyDefaultDeviceChanged:
		flow := Render
		if raw.DataFlow == wasapi.EDataFlowCapture {
			flow = Capture
		}
		return Event{Kind: DefaultChanged, DataFlow: flow, DeviceID: raw.DeviceID}, true
	case wasapi.NotifyDeviceAdded:
		return Event{Kind: DeviceAdded, DeviceID: raw.DeviceID}, true
	case wasapi.NotifyDeviceRemoved:
		return Event{Kind: DeviceRemoved, DeviceID: raw.DeviceID}, true
	case wasapi.NotifyDeviceStateChanged:
		return Event{Kind: StateChanged, DeviceID: raw.DeviceID, State: fmt.Sprintf("0x%X", raw.State)}, true
	default:
		return Event{}, false
	}
}

func (n *WASAPINotifier) Events() <-chan Event { return n.events }

func (n *WASAPINotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.enumerator.UnregisterEndpointNotificationCallback(n.sink)
	n.sink.Close()
	return err
}
