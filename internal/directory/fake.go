package directory

import (
	"sync"

	"github.com/superyngo/wemux/internal/device"
)

// FakeDirectory is an in-memory Directory whose device set a test drives
// with SetDefault/AddDevice/RemoveDevice. It also acts as a hub handing
// out fresh FakeNotifier subscriptions, the way the engine creates a new
// OS notifier registration on every Start while the underlying device
// state persists across restarts.
type FakeDirectory struct {
	mu      sync.Mutex
	devices map[string]device.Info
	subs    map[*FakeNotifier]struct{}
}

// NewFakeDirectory builds a FakeDirectory seeded with the given devices.
func NewFakeDirectory(devices ...device.Info) *FakeDirectory {
	d := &FakeDirectory{
		devices: make(map[string]device.Info),
		subs:    make(map[*FakeNotifier]struct{}),
	}
	for _, dev := range devices {
		d.devices[dev.ID] = dev
	}
	return d
}

func (d *FakeDirectory) EnumerateAll() ([]device.Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]device.Info, 0, len(d.devices))
	for _, dev := range d.devices {
		out = append(out, dev)
	}
	return out, nil
}

func (d *FakeDirectory) EnumerateHDMI() ([]device.Info, error) {
	all, _ := d.EnumerateAll()
	out := all[:0]
	for _, dev := range all {
		if dev.IsHDMI {
			out = append(out, dev)
		}
	}
	return out, nil
}

func (d *FakeDirectory) GetDefault() (device.Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, dev := range d.devices {
		if dev.IsDefault {
			return dev, nil
		}
	}
	return device.Info{}, errNoDefault
}

func (d *FakeDirectory) GetByID(id string) (device.Info, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[id]
	return dev, ok, nil
}

func (d *FakeDirectory) DefaultName() (string, error) {
	dev, err := d.GetDefault()
	if err != nil {
		return "", err
	}
	return dev.FriendlyName, nil
}

// NewNotifier hands out a fresh subscription, mirroring the engine calling
// a NotifierFactory once per Start.
func (d *FakeDirectory) NewNotifier() (Notifier, error) {
	n := &FakeNotifier{dir: d, events: make(chan Event, EventChannelCapacity)}
	d.mu.Lock()
	d.subs[n] = struct{}{}
	d.mu.Unlock()
	return n, nil
}

func (d *FakeDirectory) broadcast(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for n := range d.subs {
		select {
		case n.events <- ev:
		default:
		}
	}
}

// SetDefault marks id as the sole default device among those known and
// emits a DefaultChanged event, the way the real notifier would.
func (d *FakeDirectory) SetDefault(id string) {
	d.mu.Lock()
	for devID, dev := range d.devices {
		dev.IsDefault = devID == id
		d.devices[devID] = dev
	}
	d.mu.Unlock()
	d.broadcast(Event{Kind: DefaultChanged, DataFlow: Render, DeviceID: id})
}

// AddDevice registers a new device and emits DeviceAdded.
func (d *FakeDirectory) AddDevice(dev device.Info) {
	d.mu.Lock()
	d.devices[dev.ID] = dev
	d.mu.Unlock()
	d.broadcast(Event{Kind: DeviceAdded, DeviceID: dev.ID})
}

// RemoveDevice unregisters a device and emits DeviceRemoved.
func (d *FakeDirectory) RemoveDevice(id string) {
	d.mu.Lock()
	delete(d.devices, id)
	d.mu.Unlock()
	d.broadcast(Event{Kind: DeviceRemoved, DeviceID: id})
}

// FakeNotifier is one subscription handed out by FakeDirectory.NewNotifier.
type FakeNotifier struct {
	dir    *FakeDirectory
	events chan Event
	once   sync.Once
}

func (n *FakeNotifier) Events() <-chan Event { return n.events }

func (n *FakeNotifier) Close() error {
	n.once.Do(func() {
		n.dir.mu.Lock()
		delete(n.dir.subs, n)
		n.dir.mu.Unlock()
		close(n.events)
	})
	return nil
}

var errNoDefault = fakeErr("directory: no default device set")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
