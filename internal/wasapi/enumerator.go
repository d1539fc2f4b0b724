//go:build windows

package wasapi

import (
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// deviceEnumeratorVtbl lays out IMMDeviceEnumerator's vtable slots after
// the three inherited from IUnknown.
type deviceEnumeratorVtbl struct {
	ole.IUnknownVtbl
	EnumAudioEndpoints                    uintptr
	GetDefaultAudioEndpoint                uintptr
	GetDevice                             uintptr
	RegisterEndpointNotificationCallback   uintptr
	UnregisterEndpointNotificationCallback uintptr
}

// DeviceEnumerator wraps IMMDeviceEnumerator.
type DeviceEnumerator struct {
	ole.IUnknown
}

func (v *DeviceEnumerator) vtbl() *deviceEnumeratorVtbl {
	return (*deviceEnumeratorVtbl)(unsafe.Pointer(v.RawVTable))
}

// NewDeviceEnumerator creates the enumerator via CoCreateInstance. Callers
// must call CoInitializeEx on the calling OS thread first (cmd/wemuxd
// initializes a multithreaded apartment).
func NewDeviceEnumerator() (*DeviceEnumerator, error) {
	unk, err := ole.CreateInstance(clsidMMDeviceEnumerator, iidIMMDeviceEnumerator)
	if err != nil {
		return nil, err
	}
	return (*DeviceEnumerator)(unsafe.Pointer(unk)), nil
}

// GetDefaultAudioEndpoint returns the current default render device for
// the given role.
func (v *DeviceEnumerator) GetDefaultAudioEndpoint(dataFlow, role uint32) (*Device, error) {
	var dev *Device
	_, err := vtableCall(v.vtbl().GetDefaultAudioEndpoint,
		uintptr(unsafe.Pointer(v)), uintptr(dataFlow), uintptr(role), uintptr(unsafe.Pointer(&dev)))
	return dev, err
}

// GetDevice resolves a device by its persisted string id.
func (v *DeviceEnumerator) GetDevice(id string) (*Device, error) {
	idPtr, err := syscallUTF16Ptr(id)
	if err != nil {
		return nil, err
	}
	var dev *Device
	_, err = vtableCall(v.vtbl().GetDevice,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(idPtr)), uintptr(unsafe.Pointer(&dev)))
	return dev, err
}

// EnumAudioEndpoints lists the endpoints of dataFlow whose state matches
// stateMask (the directory package asks for active+unplugged render
// endpoints, skipping disabled/not-present ones).
func (v *DeviceEnumerator) EnumAudioEndpoints(dataFlow uint32, stateMask uint32) (*DeviceCollection, error) {
	var coll *DeviceCollection
	_, err := vtableCall(v.vtbl().EnumAudioEndpoints,
		uintptr(unsafe.Pointer(v)), uintptr(dataFlow), uintptr(stateMask), uintptr(unsafe.Pointer(&coll)))
	return coll, err
}

// RegisterEndpointNotificationCallback registers a NotificationSink (see
// notify.go) to receive default/add/remove/state-change callbacks.
func (v *DeviceEnumerator) RegisterEndpointNotificationCallback(sink *NotificationSink) error {
	_, err := vtableCall(v.vtbl().RegisterEndpointNotificationCallback,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(sink)))
	return err
}

// UnregisterEndpointNotificationCallback reverses Register.
func (v *DeviceEnumerator) UnregisterEndpointNotificationCallback(sink *NotificationSink) error {
	_, err := vtableCall(v.vtbl().UnregisterEndpointNotificationCallback,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(sink)))
	return err
}

type deviceCollectionVtbl struct {
	ole.IUnknownVtbl
	GetCount uintptr
	Item     uintptr
}

// DeviceCollection wraps IMMDeviceCollection.
type DeviceCollection struct {
	ole.IUnknown
}

func (v *DeviceCollection) vtbl() *deviceCollectionVtbl {
	return (*deviceCollectionVtbl)(unsafe.Pointer(v.RawVTable))
}

// Count returns the number of devices in the collection.
func (v *DeviceCollection) Count() (int, error) {
	var n uint32
	_, err := vtableCall(v.vtbl().GetCount, uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&n)))
	return int(n), err
}

// Item returns the device at index i.
func (v *DeviceCollection) Item(i int) (*Device, error) {
	var dev *Device
	_, err := vtableCall(v.vtbl().Item, uintptr(unsafe.Pointer(v)), uintptr(i), uintptr(unsafe.Pointer(&dev)))
	return dev, err
}

type deviceVtbl struct {
	ole.IUnknownVtbl
	Activate          uintptr
	OpenPropertyStore uintptr
	GetId             uintptr
	GetState          uintptr
}

// Device wraps IMMDevice.
type Device struct {
	ole.IUnknown
}

func (v *Device) vtbl() *deviceVtbl {
	return (*deviceVtbl)(unsafe.Pointer(v.RawVTable))
}

// ID returns the device's persisted endpoint id string.
func (v *Device) ID() (string, error) {
	var p uintptr
	_, err := vtableCall(v.vtbl().GetId, uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&p)))
	if err != nil {
		return "", err
	}
	return utf16PtrToString(p), nil
}

// State returns one of the DeviceState* constants.
func (v *Device) State() (uint32, error) {
	var state uint32
	_, err := vtableCall(v.vtbl().GetState, uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&state)))
	return state, err
}

// FriendlyName opens the property store and reads PKEY_Device_FriendlyName.
func (v *Device) FriendlyName() (string, error) {
	store, err := v.openPropertyStore()
	if err != nil {
		return "", err
	}
	defer store.Release()
	return store.getStringValue(pkeyDeviceFriendlyName)
}

// Activate instantiates an interface (IAudioClient, IAudioEndpointVolume,
// ...) on the device, matching iid to the requested binding.
func (v *Device) Activate(iid *ole.GUID) (*ole.IUnknown, error) {
	const clsctxAll = 23 // CLSCTX_INPROC_SERVER|INPROC_HANDLER|LOCAL_SERVER|REMOTE_SERVER
	var out *ole.IUnknown
	_, err := vtableCall(v.vtbl().Activate,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(iid)), uintptr(clsctxAll), 0, uintptr(unsafe.Pointer(&out)))
	return out, err
}

func (v *Device) openPropertyStore() (*propertyStore, error) {
	const storAccessRead = 0
	var store *propertyStore
	_, err := vtableCall(v.vtbl().OpenPropertyStore,
		uintptr(unsafe.Pointer(v)), uintptr(storAccessRead), uintptr(unsafe.Pointer(&store)))
	return store, err
}

type propertyStoreVtbl struct {
	ole.IUnknownVtbl
	GetCount uintptr
	GetAt    uintptr
	GetValue uintptr
	SetValue uintptr
	Commit   uintptr
}

type propertyStore struct {
	ole.IUnknown
}

func (v *propertyStore) vtbl() *propertyStoreVtbl {
	return (*propertyStoreVtbl)(unsafe.Pointer(v.RawVTable))
}

// propVariant mirrors the leading bytes of the PROPVARIANT ABI: a 16-bit
// VARTYPE tag, reserved padding, then a union large enough to hold a
// pointer or scalar value. This package only ever reads VT_LPWSTR values.
type propVariant struct {
	vt       uint16
	_        [6]byte
	valuePtr uintptr
	_        [8]byte
}

const vtLPWSTR = 31

func (v *propertyStore) getStringValue(key propertyKey) (string, error) {
	var pv propVariant
	_, err := vtableCall(v.vtbl().GetValue,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&key)), uintptr(unsafe.Pointer(&pv)))
	if err != nil {
		return "", err
	}
	if pv.vt != vtLPWSTR {
		return "", nil
	}
	return utf16PtrToString(pv.valuePtr), nil
}

func syscallUTF16Ptr(s string) (*uint16, error) {
	return syscall.UTF16PtrFromString(s)
}
