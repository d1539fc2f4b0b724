//go:build windows

package wasapi

import (
	"unsafe"

	"github.com/go-ole/go-ole"
)

type endpointVolumeVtbl struct {
	ole.IUnknownVtbl
	RegisterControlChangeNotify   uintptr
	UnregisterControlChangeNotify uintptr
	GetChannelCount               uintptr
	SetMasterVolumeLevel          uintptr
	SetMasterVolumeLevelScalar    uintptr
	GetMasterVolumeLevel          uintptr
	GetMasterVolumeLevelScalar    uintptr
	SetChannelVolumeLevel         uintptr
	SetChannelVolumeLevelScalar   uintptr
	GetChannelVolumeLevel         uintptr
	GetChannelVolumeLevelScalar   uintptr
	SetMute                       uintptr
	GetMute                       uintptr
	GetVolumeStepInfo             uintptr
	VolumeStepUp                  uintptr
	VolumeStepDown                uintptr
	QueryHardwareSupport          uintptr
	GetVolumeRange                uintptr
}

// EndpointVolume wraps IAudioEndpointVolume, used read-only here to mirror
// the system volume/mute state into the mix.
type EndpointVolume struct {
	ole.IUnknown
}

func (v *EndpointVolume) vtbl() *endpointVolumeVtbl {
	return (*endpointVolumeVtbl)(unsafe.Pointer(v.RawVTable))
}

// GetMasterVolumeLevelScalar returns the endpoint's volume as 0.0-1.0.
func (v *EndpointVolume) GetMasterVolumeLevelScalar() (float32, error) {
	var level float32
	_, err := vtableCall(v.vtbl().GetMasterVolumeLevelScalar,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&level)))
	return level, err
}

// GetMute returns whether the endpoint is muted.
func (v *EndpointVolume) GetMute() (bool, error) {
	var muted int32
	_, err := vtableCall(v.vtbl().GetMute, uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&muted)))
	return muted != 0, err
}
