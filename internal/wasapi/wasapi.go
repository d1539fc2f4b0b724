//go:build windows

// Package wasapi hand-rolls the narrow set of WASAPI/MMDevice COM vtable
// bindings the engine's production backends need that github.com/gen2brain/
// malgo does not expose: push-model render buffers with hardware padding,
// endpoint enumeration with friendly names, endpoint change notification,
// and master-volume scalar queries. It builds on github.com/go-ole/go-ole
// for IUnknown/GUID plumbing and calls vtable slots directly with
// syscall.SyscallN, the same raw-syscall style the teacher repo uses for
// RegisterHotKey in cmd/rec.
package wasapi

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// Well-known CLSID/IIDs this package needs. Values taken from the Windows
// SDK mmdeviceapi.h / audioclient.h / endpointvolume.h headers.
var (
	clsidMMDeviceEnumerator = ole.NewGUID("{BCDE0395-E52F-467C-8E3D-C4579291692E}")
	iidIMMDeviceEnumerator  = ole.NewGUID("{A95664D2-9614-4F35-A746-DE8DB63617E6}")
	iidIAudioClient         = ole.NewGUID("{1CB9AD4C-DBFA-4c32-B178-C2F568A703B2}")
	iidIAudioRenderClient   = ole.NewGUID("{F294ACFC-3146-4483-A7B9-5C001B0B3FB2}")
	iidIAudioEndpointVolume = ole.NewGUID("{5CDF2C82-841E-4546-9722-0CF74078229A}")

	// PKEY_Device_FriendlyName {A45C254E-DF1C-4EFD-8020-67D146A850E0}, pid 14
	pkeyDeviceFriendlyName = propertyKey{
		fmtID: ole.NewGUID("{A45C254E-DF1C-4EFD-8020-67D146A850E0}"),
		pid:   14,
	}
)

type propertyKey struct {
	fmtID *ole.GUID
	pid   uint32
}

// EDataFlow / ERole values from mmdeviceapi.h.
const (
	EDataFlowRender  = 0
	EDataFlowCapture = 1
	EDataFlowAll     = 2

	ERoleConsole        = 0
	ERoleMultimedia     = 1
	ERoleCommunications = 2
)

// DEVICE_STATE_* from mmdeviceapi.h.
const (
	DeviceStateActive     = 0x1
	DeviceStateDisabled   = 0x2
	DeviceStateNotPresent = 0x4
	DeviceStateUnplugged  = 0x8
	DeviceStateMask       = 0xF
)

// AUDCLNT_SHAREMODE_SHARED and the streamflags this package uses.
const (
	shareModeShared        = 0
	audclntStreamFlagsNone = 0
)

func hresultToErr(hr uintptr) error {
	if int32(hr) >= 0 {
		return nil
	}
	return fmt.Errorf("wasapi: HRESULT 0x%08X", uint32(hr))
}

// utf16PtrToString reads a NUL-terminated UTF-16 string from a raw
// pointer, as returned by IMMDevice.GetId and property-store string
// values.
func utf16PtrToString(p uintptr) string {
	if p == 0 {
		return ""
	}
	var chars []uint16
	for i := uintptr(0); ; i += 2 {
		c := *(*uint16)(unsafe.Pointer(p + i))
		if c == 0 {
			break
		}
		chars = append(chars, c)
	}
	return syscall.UTF16ToString(chars)
}

// vtableCall wraps syscall.SyscallN for a COM vtable slot taking the
// receiver plus any extra arguments and converts the returned HRESULT to
// an error, matching the stdcall-via-SyscallN convention go-ole itself
// uses internally.
func vtableCall(fn uintptr, args ...uintptr) (uintptr, error) {
	hr, _, _ := syscall.SyscallN(fn, args...)
	return hr, hresultToErr(hr)
}
