package device

import "strings"

// hdmiNameMarkers are matched case-insensitively against a device's
// friendly name.
var hdmiNameMarkers = []string{
	"hdmi",
	"nvidia high definition audio",
	"intel(r) display audio",
	"amd high definition audio",
	"display audio",
}

// hdmiIDMarkers are matched case-insensitively against a device's id.
var hdmiIDMarkers = []string{
	"hdmi",
	"display",
}

// IsHDMIDevice reports whether a device is heuristically an HDMI audio
// sink, based on its friendly name or endpoint id. It is idempotent and
// case-insensitive: calling it twice on the same inputs, or on inputs that
// only differ in case, yields the same result.
func IsHDMIDevice(id, friendlyName string) bool {
	name := strings.ToLower(friendlyName)
	for _, marker := range hdmiNameMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	lowerID := strings.ToLower(id)
	for _, marker := range hdmiIDMarkers {
		if strings.Contains(lowerID, marker) {
			return true
		}
	}
	return false
}
