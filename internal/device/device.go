// Package device holds the endpoint identity type shared by the directory,
// renderer, and engine packages, plus the HDMI classification heuristic.
package device

// Info describes one render (output) endpoint. ID is stable for the
// lifetime of a session and uniquely identifies the endpoint.
type Info struct {
	ID           string
	FriendlyName string
	IsDefault    bool
	IsHDMI       bool
}
