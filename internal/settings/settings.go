// Package settings loads the on-disk TOML preferences file that is the
// only persisted, host-facing configuration surface: which devices a user
// has disabled, and under what friendly name. It is read-only from the
// engine's point of view, adapted from the teacher's JSON SettingsStore in
// internal/ui/settings.go into a document-shaped TOML store matching:
//
//	[devices."<device-id>"]
//	name = "<friendly name>"
//	enabled = true
package settings

import (
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// DeviceEntry is one [devices."<id>"] table.
type DeviceEntry struct {
	Name    string `toml:"name"`
	Enabled bool   `toml:"enabled"`
}

// Document is the root TOML shape.
type Document struct {
	Devices map[string]DeviceEntry `toml:"devices"`
}

// Store holds the loaded document and reloads it from disk on demand; the
// host process is expected to call Reload when it notices the file
// changed (there is no filesystem watcher here, mirroring the teacher's
// load-on-demand SettingsStore).
type Store struct {
	mu   sync.RWMutex
	path string
	doc  Document
}

// Load reads path, defaulting to an empty document (every device enabled)
// if the file does not exist.
func Load(path string) (*Store, error) {
	s := &Store{path: path, doc: Document{Devices: map[string]DeviceEntry{}}}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the settings file from disk.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.doc = Document{Devices: map[string]DeviceEntry{}}
		return nil
	}
	if err != nil {
		return fmt.Errorf("settings: read %s: %w", s.path, err)
	}
	var doc Document
	if err := toml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("settings: parse %s: %w", s.path, err)
	}
	if doc.Devices == nil {
		doc.Devices = map[string]DeviceEntry{}
	}
	s.doc = doc
	return nil
}

// InitialPausedIDs returns the set of device ids whose entry has
// enabled = false, the shape Configuration.InitialPausedIDs expects. An
// entry that omits the enabled key also counts as disabled; devices with
// no entry at all default to enabled.
func (s *Store) InitialPausedIDs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paused := make(map[string]bool)
	for id, entry := range s.doc.Devices {
		if !entry.Enabled {
			paused[id] = true
		}
	}
	return paused
}

// FriendlyName returns the user-assigned name for id, if the settings
// file carries one.
func (s *Store) FriendlyName(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.doc.Devices[id]
	if !ok || entry.Name == "" {
		return "", false
	}
	return entry.Name, true
}
