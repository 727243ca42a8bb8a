package config

import (
	"errors"
	"sync"
)

// Manager holds the live configuration and supports hot reload.
// Reads during request handling go through Current; Reload replaces
// the whole snapshot at once so a request never observes a half-applied
// config.
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg Config
}

// NewManager loads the config file at path and wraps it for reloading.
func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, cfg: cfg}, nil
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Reload re-reads the config file. On failure the previous config stays
// active.
func (m *Manager) Reload() error {
	cfg, err := Load(m.path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// ErrNoSuchLocation reports an out-of-range location index.
var ErrNoSuchLocation = errors.New("no such location")

// LocationAt resolves a location by its index in the config array.
func (m *Manager) LocationAt(index int) (Location, error) {
	cfg := m.Current()
	if index < 0 || index >= len(cfg.Locations) {
		return Location{}, ErrNoSuchLocation
	}
	return cfg.Locations[index], nil
}

// LocationByName resolves a location by its configured name.
func (m *Manager) LocationByName(name string) (Location, bool) {
	cfg := m.Current()
	for _, loc := range cfg.Locations {
		if loc.Name == name {
			return loc, true
		}
	}
	return Location{}, false
}
