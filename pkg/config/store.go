package config

import (
	"sync"

	"github.com/Veraticus/sessionguard/pkg/inactivity"
	"github.com/Veraticus/sessionguard/pkg/refresh"
)

// Listener is called after the configuration changes.
type Listener func(old, updated *Config)

// Store holds the current configuration. Snapshots must not be modified;
// Update replaces the whole value.
type Store struct {
	mu        sync.RWMutex
	cfg       *Config
	listeners map[int]Listener
	nextID    int
}

// Ensure Store feeds both background mechanisms
var (
	_ inactivity.SettingsSource = (*Store)(nil)
	_ refresh.SettingsSource    = (*Store)(nil)
)

// NewStore creates a store holding cfg.
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Store{cfg: cfg, listeners: make(map[int]Listener)}
}

// Snapshot returns the current configuration.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update swaps in cfg and notifies listeners outside the lock.
func (s *Store) Update(cfg *Config) {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(old, cfg)
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// InactivitySettings implements inactivity.SettingsSource.
func (s *Store) InactivitySettings() inactivity.Settings {
	return s.Snapshot().InactivitySettings()
}

// RefreshSettings implements refresh.SettingsSource.
func (s *Store) RefreshSettings() refresh.Settings {
	return s.Snapshot().RefreshSettings()
}
