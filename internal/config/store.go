package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/reviewdeck/docrelay/pkg/logging"
)

// Listener receives the new settings after every successful Set.
type Listener func(Settings)

// Store persists the Settings record as a single JSON file.
//
// Get never propagates storage faults: a missing or unreadable file reads
// as "not configured" (nil settings) and the fault is logged. Set is atomic
// from the caller's perspective: the record is written to a temp file and
// renamed into place, so readers observe either the old or the new record,
// never a partial write.
type Store struct {
	path      string
	mu        sync.RWMutex
	listeners []Listener
}

// NewStore creates a settings store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get reads the persisted settings. Returns (nil, nil) when no settings
// have been saved yet or the underlying file cannot be read.
func (s *Store) Get(ctx context.Context) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logger := logging.GetLogger("config")

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read settings file")
		}
		return nil, nil
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		logger.Warn().Err(err).Str("path", s.path).Msg("Settings file is corrupt")
		return nil, nil
	}

	return &settings, nil
}

// Set overwrites the persisted settings and notifies subscribers.
func (s *Store) Set(ctx context.Context, settings Settings) error {
	s.mu.Lock()

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		s.mu.Unlock()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		s.mu.Unlock()
		return fmt.Errorf("failed to close temp settings file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		s.mu.Unlock()
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	savedLogger := logging.GetLogger("config")
	savedLogger.Info().
		Str("endpoint", settings.EndpointBase).
		Bool("enabled", settings.Enabled).
		Msg("Settings saved")

	for _, listener := range listeners {
		listener(settings)
	}

	return nil
}

// Clear removes the persisted settings record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove settings file: %w", err)
	}
	return nil
}

// Subscribe registers a listener for settings changes. Listeners are
// invoked synchronously after every successful Set.
func (s *Store) Subscribe(listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}
