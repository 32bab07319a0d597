// Package settings owns the plugin's global settings: hard-coded defaults,
// tolerant loading of the persisted blob, save-through to the host store,
// and change notification.
package settings

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"

	"github.com/averonn/folderbase/internal/host"
)

// Settings is the global plugin configuration. Per-database knobs live in
// each document's local settings block instead.
type Settings struct {
	// PageSize is the default rows-per-page for documents without a local
	// settings block.
	PageSize int `json:"page_size" jsonschema:"minimum=1,description=Default rows per page"`
	// RowLimit caps how many rows a database derives; 0 means unlimited.
	RowLimit int `json:"row_limit" jsonschema:"minimum=0,description=Hard cap on derived rows (0 = unlimited)"`
	// ShowFileColumn toggles the implicit file column.
	ShowFileColumn bool `json:"show_file_column" jsonschema:"description=Show the implicit file column"`
	// ShowStatusBar toggles the per-view status bar.
	ShowStatusBar bool `json:"show_status_bar" jsonschema:"description=Show the database status bar"`
	// LogLevel sets plugin log verbosity.
	LogLevel string `json:"log_level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns the hard-coded defaults every load merges over.
func Default() Settings {
	return Settings{
		PageSize:       10,
		RowLimit:       5000,
		ShowFileColumn: true,
		ShowStatusBar:  true,
		LogLevel:       "info",
	}
}

// Service wraps the host's persisted settings store. Load never fails the
// plugin: a missing, corrupt, or partial blob degrades to defaults
// (field-by-field for partial blobs).
type Service struct {
	mu          sync.RWMutex
	store       host.SettingsStore
	current     Settings
	subscribers []func(Settings)
	log         zerolog.Logger
}

// NewService creates a settings service over a host store.
func NewService(store host.SettingsStore, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		current: Default(),
		log:     log.With().Str("component", "settings").Logger(),
	}
}

// Load reads the persisted blob once and merges it over defaults. Absent
// fields keep their default values; any store or parse failure keeps all of
// them.
func (s *Service) Load() {
	merged := Default()

	data, err := s.store.LoadData()
	switch {
	case err != nil:
		s.log.Warn().Err(err).Msg("settings load failed, using defaults")
	case len(data) == 0:
		// First run: nothing persisted yet.
	default:
		std, err := hujson.Standardize(data)
		if err != nil {
			s.log.Warn().Err(err).Msg("settings blob malformed, using defaults")
			break
		}
		// Unmarshal onto the defaults copy: present fields override,
		// absent fields keep defaults.
		if err := json.Unmarshal(std, &merged); err != nil {
			s.log.Warn().Err(err).Msg("settings blob unreadable, using defaults")
			merged = Default()
		}
	}

	s.mu.Lock()
	s.current = merged
	s.mu.Unlock()
}

// Current returns a copy of the current settings.
func (s *Service) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies a mutation, persists the result, and notifies subscribers.
func (s *Service) Update(mutate func(*Settings)) error {
	s.mu.Lock()
	next := s.current
	mutate(&next)
	s.current = next
	subs := make([]func(Settings), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	if err := s.save(next); err != nil {
		return err
	}
	for _, fn := range subs {
		if fn != nil {
			fn(next)
		}
	}
	return nil
}

// Subscribe registers a change listener. The returned func cancels it.
func (s *Service) Subscribe(fn func(Settings)) (cancel func()) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	idx := len(s.subscribers) - 1
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if idx < len(s.subscribers) {
			s.subscribers[idx] = nil
		}
		s.mu.Unlock()
	}
}

func (s *Service) save(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := s.store.SaveData(data); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}
