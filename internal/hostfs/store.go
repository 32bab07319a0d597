// Package hostfs provides a file-backed stand-in for the host's persisted
// settings store, used by the CLI harness.
package hostfs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/averonn/folderbase/internal/host"
)

// Store persists the settings blob as a JSON file. Reads tolerate comments
// and trailing commas so hand-edited files keep working.
type Store struct {
	path string
}

var _ host.SettingsStore = (*Store)(nil)

// NewStore creates a store at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// LoadData implements host.SettingsStore. An absent file is not an error:
// it returns an empty blob and the caller falls back to defaults.
func (s *Store) LoadData() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hostfs: read %s: %w", s.path, err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("hostfs: parse %s: %w", s.path, err)
	}
	return std, nil
}

// SaveData implements host.SettingsStore with an atomic replace, so a crash
// mid-write never corrupts the blob.
func (s *Store) SaveData(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("hostfs: create settings directory: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("hostfs: write %s: %w", s.path, err)
	}
	return nil
}
