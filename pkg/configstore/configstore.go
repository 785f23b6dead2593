// Package configstore implements the local (per-project) and global
// (per-user) YAML-backed key-value stores, each holding a shallow
// map of named sections.
package configstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/garden-io/garden-core/pkg/gardenerr"
	"gopkg.in/yaml.v3"
)

// Store is a single YAML file holding `section -> (key -> value)` data.
// All operations are safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
	data map[string]map[string]any
}

// NewLocalStore opens the per-project store at
// "<projectRoot>/.garden/local-config.yml", migrating the legacy
// "local-config.yaml" file (and its legacy field shapes) on first read if
// the new file does not already exist.
func NewLocalStore(projectRoot string) (*Store, error) {
	path := filepath.Join(projectRoot, ".garden", "local-config.yml")
	legacy := filepath.Join(projectRoot, ".garden", "local-config.yaml")
	return open(path, legacy)
}

// NewGlobalStore opens the per-user store under the OS user-config
// directory, migrating the legacy "config.yaml" file if present.
func NewGlobalStore() (*Store, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, gardenerr.Wrap(gardenerr.KindFilesystem, err, "resolving user config directory")
	}
	dir := filepath.Join(base, "garden")
	path := filepath.Join(dir, "global-config.yml")
	legacy := filepath.Join(dir, "config.yaml")
	return open(path, legacy)
}

func open(path, legacyPath string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if legacyData, migrated := tryMigrate(legacyPath); migrated {
			s := &Store{path: path, data: legacyData}
			if err := s.save(); err != nil {
				return nil, err
			}
			return s, nil
		}
	}

	data, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, data: data}, nil
}

func load(path string) (map[string]map[string]any, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]map[string]any{}, nil
	}
	if err != nil {
		return nil, gardenerr.Wrap(gardenerr.KindFilesystem, err, "reading config store").At(gardenerr.Location{File: path})
	}
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, gardenerr.Wrap(gardenerr.KindConfiguration, err, "parsing config store").At(gardenerr.Location{File: path})
	}
	if raw == nil {
		raw = map[string]map[string]any{}
	}
	return raw, nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return gardenerr.Wrap(gardenerr.KindFilesystem, err, "creating config store directory").At(gardenerr.Location{File: filepath.Dir(s.path)})
	}
	b, err := yaml.Marshal(s.data)
	if err != nil {
		return gardenerr.Wrap(gardenerr.KindConfiguration, err, "encoding config store")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return gardenerr.Wrap(gardenerr.KindFilesystem, err, "writing config store").At(gardenerr.Location{File: tmp})
	}
	return os.Rename(tmp, s.path)
}

// Get returns every section.
func (s *Store) Get() map[string]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSections(s.data)
}

// GetSection returns one section's key-value map, ok=false if absent.
func (s *Store) GetSection(section string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.data[section]
	if !ok {
		return nil, false
	}
	return cloneValues(sec), true
}

// GetKey returns one section's key, ok=false if the section or key is
// absent.
func (s *Store) GetKey(section, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.data[section]
	if !ok {
		return nil, false
	}
	v, ok := sec[key]
	return v, ok
}

// SetSection replaces an entire section and persists the store.
func (s *Store) SetSection(section string, value map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[section] = cloneValues(value)
	return s.save()
}

// SetKey sets one key within a section (creating the section if absent)
// and persists the store.
func (s *Store) SetKey(section, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[section] == nil {
		s.data[section] = map[string]any{}
	}
	s.data[section][key] = value
	return s.save()
}

// Clear empties the store and persists it.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string]map[string]any{}
	return s.save()
}

func cloneSections(m map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValues(v)
	}
	return out
}

func cloneValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
