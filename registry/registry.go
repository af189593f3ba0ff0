// Package registry keeps the dataset name -> URL catalog in a JSON file.
//
// The whole file is read on every call and rewritten on every mutation.
// There is no locking: concurrent writers race and the last one wins.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"flowerlab/fsutil"
)

var (
	ErrConfigMissing = errors.New("the configuration file does not exist")
	ErrNotFound      = errors.New("dataset not found")
	ErrConflict      = errors.New("dataset already exists")
)

// Entry is one registered dataset.
type Entry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// File is the decoded content of the backing JSON file.
type File map[string]Entry

// Store reads and writes the registry file at Path.
type Store struct {
	path   string
	logger *zap.Logger
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load parses the backing file.
func (s *Store) Load() (File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigMissing
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	cfg := make(File)
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	// a file holding null decodes to a nil map
	if cfg == nil {
		cfg = make(File)
	}
	return cfg, nil
}

// Save overwrites the backing file with cfg, indented by four spaces.
func (s *Store) Save(cfg File) error {
	if cfg == nil {
		cfg = make(File)
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, data, 0o644)
}

// List returns every entry ordered by name. An empty registry yields an empty
// slice, not an error.
func (s *Store) List() ([]Entry, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, URL: cfg[name].URL})
	}
	return entries, nil
}

func (s *Store) Get(name string) (Entry, error) {
	cfg, err := s.Load()
	if err != nil {
		return Entry{}, err
	}
	entry, ok := cfg[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: '%s'", ErrNotFound, name)
	}
	return entry, nil
}

func (s *Store) Add(name, url string) (Entry, error) {
	cfg, err := s.Load()
	if err != nil {
		return Entry{}, err
	}
	if _, ok := cfg[name]; ok {
		return Entry{}, fmt.Errorf("%w: '%s'", ErrConflict, name)
	}

	entry := Entry{Name: name, URL: url}
	cfg[name] = entry
	if err := s.Save(cfg); err != nil {
		return Entry{}, err
	}
	s.logger.Info("dataset added", zap.String("name", name), zap.String("url", url))
	return entry, nil
}

// Update replaces the URL of an existing entry.
func (s *Store) Update(name, newURL string) (Entry, error) {
	cfg, err := s.Load()
	if err != nil {
		return Entry{}, err
	}
	entry, ok := cfg[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: '%s'", ErrNotFound, name)
	}

	entry.URL = newURL
	cfg[name] = entry
	if err := s.Save(cfg); err != nil {
		return Entry{}, err
	}
	s.logger.Info("dataset updated", zap.String("name", name), zap.String("url", newURL))
	return entry, nil
}
