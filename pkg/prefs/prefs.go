// Package prefs holds the plugin's three persisted preference values: the
// dependency install path, the attach timeout, and the debug listener port.
//
// The standalone harness persists them as a TOML file in the user's config
// directory; a host application that owns its own settings persistence can
// implement Store instead.
package prefs

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/polyforge/debugbridge/pkg/errors"
)

// Defaults for the preference values.
const (
	// DefaultTimeout is the attach wait timeout in seconds (20 minutes).
	DefaultTimeout = 1200

	// DefaultPort is the debug listener port.
	DefaultPort = 5678
)

// Preferences are the persisted settings.
type Preferences struct {
	// Path is the directory containing the installed debugging library.
	// Empty means not configured; the resolver fills it in on first run.
	Path string `toml:"path" json:"path"`

	// Timeout is the attach wait timeout in seconds.
	Timeout int `toml:"timeout" json:"timeout"`

	// Port is the debug listener port, 0-65535.
	Port int `toml:"port" json:"port"`
}

// Default returns the preferences used before anything is persisted.
func Default() Preferences {
	return Preferences{Timeout: DefaultTimeout, Port: DefaultPort}
}

// Validate checks every field. Zero Timeout and Port are normalized by Load,
// so validation only has to reject genuinely bad values.
func (p Preferences) Validate() error {
	if err := errors.ValidateInstallPath(p.Path); err != nil {
		return err
	}
	if p.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "timeout must not be negative, got %d", p.Timeout)
	}
	return errors.ValidatePort(p.Port)
}

// Store abstracts preference persistence so the host's settings facility can
// replace the harness's file store.
type Store interface {
	Load() (Preferences, error)
	Save(Preferences) error

	// Location describes where the preferences live, for display.
	Location() string
}

// FileStore persists preferences as a TOML file, by default under
// $XDG_CONFIG_HOME/debugbridge/config.toml.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file store at path, or at the default config
// location when path is empty.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.toml")
	}
	return &FileStore{path: path}, nil
}

// Load reads the preferences file. A missing file yields defaults; zero
// Timeout or Port values in an existing file are filled from the defaults.
func (s *FileStore) Load() (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading preferences from %s", s.path)
	}

	prefs := Default()
	if err := toml.Unmarshal(data, &prefs); err != nil {
		return Default(), errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing preferences in %s", s.path)
	}
	if prefs.Timeout == 0 {
		prefs.Timeout = DefaultTimeout
	}
	if prefs.Port == 0 {
		prefs.Port = DefaultPort
	}
	if err := prefs.Validate(); err != nil {
		return Default(), err
	}
	return prefs, nil
}

// Save validates and writes the preferences. The write goes through a temp
// file and a rename so a crash never leaves a half-written config behind.
func (s *FileStore) Save(prefs Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "creating config directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.toml")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "creating temp preferences file")
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(prefs); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "encoding preferences")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "setting preferences file mode")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "writing preferences")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "replacing preferences file")
	}
	return nil
}

// Location returns the preferences file path.
func (s *FileStore) Location() string {
	return s.path
}

// configDir returns the debugbridge config directory using the XDG
// convention, falling back to ~/.config.
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "debugbridge"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "resolving home directory")
	}
	return filepath.Join(home, ".config", "debugbridge"), nil
}

// MemoryStore is an in-process Store for tests and for hosts that persist
// settings themselves.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs Preferences
	set   bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store primed with the given preferences.
func NewMemoryStore(prefs Preferences) *MemoryStore {
	return &MemoryStore{prefs: prefs, set: true}
}

func (s *MemoryStore) Load() (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return Default(), nil
	}
	return s.prefs, nil
}

func (s *MemoryStore) Save(prefs Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs
	s.set = true
	return nil
}

func (s *MemoryStore) Location() string { return "memory" }
