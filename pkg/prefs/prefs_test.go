package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/polyforge/debugbridge/pkg/errors"
)

func TestDefault(t *testing.T) {
	p := Default()
	if p.Timeout != 1200 {
		t.Errorf("Default().Timeout = %d, want 1200", p.Timeout)
	}
	if p.Port != 5678 {
		t.Errorf("Default().Port = %d, want 5678", p.Port)
	}
	if p.Path != "" {
		t.Errorf("Default().Path = %q, want empty", p.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		prefs   Preferences
		wantErr errors.Code
	}{
		{"defaults valid", Default(), ""},
		{"port zero valid", Preferences{Port: 0, Timeout: 10}, ""},
		{"port too large", Preferences{Port: 65536, Timeout: 10}, errors.ErrCodeInvalidPort},
		{"negative port", Preferences{Port: -1, Timeout: 10}, errors.ErrCodeInvalidPort},
		{"negative timeout", Preferences{Port: 5678, Timeout: -1}, errors.ErrCodeInvalidConfig},
		{"path with null byte", Preferences{Path: "bad\x00path", Port: 5678}, errors.ErrCodeInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prefs.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error code = %v, want %v", errors.GetCode(err), tt.wantErr)
			}
		})
	}
}

func TestFileStoreMissingFileYieldsDefaults(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != Default() {
		t.Errorf("Load() = %+v, want defaults %+v", got, Default())
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	want := Preferences{Path: "/opt/py/lib/site-packages", Timeout: 600, Port: 9229}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("preferences file mode = %o, want 600", mode)
	}
}

func TestFileStoreRejectsInvalidSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := store.Save(Preferences{Port: 70000}); !errors.Is(err, errors.ErrCodeInvalidPort) {
		t.Errorf("Save() error code = %v, want INVALID_PORT", errors.GetCode(err))
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("rejected Save() must not create the preferences file")
	}
}

func TestFileStoreZeroValuesNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("path = \"/somewhere\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Timeout != DefaultTimeout || got.Port != DefaultPort {
		t.Errorf("Load() = %+v, want timeout/port filled from defaults", got)
	}
	if got.Path != "/somewhere" {
		t.Errorf("Load().Path = %q, want /somewhere", got.Path)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if _, err := store.Load(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Load() error code = %v, want INVALID_CONFIG", errors.GetCode(err))
	}
}

func TestFileStoreDefaultLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	store, err := NewFileStore("")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	want := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "debugbridge", "config.toml")
	if store.Location() != want {
		t.Errorf("Location() = %q, want %q", store.Location(), want)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(Default())

	want := Preferences{Path: "/p", Timeout: 1, Port: 1}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}
