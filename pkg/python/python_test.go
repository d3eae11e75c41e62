package python

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/polyforge/debugbridge/pkg/errors"
)

func TestFindModule(t *testing.T) {
	site := t.TempDir()
	if err := os.MkdirAll(filepath.Join(site, "debugpy"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(site, "six.py"), []byte("# module\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	env := Environment{SearchPath: []string{"", site}}

	tests := []struct {
		name        string
		module      string
		wantFound   bool
		wantPackage bool
	}{
		{"package directory", "debugpy", true, true},
		{"single file module", "six", true, false},
		{"missing module", "requests", false, false},
		{"empty name", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, found := env.FindModule(tt.module)
			if found != tt.wantFound {
				t.Fatalf("FindModule(%q) found = %v, want %v", tt.module, found, tt.wantFound)
			}
			if !found {
				return
			}
			if spec.IsPackage != tt.wantPackage {
				t.Errorf("IsPackage = %v, want %v", spec.IsPackage, tt.wantPackage)
			}
			if spec.Dir != site {
				t.Errorf("Dir = %q, want %q", spec.Dir, site)
			}
			if spec.Name != tt.module {
				t.Errorf("Name = %q, want %q", spec.Name, tt.module)
			}
		})
	}
}

func TestFindModulePrefersEarlierSearchPath(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	for _, dir := range []string{first, second} {
		if err := os.MkdirAll(filepath.Join(dir, "debugpy"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	env := Environment{SearchPath: []string{first, second}}
	spec, found := env.FindModule("debugpy")
	if !found {
		t.Fatal("FindModule(debugpy) not found, want found")
	}
	if spec.Dir != first {
		t.Errorf("Dir = %q, want first entry %q", spec.Dir, first)
	}
}

func TestDistVersion(t *testing.T) {
	site := t.TempDir()
	for _, dir := range []string{"debugpy-1.8.0.dist-info", "My_Package-2.0.dist-info", "notadist"} {
		if err := os.MkdirAll(filepath.Join(site, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	env := Environment{SearchPath: []string{site, filepath.Join(site, "missing")}}

	tests := []struct {
		name string
		dist string
		want string
	}{
		{"exact name", "debugpy", "1.8.0"},
		{"dash form matches underscore dist-info", "my-package", "2.0"},
		{"dot form matches too", "my.package", "2.0"},
		{"case insensitive", "DebugPy", "1.8.0"},
		{"not installed", "requests", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := env.DistVersion(tt.dist); got != tt.want {
				t.Errorf("DistVersion(%q) = %q, want %q", tt.dist, got, tt.want)
			}
		})
	}
}

func TestWithSearchPath(t *testing.T) {
	env := Environment{SearchPath: []string{"/opt/py/lib"}}

	extended := env.WithSearchPath("/opt/extra")
	if len(extended.SearchPath) != 2 || extended.SearchPath[1] != "/opt/extra" {
		t.Errorf("SearchPath = %v, want /opt/extra appended", extended.SearchPath)
	}
	if len(env.SearchPath) != 1 {
		t.Errorf("original SearchPath mutated: %v", env.SearchPath)
	}

	same := extended.WithSearchPath("/opt/extra")
	if len(same.SearchPath) != 2 {
		t.Errorf("duplicate append: %v", same.SearchPath)
	}

	unchanged := env.WithSearchPath("")
	if len(unchanged.SearchPath) != 1 {
		t.Errorf("empty dir should be ignored: %v", unchanged.SearchPath)
	}
}

func TestNormalizeDistName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debugpy", "debugpy"},
		{"My-Package", "my_package"},
		{"my.package", "my_package"},
		{"weird--..__name", "weird_name"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeDistName(tt.input); got != tt.want {
				t.Errorf("normalizeDistName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultExecutable(t *testing.T) {
	t.Run("env override wins", func(t *testing.T) {
		t.Setenv(EnvExecutable, "/custom/python")
		got, err := DefaultExecutable()
		if err != nil {
			t.Fatalf("DefaultExecutable() error = %v", err)
		}
		if got != "/custom/python" {
			t.Errorf("DefaultExecutable() = %q, want /custom/python", got)
		}
	})

	t.Run("nothing on PATH", func(t *testing.T) {
		t.Setenv(EnvExecutable, "")
		t.Setenv("PATH", t.TempDir())
		_, err := DefaultExecutable()
		if err == nil {
			t.Fatal("DefaultExecutable() error = nil, want error")
		}
		if !errors.Is(err, errors.ErrCodeInterpreterNotFound) {
			t.Errorf("error code = %v, want INTERPRETER_NOT_FOUND", errors.GetCode(err))
		}
	})
}
