package deps

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/python"
)

// fakeRunner records every invocation and answers from a table keyed by a
// space-joined argv prefix.
type fakeRunner struct {
	results map[string]python.Result
	errs    map[string]error
	calls   []python.Command
}

func (r *fakeRunner) Run(_ context.Context, cmd python.Command) (python.Result, error) {
	r.calls = append(r.calls, cmd)
	key := cmd.Path + " " + strings.Join(cmd.Args, " ")
	for prefix, err := range r.errs {
		if strings.HasPrefix(key, prefix) {
			return python.Result{ExitCode: -1}, err
		}
	}
	for prefix, res := range r.results {
		if strings.HasPrefix(key, prefix) {
			return res, nil
		}
	}
	return python.Result{}, nil
}

func (r *fakeRunner) argv(i int) string {
	return r.calls[i].Path + " " + strings.Join(r.calls[i].Args, " ")
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.Environment.Executable == "" {
		cfg.Environment.Executable = "/opt/py/bin/python"
	}
	if cfg.Runner == nil {
		cfg.Runner = &fakeRunner{}
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestDependencyDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Dependency
		want Dependency
	}{
		{
			"module only",
			Dependency{Module: "debugpy"},
			Dependency{Module: "debugpy", Package: "debugpy", Alias: "debugpy", DisplayName: "debugpy"},
		},
		{
			"explicit fields kept",
			Dependency{Module: "yaml", Package: "PyYAML", Alias: "yml", DisplayName: "PyYAML parser", Version: "==6.0"},
			Dependency{Module: "yaml", Package: "PyYAML", Alias: "yml", DisplayName: "PyYAML parser", Version: "==6.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, Config{Dependencies: []Dependency{tt.in}})
			got := m.Dependencies()[0]
			if got != tt.want {
				t.Errorf("resolved dependency = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewManagerRejectsInvalidDependencies(t *testing.T) {
	tests := []struct {
		name string
		dep  Dependency
		code errors.Code
	}{
		{"empty module", Dependency{}, errors.ErrCodeInvalidPackage},
		{"flag-like module", Dependency{Module: "--upgrade"}, errors.ErrCodeInvalidPackage},
		{"bad version clause", Dependency{Module: "debugpy", Version: "latest"}, errors.ErrCodeInvalidVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(Config{Runner: &fakeRunner{}, Dependencies: []Dependency{tt.dep}})
			if err == nil {
				t.Fatal("NewManager() error = nil, want validation error")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error code = %v, want %v", errors.GetCode(err), tt.code)
			}
		})
	}
}

func TestInstalledWithoutImporting(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "debugpy"), 0o755); err != nil {
		t.Fatal(err)
	}

	loaderRuns := 0
	m := newTestManager(t, Config{
		Environment: python.Environment{Executable: "/opt/py/bin/python", SearchPath: []string{dir}},
		Loader: func(_ context.Context, dep Dependency, spec python.ModuleSpec) (*Module, error) {
			loaderRuns++
			return &Module{Dependency: dep, Spec: spec}, nil
		},
	})

	dep := m.Dependencies()[0]
	if !m.Installed(dep) {
		t.Error("Installed() = false, want true for module present on search path")
	}
	if loaderRuns != 0 {
		t.Errorf("Installed() ran the loader %d times, want 0", loaderRuns)
	}
	if !m.CheckAll() {
		t.Error("CheckAll() = false, want true")
	}
}

func TestInstalledMissing(t *testing.T) {
	m := newTestManager(t, Config{
		Environment: python.Environment{Executable: "/opt/py/bin/python", SearchPath: []string{t.TempDir()}},
	})
	dep := m.Dependencies()[0]
	if m.Installed(dep) {
		t.Error("Installed() = true, want false for missing module")
	}
	if m.CheckAll() {
		t.Error("CheckAll() = true, want false")
	}
}

func TestImportIdempotent(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "debugpy"), 0o755); err != nil {
		t.Fatal(err)
	}

	loaderRuns := 0
	m := newTestManager(t, Config{
		Environment: python.Environment{Executable: "/opt/py/bin/python", SearchPath: []string{dir}},
		Loader: func(_ context.Context, dep Dependency, spec python.ModuleSpec) (*Module, error) {
			loaderRuns++
			return &Module{Dependency: dep, Spec: spec}, nil
		},
	})
	dep := m.Dependencies()[0]

	first, err := m.Import(context.Background(), dep)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	second, err := m.Import(context.Background(), dep)
	if err != nil {
		t.Fatalf("Import() second call error = %v", err)
	}

	if first != second {
		t.Error("Import() returned different handles for the same alias")
	}
	if loaderRuns != 1 {
		t.Errorf("loader ran %d times, want exactly 1", loaderRuns)
	}
	if mod, ok := m.Loaded(dep.Alias); !ok || mod != first {
		t.Error("Loaded() does not report the registered handle")
	}
}

func TestImportNoSpec(t *testing.T) {
	m := newTestManager(t, Config{
		Environment: python.Environment{Executable: "/opt/py/bin/python", SearchPath: []string{t.TempDir()}},
	})
	dep := m.Dependencies()[0]

	mod, err := m.Import(context.Background(), dep)
	if mod != nil {
		t.Errorf("Import() = %+v, want nil handle", mod)
	}
	if !stderrors.Is(err, ErrNoSpec) {
		t.Errorf("Import() error = %v, want ErrNoSpec", err)
	}
	if !errors.Is(err, errors.ErrCodeDependencyNotFound) {
		t.Errorf("error code = %v, want DEPENDENCY_NOT_FOUND", errors.GetCode(err))
	}
}

func TestInstallArgvAndEnvironment(t *testing.T) {
	runner := &fakeRunner{}
	m := newTestManager(t, Config{
		Runner:       runner,
		Dependencies: []Dependency{{Module: "debugpy", Version: "==1.2.3"}},
	})
	dep := m.Dependencies()[0]

	if err := m.Install(context.Background(), dep); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	// Call 0 is the pip --version probe, call 1 the install itself.
	if len(runner.calls) != 2 {
		t.Fatalf("got %d subprocess calls, want 2 (pip probe + install)", len(runner.calls))
	}
	wantProbe := "/opt/py/bin/python -m pip --version"
	if got := runner.argv(0); got != wantProbe {
		t.Errorf("pip probe argv = %q, want %q", got, wantProbe)
	}
	wantInstall := "/opt/py/bin/python -m pip install --upgrade debugpy==1.2.3"
	if got := runner.argv(1); got != wantInstall {
		t.Errorf("install argv = %q, want %q", got, wantInstall)
	}

	install := runner.calls[1]
	if len(install.Env) != 1 || install.Env[0] != "PYTHONNOUSERSITE=1" {
		t.Errorf("install env = %v, want [PYTHONNOUSERSITE=1]", install.Env)
	}
	if len(install.Drop) != 1 || install.Drop[0] != "PIP_REQ_TRACKER" {
		t.Errorf("install drop = %v, want [PIP_REQ_TRACKER]", install.Drop)
	}
}

func TestInstallBootstrapsPip(t *testing.T) {
	runner := &fakeRunner{results: map[string]python.Result{
		"/opt/py/bin/python -m pip --version": {ExitCode: 1, Stderr: "No module named pip"},
	}}
	m := newTestManager(t, Config{Runner: runner})
	dep := m.Dependencies()[0]

	if err := m.Install(context.Background(), dep); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	var argvs []string
	for i := range runner.calls {
		argvs = append(argvs, runner.argv(i))
	}
	want := []string{
		"/opt/py/bin/python -m pip --version",
		"/opt/py/bin/python -m ensurepip",
		"/opt/py/bin/python -m pip install --upgrade debugpy",
	}
	if strings.Join(argvs, "\n") != strings.Join(want, "\n") {
		t.Errorf("subprocess sequence:\n%s\nwant:\n%s", strings.Join(argvs, "\n"), strings.Join(want, "\n"))
	}
}

func TestInstallFailureSurfaces(t *testing.T) {
	runner := &fakeRunner{results: map[string]python.Result{
		"/opt/py/bin/python -m pip install": {ExitCode: 2, Stderr: "no matching distribution"},
	}}
	m := newTestManager(t, Config{Runner: runner})
	dep := m.Dependencies()[0]

	err := m.Install(context.Background(), dep)
	if err == nil {
		t.Fatal("Install() error = nil, want INSTALL_FAILED")
	}
	if !errors.Is(err, errors.ErrCodeInstallFailed) {
		t.Errorf("error code = %v, want INSTALL_FAILED", errors.GetCode(err))
	}
	if !strings.Contains(err.Error(), "no matching distribution") {
		t.Errorf("error %q does not carry subprocess stderr", err)
	}

	// A failed subprocess is not retried.
	if len(runner.calls) != 2 {
		t.Errorf("got %d subprocess calls, want 2 (no retries)", len(runner.calls))
	}
}

func TestUninstall(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "debugpy"), 0o755); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	m := newTestManager(t, Config{
		Runner:      runner,
		Environment: python.Environment{Executable: "/opt/py/bin/python", SearchPath: []string{dir}},
	})
	dep := m.Dependencies()[0]

	if _, err := m.Import(context.Background(), dep); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if err := m.Uninstall(context.Background(), dep); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	want := "/opt/py/bin/python -m pip uninstall --yes debugpy"
	if got := runner.argv(0); got != want {
		t.Errorf("uninstall argv = %q, want %q", got, want)
	}
	if _, ok := m.Loaded(dep.Alias); ok {
		t.Error("uninstalled dependency still present in the module registry")
	}
}

func TestUninstallFailureSurfaces(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"/opt/py/bin/python -m pip uninstall": fmt.Errorf("exec failed"),
	}}
	m := newTestManager(t, Config{Runner: runner})
	dep := m.Dependencies()[0]

	err := m.Uninstall(context.Background(), dep)
	if !errors.Is(err, errors.ErrCodeUninstallFailed) {
		t.Errorf("error code = %v, want UNINSTALL_FAILED", errors.GetCode(err))
	}
}

func TestVersionFromDistInfo(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"debugpy", "debugpy-1.8.0.dist-info"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	m := newTestManager(t, Config{
		Environment: python.Environment{Executable: "/opt/py/bin/python", SearchPath: []string{dir}},
	})
	dep := m.Dependencies()[0]

	if got := m.Version(dep); got != "1.8.0" {
		t.Errorf("Version() = %q, want %q", got, "1.8.0")
	}

	states := m.States()
	if len(states) != 1 {
		t.Fatalf("States() returned %d entries, want 1", len(states))
	}
	if !states[0].Installed || states[0].Version != "1.8.0" {
		t.Errorf("States()[0] = %+v, want installed with version 1.8.0", states[0])
	}
}

func TestFind(t *testing.T) {
	m := newTestManager(t, Config{Dependencies: []Dependency{
		{Module: "debugpy", DisplayName: "debugpy (remote debugging library)"},
	}})

	for _, name := range []string{"debugpy", "debugpy (remote debugging library)"} {
		if _, ok := m.Find(name); !ok {
			t.Errorf("Find(%q) = false, want true", name)
		}
	}
	if _, ok := m.Find("nosuch"); ok {
		t.Error("Find(nosuch) = true, want false")
	}
}
