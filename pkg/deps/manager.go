package deps

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/observability"
	"github.com/polyforge/debugbridge/pkg/python"
)

// ErrNoSpec is returned by Import when the module cannot be found on the
// interpreter's search path. An expected outcome, not a fault: the caller
// offers installation instead of crashing.
var ErrNoSpec = errors.New(errors.ErrCodeDependencyNotFound, "no module spec found on the search path")

// pipEnv holds the environment adjustments applied to every pip subprocess.
//
// PYTHONNOUSERSITE keeps pip's view of installed packages consistent with the
// embedded interpreter, which never sees user site-packages. PIP_REQ_TRACKER
// is dropped because a stale tracker directory left behind by ensurepip makes
// later pip runs fail.
var pipEnv = struct {
	extra []string
	drop  []string
}{
	extra: []string{"PYTHONNOUSERSITE=1"},
	drop:  []string{"PIP_REQ_TRACKER"},
}

// Module is the handle returned by Import: an explicit reference the caller
// stores instead of having the module injected into a shared namespace.
type Module struct {
	Dependency Dependency
	Spec       python.ModuleSpec
	LoadedAt   time.Time
}

// Loader turns a found module spec into a loaded Module handle. The default
// loader only records the spec; hosts that actually execute module code in
// the embedded interpreter plug in their own.
type Loader func(ctx context.Context, dep Dependency, spec python.ModuleSpec) (*Module, error)

func defaultLoader(_ context.Context, dep Dependency, spec python.ModuleSpec) (*Module, error) {
	return &Module{Dependency: dep, Spec: spec, LoadedAt: time.Now()}, nil
}

// Config carries everything a Manager needs. Environment and Runner are
// required; Dependencies defaults to Default() and Loader to a handle-only
// loader.
type Config struct {
	Environment  python.Environment
	Runner       python.Runner
	Dependencies []Dependency
	Loader       Loader
	Logger       *log.Logger
}

// Manager owns the dependency list and the loaded-module registry.
//
// The list is written once at construction. The registry and the environment
// are guarded by a mutex because the control API may observe state while a
// CLI action runs; every mutation still happens on a single caller-driven
// path.
type Manager struct {
	mu       sync.Mutex
	env      python.Environment
	runner   python.Runner
	deps     []Dependency
	loader   Loader
	logger   *log.Logger
	registry map[string]*Module
}

// State is a point-in-time view of one dependency for UI surfaces.
type State struct {
	Dependency Dependency `json:"dependency"`
	Installed  bool       `json:"installed"`
	Loaded     bool       `json:"loaded"`
	Version    string     `json:"version,omitempty"`
}

// NewManager validates the declared dependencies, resolves their defaults
// exactly once, and returns a Manager over the given environment.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Runner == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "deps: Config.Runner is required")
	}
	if cfg.Loader == nil {
		cfg.Loader = defaultLoader
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	declared := cfg.Dependencies
	if len(declared) == 0 {
		declared = Default()
	}

	resolved := make([]Dependency, 0, len(declared))
	for _, d := range declared {
		if err := d.validate(); err != nil {
			return nil, err
		}
		resolved = append(resolved, d.withDefaults())
	}

	return &Manager{
		env:      cfg.Environment,
		runner:   cfg.Runner,
		deps:     resolved,
		loader:   cfg.Loader,
		logger:   cfg.Logger,
		registry: make(map[string]*Module),
	}, nil
}

// Dependencies returns the declared descriptors in declaration order.
func (m *Manager) Dependencies() []Dependency {
	out := make([]Dependency, len(m.deps))
	copy(out, m.deps)
	return out
}

// Find returns the declared dependency matching name against the module,
// package, or display name.
func (m *Manager) Find(name string) (Dependency, bool) {
	for _, d := range m.deps {
		if d.Module == name || d.Package == name || d.DisplayName == name {
			return d, true
		}
	}
	return Dependency{}, false
}

// Environment returns the manager's current view of the interpreter.
func (m *Manager) Environment() python.Environment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.env
}

// ExtendSearchPath appends dir to the interpreter's module search path, so a
// user-configured install location becomes importable.
func (m *Manager) ExtendSearchPath(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.env = m.env.WithSearchPath(dir)
}

// Installed reports whether the dependency is available right now: already in
// the loaded-module registry, or findable on the search path. Never imports
// anything and never spawns a subprocess.
func (m *Manager) Installed(dep Dependency) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registry[dep.Alias]; ok {
		return true
	}
	_, ok := m.env.FindModule(dep.Module)
	return ok
}

// EnsurePip verifies the package manager is usable and bootstraps it through
// ensurepip when it is not.
func (m *Manager) EnsurePip(ctx context.Context) error {
	env := m.Environment()

	res, err := m.runner.Run(ctx, m.pipCommand(env, "--version"))
	if err == nil && res.ExitCode == 0 {
		return nil
	}
	m.logger.Debug("pip not usable, bootstrapping", "interpreter", env.Executable)

	cmd := env.Python("-m", "ensurepip")
	cmd.Env = pipEnv.extra
	cmd.Drop = pipEnv.drop
	res, err = m.runner.Run(ctx, cmd)
	if err != nil {
		return errors.Wrap(errors.ErrCodePipUnavailable, err, "bootstrapping pip")
	}
	if res.ExitCode != 0 {
		return errors.Wrap(errors.ErrCodePipUnavailable,
			&errors.ExitError{Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr},
			"bootstrapping pip")
	}
	return nil
}

// Install ensures pip is present, then installs or upgrades the dependency.
// A failed subprocess surfaces as INSTALL_FAILED; nothing is retried.
func (m *Manager) Install(ctx context.Context, dep Dependency) error {
	observability.Dependencies().OnInstallStart(ctx, dep.Package)
	start := time.Now()
	err := m.install(ctx, dep)
	observability.Dependencies().OnInstallComplete(ctx, dep.Package, time.Since(start), err)
	return err
}

func (m *Manager) install(ctx context.Context, dep Dependency) error {
	if err := m.EnsurePip(ctx); err != nil {
		return err
	}

	env := m.Environment()
	cmd := m.pipCommand(env, "install", "--upgrade", dep.Spec())
	m.logger.Debug("installing dependency", "spec", dep.Spec())

	res, err := m.runner.Run(ctx, cmd)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInstallFailed, err, "installing %s", dep.DisplayName)
	}
	if res.ExitCode != 0 {
		return errors.Wrap(errors.ErrCodeInstallFailed,
			&errors.ExitError{Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr},
			"installing %s", dep.DisplayName)
	}
	return nil
}

// Uninstall removes the dependency's package with pip's auto-confirmation.
func (m *Manager) Uninstall(ctx context.Context, dep Dependency) error {
	observability.Dependencies().OnUninstallStart(ctx, dep.Package)
	start := time.Now()
	err := m.uninstall(ctx, dep)
	observability.Dependencies().OnUninstallComplete(ctx, dep.Package, time.Since(start), err)
	return err
}

func (m *Manager) uninstall(ctx context.Context, dep Dependency) error {
	env := m.Environment()
	cmd := m.pipCommand(env, "uninstall", "--yes", dep.Package)
	m.logger.Debug("uninstalling dependency", "package", dep.Package)

	res, err := m.runner.Run(ctx, cmd)
	if err != nil {
		return errors.Wrap(errors.ErrCodeUninstallFailed, err, "uninstalling %s", dep.DisplayName)
	}
	if res.ExitCode != 0 {
		return errors.Wrap(errors.ErrCodeUninstallFailed,
			&errors.ExitError{Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr},
			"uninstalling %s", dep.DisplayName)
	}

	// A removed package must not linger in the registry as importable.
	m.mu.Lock()
	delete(m.registry, dep.Alias)
	m.mu.Unlock()
	return nil
}

// Import returns the loaded-module handle for the dependency.
//
// If the alias is already registered the existing handle is returned
// unchanged: repeated calls never re-run the loader. Otherwise the module
// spec is located (ErrNoSpec when absent) and the loader builds and registers
// a new handle.
func (m *Manager) Import(ctx context.Context, dep Dependency) (*Module, error) {
	m.mu.Lock()
	if mod, ok := m.registry[dep.Alias]; ok {
		m.mu.Unlock()
		observability.Dependencies().OnImport(ctx, dep.Module, true, nil)
		return mod, nil
	}
	spec, ok := m.env.FindModule(dep.Module)
	m.mu.Unlock()

	if !ok {
		observability.Dependencies().OnImport(ctx, dep.Module, false, ErrNoSpec)
		return nil, ErrNoSpec
	}

	mod, err := m.loader(ctx, dep, *spec)
	if err != nil {
		wrapped := errors.Wrap(errors.ErrCodeImportFailed, err, "importing %s", dep.Module)
		observability.Dependencies().OnImport(ctx, dep.Module, false, wrapped)
		return nil, wrapped
	}

	m.mu.Lock()
	// A concurrent observer cannot have registered the alias (single writer
	// path), but re-check so a race would keep the first handle.
	if existing, ok := m.registry[dep.Alias]; ok {
		m.mu.Unlock()
		observability.Dependencies().OnImport(ctx, dep.Module, true, nil)
		return existing, nil
	}
	m.registry[dep.Alias] = mod
	m.mu.Unlock()

	observability.Dependencies().OnImport(ctx, dep.Module, false, nil)
	return mod, nil
}

// Loaded returns the registered handle for alias, if any.
func (m *Manager) Loaded(alias string) (*Module, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.registry[alias]
	return mod, ok
}

// CheckAll reports whether every declared dependency is importable.
func (m *Manager) CheckAll() bool {
	for _, d := range m.deps {
		if !m.Installed(d) {
			return false
		}
	}
	return true
}

// Version reports the installed distribution version of the dependency, or ""
// when it is not installed.
func (m *Manager) Version(dep Dependency) string {
	return m.Environment().DistVersion(dep.Package)
}

// States returns a point-in-time snapshot of every declared dependency.
func (m *Manager) States() []State {
	out := make([]State, 0, len(m.deps))
	for _, d := range m.deps {
		_, loaded := m.Loaded(d.Alias)
		out = append(out, State{
			Dependency: d,
			Installed:  m.Installed(d),
			Loaded:     loaded,
			Version:    m.Version(d),
		})
	}
	return out
}

// pipCommand builds a pip invocation with the standard environment
// adjustments applied.
func (m *Manager) pipCommand(env python.Environment, args ...string) python.Command {
	cmd := env.Python(append([]string{"-m", "pip"}, args...)...)
	cmd.Env = pipEnv.extra
	cmd.Drop = pipEnv.drop
	return cmd
}
