// Package extension is the plugin surface registered into the host
// application: the add-on manifest, the command table, and the operations
// behind the original preference-panel buttons (install/uninstall
// dependencies, update path, start server, check attach).
//
// The host framework never appears here as a concrete type. Capabilities are
// plain Command descriptors the host wires into whatever command table it
// provides, and the Host interface covers the two things the plugin needs
// back: settings persistence and user-visible reporting.
package extension

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/polyforge/debugbridge/pkg/bridge"
	"github.com/polyforge/debugbridge/pkg/deps"
	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/locate"
	"github.com/polyforge/debugbridge/pkg/prefs"
	"github.com/polyforge/debugbridge/pkg/python"
)

// Manifest is the add-on metadata block as data.
type Manifest struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	MinHostVersion string `json:"min_host_version"`
}

// DefaultManifest describes this plugin.
func DefaultManifest() Manifest {
	return Manifest{
		Name:           "debugbridge",
		Version:        "1.0.0",
		Category:       "Development",
		Description:    "Remote-debugging bridge for the embedded Python interpreter",
		MinHostVersion: "3.0",
	}
}

// Reporter renders user-visible messages. The host shows them in its UI; the
// harness prints them.
type Reporter interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Host is what the plugin needs from the application it is registered into.
type Host interface {
	Settings() prefs.Store
	Report() Reporter
}

// Command identifiers, stable across UI surfaces and the control API.
const (
	CommandInstallDeps   = "deps.install"
	CommandUninstallDeps = "deps.uninstall"
	CommandUpdatePath    = "path.update"
	CommandStartServer   = "server.start"
	CommandCheckAttach   = "server.check_attach"
)

// Command is one entry of the table registered into the host: a capability
// as data rather than a framework subclass. Commands with RequiresDeps are
// rejected while any declared dependency is missing.
type Command struct {
	ID           string
	Title        string
	Description  string
	RequiresDeps bool
	Run          func(ctx context.Context) error
}

// Config builds an Extension. Environment and Runner are required;
// Dependencies, Manifest, AdapterModule and Logger have defaults.
type Config struct {
	Environment  python.Environment
	Runner       python.Runner
	Dependencies []deps.Dependency
	Manifest     Manifest
	Logger       *log.Logger

	// AdapterModule is the debug adapter entry point launched per session.
	// Defaults to "<first dependency module>.adapter".
	AdapterModule string
}

// Extension is the plugin instance. One per host registration.
type Extension struct {
	manifest Manifest
	logger   *log.Logger
	manager  *deps.Manager
	resolver *locate.Resolver
	adapter  string

	mu         sync.Mutex
	host       Host
	server     *bridge.Server
	cancelWait context.CancelFunc
}

// New builds the extension from an explicit configuration object.
func New(cfg Config) (*Extension, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Manifest == (Manifest{}) {
		cfg.Manifest = DefaultManifest()
	}

	manager, err := deps.NewManager(deps.Config{
		Environment:  cfg.Environment,
		Runner:       cfg.Runner,
		Dependencies: cfg.Dependencies,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	adapter := cfg.AdapterModule
	if adapter == "" {
		adapter = manager.Dependencies()[0].Module + ".adapter"
	}

	return &Extension{
		manifest: cfg.Manifest,
		logger:   cfg.Logger,
		manager:  manager,
		resolver: locate.New(cfg.Environment, cfg.Runner),
		adapter:  adapter,
	}, nil
}

// Manifest returns the add-on metadata.
func (e *Extension) Manifest() Manifest {
	return e.manifest
}

// Manager exposes the dependency manager to UI surfaces.
func (e *Extension) Manager() *deps.Manager {
	return e.manager
}

// Register wires the extension into a host: bootstrap pip best-effort,
// auto-fill the install path from the resolver when no path is configured
// yet, and hand back the command table.
func (e *Extension) Register(ctx context.Context, host Host) ([]Command, error) {
	if host == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "extension: host is required")
	}
	e.mu.Lock()
	e.host = host
	e.mu.Unlock()

	// Pip bootstrap at enable time keeps the install buttons responsive
	// later; a failure only degrades install, so it is a warning here.
	if err := e.manager.EnsurePip(ctx); err != nil {
		e.logger.Warn("pip bootstrap failed", "err", err)
	}

	if err := e.autofillPath(ctx, host.Settings()); err != nil {
		e.logger.Warn("could not auto-fill install path", "err", err)
	}

	return e.Commands(), nil
}

// autofillPath fills the preference path from the resolver the first time
// the extension runs, matching the original preference default.
func (e *Extension) autofillPath(ctx context.Context, store prefs.Store) error {
	p, err := store.Load()
	if err != nil {
		return err
	}
	if p.Path != "" {
		return nil
	}

	path, err := e.resolver.Locate(ctx, e.primaryDependency().Module)
	if err != nil {
		// Not found is the normal first-run state before installation.
		return nil
	}
	p.Path = path
	return store.Save(p)
}

// Unregister releases everything the extension holds: a running attach wait
// is cancelled and the debug listener is closed.
func (e *Extension) Unregister(context.Context) error {
	e.mu.Lock()
	cancel := e.cancelWait
	e.cancelWait = nil
	server := e.server
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if server != nil {
		return server.Close()
	}
	return nil
}

// Commands returns the command table.
func (e *Extension) Commands() []Command {
	return []Command{
		{
			ID:          CommandInstallDeps,
			Title:       "Install dependencies",
			Description: "Install or upgrade the debugging library with the package manager",
			Run:         func(ctx context.Context) error { return e.InstallDependencies(ctx) },
		},
		{
			ID:          CommandUninstallDeps,
			Title:       "Uninstall dependencies",
			Description: "Remove the debugging library with the package manager",
			Run:         func(ctx context.Context) error { return e.UninstallDependencies(ctx) },
		},
		{
			ID:          CommandUpdatePath,
			Title:       "Update path",
			Description: "Re-run the install-path search and persist the result",
			Run: func(ctx context.Context) error {
				_, err := e.UpdatePath(ctx)
				return err
			},
		},
		{
			ID:           CommandStartServer,
			Title:        "Start debug server",
			Description:  "Open the debug listener so an editor can attach",
			RequiresDeps: true,
			Run:          func(ctx context.Context) error { return e.StartServer(ctx, StartOptions{}) },
		},
		{
			ID:           CommandCheckAttach,
			Title:        "Check attach",
			Description:  "Wait for an editor to attach to the debug listener",
			RequiresDeps: true,
			Run: func(ctx context.Context) error {
				_, err := e.CheckAttach(ctx)
				return err
			},
		},
	}
}

// RunCommand executes the command with the given id, enforcing the
// dependency gate. Unknown ids return NOT_FOUND.
func (e *Extension) RunCommand(ctx context.Context, id string) error {
	for _, cmd := range e.Commands() {
		if cmd.ID != id {
			continue
		}
		if cmd.RequiresDeps && !e.manager.CheckAll() {
			return errors.New(errors.ErrCodeDependencyNotFound,
				"command %s needs the dependencies installed; run %s first", id, CommandInstallDeps)
		}
		return cmd.Run(ctx)
	}
	return errors.New(errors.ErrCodeNotFound, "unknown command %s", id)
}

// primaryDependency is the first declared dependency, the debugging library
// itself.
func (e *Extension) primaryDependency() deps.Dependency {
	return e.manager.Dependencies()[0]
}

// selectDependencies maps names to declared descriptors; an empty name list
// means all of them.
func (e *Extension) selectDependencies(names []string) ([]deps.Dependency, error) {
	if len(names) == 0 {
		return e.manager.Dependencies(), nil
	}
	out := make([]deps.Dependency, 0, len(names))
	for _, name := range names {
		dep, ok := e.manager.Find(name)
		if !ok {
			return nil, errors.New(errors.ErrCodeDependencyNotFound, "no declared dependency named %q", name)
		}
		out = append(out, dep)
	}
	return out, nil
}

// InstallDependencies installs the named dependencies, or all of them when
// none are named.
func (e *Extension) InstallDependencies(ctx context.Context, names ...string) error {
	selected, err := e.selectDependencies(names)
	if err != nil {
		return err
	}
	for _, dep := range selected {
		if err := e.manager.Install(ctx, dep); err != nil {
			return err
		}
		e.report().Info("Installed %s", dep.DisplayName)
	}
	return nil
}

// UninstallDependencies removes the named dependencies, or all of them.
func (e *Extension) UninstallDependencies(ctx context.Context, names ...string) error {
	selected, err := e.selectDependencies(names)
	if err != nil {
		return err
	}
	for _, dep := range selected {
		if err := e.manager.Uninstall(ctx, dep); err != nil {
			return err
		}
		e.report().Info("Uninstalled %s", dep.DisplayName)
	}
	return nil
}

// UpdatePath re-runs the resolver and persists the found path to the
// preferences.
func (e *Extension) UpdatePath(ctx context.Context) (string, error) {
	store, err := e.settings()
	if err != nil {
		return "", err
	}

	path, err := e.resolver.Locate(ctx, e.primaryDependency().Module)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeDependencyNotFound, err,
			"%s not found; install it or set the path manually", e.primaryDependency().DisplayName)
	}

	p, err := store.Load()
	if err != nil {
		return "", err
	}
	p.Path = path
	if err := store.Save(p); err != nil {
		return "", err
	}
	e.report().Info("Install path updated to %s", path)
	return path, nil
}

// settings returns the registered host's preference store.
func (e *Extension) settings() (prefs.Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "extension is not registered with a host")
	}
	return e.host.Settings(), nil
}

// report returns the host reporter, or a logger-backed one before
// registration.
func (e *Extension) report() Reporter {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host != nil {
		return e.host.Report()
	}
	return logReporter{e.logger}
}

// logReporter routes reports into the structured log when no host is
// attached yet.
type logReporter struct {
	logger *log.Logger
}

func (r logReporter) Info(format string, args ...any)  { r.logger.Infof(format, args...) }
func (r logReporter) Warn(format string, args ...any)  { r.logger.Warnf(format, args...) }
func (r logReporter) Error(format string, args ...any) { r.logger.Errorf(format, args...) }
