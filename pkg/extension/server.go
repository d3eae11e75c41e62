package extension

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/polyforge/debugbridge/pkg/attach"
	"github.com/polyforge/debugbridge/pkg/bridge"
	"github.com/polyforge/debugbridge/pkg/deps"
	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/prefs"
)

// StartOptions configures StartServer.
type StartOptions struct {
	// WaitForClient blocks until an editor attaches or the configured
	// timeout elapses, like the original wait-for-client toggle.
	WaitForClient bool

	// Port overrides the preference value when positive.
	Port int
}

// StartServer validates the configured install path, makes the debugging
// library importable, and opens the debug listener.
//
// A listener already opened by this extension is reported as a warning and
// the operation continues; every other failure surfaces as an error.
func (e *Extension) StartServer(ctx context.Context, opts StartOptions) error {
	store, err := e.settings()
	if err != nil {
		return err
	}
	p, err := store.Load()
	if err != nil {
		return err
	}

	dep := e.primaryDependency()

	if p.Path == "" {
		return errors.New(errors.ErrCodeDependencyNotFound,
			"no install path configured for %s; install dependencies or set the path in the preferences", dep.DisplayName)
	}
	path := NormalizeInstallPath(p.Path, dep.Module)
	if _, statErr := os.Stat(filepath.Join(path, dep.Module)); statErr != nil {
		return errors.New(errors.ErrCodePathNotFound,
			"%s does not contain %s; update the path or reinstall", path, dep.Module)
	}

	// The configured path becomes importable for this process and for the
	// adapter subprocesses launched per session.
	e.manager.ExtendSearchPath(path)
	if _, err := e.manager.Import(ctx, dep); err != nil {
		if stderrors.Is(err, deps.ErrNoSpec) {
			return errors.Wrap(errors.ErrCodeImportFailed, err, "importing %s from %s", dep.Module, path)
		}
		return err
	}

	port := p.Port
	if opts.Port > 0 {
		port = opts.Port
	}

	server := e.ensureServer(port)
	if err := server.Listen(ctx); err != nil {
		if !stderrors.Is(err, bridge.ErrAlreadyListening) {
			return err
		}
		e.report().Warn("Debug server already running on %s", server.Addr())
	} else {
		e.report().Info("Debug server listening on %s", server.Addr())
	}

	if opts.WaitForClient {
		_, err := e.CheckAttach(ctx)
		return err
	}
	return nil
}

// ensureServer returns the listener, creating it on first use. A later port
// change only takes effect after the server is closed.
func (e *Extension) ensureServer(port int) *bridge.Server {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server == nil {
		e.server = bridge.New(bridge.Config{
			Port: port,
			Adapter: &bridge.AdapterProcess{
				Env:    e.manager.Environment(),
				Module: e.adapter,
				Logger: e.logger,
			},
			Logger: e.logger,
		})
	}
	return e.server
}

// CheckAttach waits for an editor to attach to the running listener, bounded
// by the configured timeout. Timeout is an expected outcome surfaced as
// ATTACH_TIMEOUT; cancellation emits neither terminal state.
func (e *Extension) CheckAttach(ctx context.Context) (attach.Status, error) {
	e.mu.Lock()
	server := e.server
	e.mu.Unlock()
	if server == nil || !server.Listening() {
		return attach.Waiting, errors.New(errors.ErrCodeInvalidInput,
			"debug server is not running; start it first")
	}

	store, err := e.settings()
	if err != nil {
		return attach.Waiting, err
	}
	p, err := store.Load()
	if err != nil {
		return attach.Waiting, err
	}

	waitCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancelWait = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		e.cancelWait = nil
		e.mu.Unlock()
	}()

	reporter := e.report()
	status, err := attach.Wait(waitCtx, server, attach.WaitOptions{
		Timeout: time.Duration(p.Timeout) * time.Second,
		OnWaiting: func(int) {
			reporter.Info("Waiting for editor to attach... (on %s)", server.Addr())
		},
	})
	if err != nil {
		return status, err
	}

	switch status {
	case attach.Attached:
		reporter.Info("Editor attached")
		return status, nil
	case attach.TimedOut:
		return status, errors.New(errors.ErrCodeAttachTimeout,
			"no editor attached within %d seconds", p.Timeout)
	default:
		return status, nil
	}
}

// Status is a point-in-time view of the whole extension for the panel and
// the control API.
type Status struct {
	Manifest     Manifest          `json:"manifest"`
	Listening    bool              `json:"listening"`
	Attached     bool              `json:"attached"`
	Addr         string            `json:"addr,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	ClientID     string            `json:"client_id,omitempty"`
	Dependencies []deps.State      `json:"dependencies"`
	DepsOK       bool              `json:"deps_ok"`
	Preferences  prefs.Preferences `json:"preferences"`
}

// Status snapshots the extension state. Preference load failures fall back
// to defaults so the snapshot itself cannot fail.
func (e *Extension) Status() Status {
	e.mu.Lock()
	server := e.server
	host := e.host
	e.mu.Unlock()

	st := Status{
		Manifest:     e.manifest,
		Dependencies: e.manager.States(),
		DepsOK:       e.manager.CheckAll(),
		Preferences:  prefs.Default(),
	}
	if host != nil {
		if p, err := host.Settings().Load(); err == nil {
			st.Preferences = p
		}
	}
	if server != nil {
		st.Listening = server.Listening()
		st.Attached = server.ClientConnected()
		st.Addr = server.Addr()
		st.SessionID, st.ClientID = server.Session()
	}
	return st
}

// NormalizeInstallPath strips a trailing component naming the module itself,
// so a user who pasted ".../site-packages/debugpy" still gets the containing
// directory on the search path.
func NormalizeInstallPath(path, module string) string {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	if filepath.Base(cleaned) == module {
		return filepath.Dir(cleaned)
	}
	return cleaned
}
