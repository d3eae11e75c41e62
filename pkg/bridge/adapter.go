package bridge

import (
	"context"
	"io"
	"os/exec"

	"github.com/charmbracelet/log"

	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/python"
)

// AdapterProcess launches the debugging library's adapter as a child process
// speaking DAP on its stdio: `python -m debugpy.adapter`. One process per
// editor session; closing the returned stream terminates it.
type AdapterProcess struct {
	// Env is the interpreter to launch the adapter under. The module search
	// path extension (the configured install path) is passed through
	// PYTHONPATH so the adapter can import the debugging library.
	Env python.Environment

	// Module is the adapter entry point, e.g. "debugpy.adapter".
	Module string

	Logger *log.Logger
}

var _ Launcher = (*AdapterProcess)(nil)

// Launch implements Launcher.
func (a *AdapterProcess) Launch(ctx context.Context, sessionID string) (io.ReadWriteCloser, error) {
	if a.Env.Executable == "" {
		return nil, errors.New(errors.ErrCodeInterpreterNotFound, "no interpreter configured for the debug adapter")
	}
	module := a.Module
	if module == "" {
		module = "debugpy.adapter"
	}
	logger := a.Logger
	if logger == nil {
		logger = log.Default()
	}

	cmd := exec.CommandContext(ctx, a.Env.Executable, "-m", module)
	cmd.Env = a.Env.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "opening adapter stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "opening adapter stdout")
	}
	cmd.Stderr = adapterLogWriter{logger: logger, session: sessionID}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "starting debug adapter %s", module)
	}
	logger.Debug("debug adapter started", "session", sessionID, "pid", cmd.Process.Pid)

	return &adapterPipe{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// adapterPipe adapts a child process's stdio to one ReadWriteCloser.
type adapterPipe struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *adapterPipe) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *adapterPipe) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close terminates the adapter: stdin closes first so a well-behaved adapter
// exits on its own, then the process is killed and reaped.
func (p *adapterPipe) Close() error {
	_ = p.stdin.Close()
	_ = p.stdout.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return nil
}

// adapterLogWriter forwards adapter stderr lines into the structured log.
type adapterLogWriter struct {
	logger  *log.Logger
	session string
}

func (w adapterLogWriter) Write(b []byte) (int, error) {
	w.logger.Debug("adapter stderr", "session", w.session, "output", string(b))
	return len(b), nil
}
