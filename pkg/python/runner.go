package python

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Command is a single subprocess invocation: explicit argv, never a shell.
type Command struct {
	// Path is the binary to execute.
	Path string

	// Args are the arguments, not including the binary name.
	Args []string

	// Env holds extra variables in KEY=VALUE form, appended to the
	// inherited environment.
	Env []string

	// Drop names variables removed from the inherited environment before
	// Env is appended.
	Drop []string
}

// String renders the command line for error messages and logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Result captures a finished subprocess.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes subprocesses. The interface is the seam that lets the
// resolver and the dependency manager run against a fake pip, fake path
// lookups, and a fake interpreter in tests.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec. A non-zero exit is reported through
// Result.ExitCode, not as an error; the error return is reserved for failures
// to run at all (missing binary, cancelled context).
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Env = mergeEnv(os.Environ(), cmd.Env, cmd.Drop)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, err
	}
	return res, nil
}

// mergeEnv builds a subprocess environment from the inherited one: variables
// named in drop are removed, then extra KEY=VALUE entries are appended.
func mergeEnv(base, extra, drop []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		if dropped(kv, drop) {
			continue
		}
		out = append(out, kv)
	}
	return append(out, extra...)
}

func dropped(kv string, drop []string) bool {
	for _, name := range drop {
		if strings.HasPrefix(kv, name+"=") {
			return true
		}
	}
	return false
}
