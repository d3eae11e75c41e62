package python

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/polyforge/debugbridge/pkg/errors"
)

// discoverScript asks the interpreter for its own view of its library paths.
// Kept to a single line so it survives argv quoting on every platform.
const discoverScript = `import json, sys, sysconfig; print(json.dumps({"platlib": sysconfig.get_path("platlib"), "path": [p for p in sys.path if p]}))`

// Discover probes the interpreter at exe once and returns its Environment.
// This is the one place debugbridge asks Python about itself; everything
// downstream works off the returned value.
func Discover(ctx context.Context, runner Runner, exe string) (Environment, error) {
	if exe == "" {
		return Environment{}, errors.New(errors.ErrCodeInterpreterNotFound, "no interpreter executable given")
	}

	cmd := Command{Path: exe, Args: []string{"-c", discoverScript}}
	res, err := runner.Run(ctx, cmd)
	if err != nil {
		return Environment{}, errors.Wrap(errors.ErrCodeInterpreterNotFound, err, "probing interpreter %s", exe)
	}
	if res.ExitCode != 0 {
		return Environment{}, errors.Wrap(errors.ErrCodeInterpreterNotFound,
			&errors.ExitError{Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr},
			"probing interpreter %s", exe)
	}

	var probe struct {
		PlatLib string   `json:"platlib"`
		Path    []string `json:"path"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &probe); err != nil {
		return Environment{}, errors.Wrap(errors.ErrCodeInterpreterNotFound, err, "parsing interpreter probe output")
	}

	env := Environment{Executable: exe}
	if probe.PlatLib != "" {
		env.PlatLib = filepath.Clean(probe.PlatLib)
	}
	for _, p := range probe.Path {
		if p == "" {
			continue
		}
		env.SearchPath = append(env.SearchPath, filepath.Clean(p))
	}
	return env, nil
}
