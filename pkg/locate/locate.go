// Package locate finds the installation directory of a Python package on the
// local filesystem.
//
// Four strategies run in fixed priority order: the interpreter's platform
// library directory, the module search path (including site-packages
// subdirectories), the package manager's own record of the install location,
// and finally the directories of any system Python found through platform
// lookup commands. The first hit wins.
//
// Every probe is independently best-effort: unreadable directories, missing
// lookup commands, and failing subprocesses are swallowed and the next
// strategy runs. Locate mutates nothing; its only side effects are transient
// subprocess spawns.
package locate

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/observability"
	"github.com/polyforge/debugbridge/pkg/python"
)

// ErrNotFound is the sentinel returned when every strategy fails. Compare
// with errors.Is; it is distinguishable from every valid path and from real
// faults, which Locate never returns.
var ErrNotFound = errors.New(errors.ErrCodeNotFound, "package not found in any search location")

// Strategy names as reported to observability hooks.
const (
	StrategyPlatLib      = "platlib"
	StrategySearchPath   = "search-path"
	StrategyPipShow      = "pip-show"
	StrategySystemPython = "system-python"
)

// locationRegex extracts the install location from `pip show` output.
var locationRegex = regexp.MustCompile(`Location:\s*(.*)`)

// Resolver probes an interpreter environment for installed packages.
type Resolver struct {
	env    python.Environment
	runner python.Runner
}

// New returns a Resolver over the given environment. All subprocess probes go
// through runner.
func New(env python.Environment, runner python.Runner) *Resolver {
	return &Resolver{env: env, runner: runner}
}

// Locate returns the directory containing pkgName, trying each strategy in
// priority order. It returns ErrNotFound when no strategy succeeds and never
// fails on probe errors.
func (r *Resolver) Locate(ctx context.Context, pkgName string) (string, error) {
	if pkgName == "" {
		return "", ErrNotFound
	}

	strategies := []struct {
		name  string
		probe func(ctx context.Context, pkgName string) (string, bool)
	}{
		{StrategyPlatLib, r.fromPlatLib},
		{StrategySearchPath, r.fromSearchPath},
		{StrategyPipShow, r.fromPipShow},
		{StrategySystemPython, r.fromSystemPython},
	}

	for _, s := range strategies {
		path, ok := s.probe(ctx, pkgName)
		observability.Resolver().OnStrategy(ctx, s.name, path, ok)
		if ok {
			observability.Resolver().OnResolved(ctx, pkgName, path, true)
			return path, nil
		}
	}

	observability.Resolver().OnResolved(ctx, pkgName, "", false)
	return "", ErrNotFound
}

// fromPlatLib checks the interpreter's configured platform-library directory.
func (r *Resolver) fromPlatLib(_ context.Context, pkgName string) (string, bool) {
	if r.env.PlatLib == "" {
		return "", false
	}
	dir := filepath.Clean(r.env.PlatLib)
	if exists(filepath.Join(dir, pkgName)) {
		return dir, true
	}
	return "", false
}

// fromSearchPath checks every module search path entry and its site-packages
// subdirectories.
func (r *Resolver) fromSearchPath(_ context.Context, pkgName string) (string, bool) {
	for _, entry := range r.env.SearchPath {
		if entry == "" {
			continue
		}
		dir := filepath.Clean(entry)

		if exists(filepath.Join(dir, pkgName)) {
			return dir, true
		}
		if sub := filepath.Join(dir, "site-packages"); exists(filepath.Join(sub, pkgName)) {
			return sub, true
		}
		if sub := filepath.Join(dir, "lib", "site-packages"); exists(filepath.Join(sub, pkgName)) {
			return sub, true
		}
	}
	return "", false
}

// fromPipShow asks the package manager where it installed the package and
// verifies the reported location.
func (r *Resolver) fromPipShow(ctx context.Context, pkgName string) (string, bool) {
	if r.env.Executable == "" {
		return "", false
	}

	res, err := r.runner.Run(ctx, r.env.Python("-m", "pip", "show", pkgName))
	if err != nil {
		return "", false
	}

	// pip exits non-zero for unknown packages; the output is still worth
	// parsing since there is nothing to lose at this point.
	for _, line := range strings.Split(res.Stdout, "\n") {
		m := locationRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		dir := filepath.Clean(strings.TrimSpace(m[1]))
		if dir == "" || dir == "." {
			continue
		}
		if exists(filepath.Join(dir, pkgName)) {
			return dir, true
		}
	}
	return "", false
}

// fromSystemPython locates system Python executables through platform lookup
// commands and checks lib/site-packages relative to each of them.
func (r *Resolver) fromSystemPython(ctx context.Context, pkgName string) (string, bool) {
	lookups := [][]string{
		{"where", "python"},
		{"whereis", "python"},
		{"which", "python"},
	}

	for _, argv := range lookups {
		res, err := r.runner.Run(ctx, python.Command{Path: argv[0], Args: argv[1:]})
		if err != nil {
			continue
		}
		for _, line := range strings.Split(res.Stdout, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			// `where` and `which` print one path per line; `whereis`
			// lists several paths after a "python:" prefix.
			candidates := []string{line}
			if fields := strings.Fields(line); len(fields) > 1 {
				candidates = fields
			}

			for _, cand := range candidates {
				cand = strings.TrimSuffix(cand, ":")
				if cand == "" {
					continue
				}
				dir := filepath.Join(filepath.Dir(filepath.Clean(cand)), "lib", "site-packages")
				if exists(filepath.Join(dir, pkgName)) {
					return dir, true
				}
			}
		}
	}
	return "", false
}

// exists reports whether the path can be stat'ed. Any error counts as
// absent; probes never escalate.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
