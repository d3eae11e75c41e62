// Package python models the embedded Python interpreter that debugbridge
// operates on: where the binary lives, which directories modules are imported
// from, and how subprocesses (pip, path-lookup commands, the interpreter
// itself) are invoked.
//
// The Environment is an explicit value passed into the resolver and the
// dependency manager instead of process-wide state, so tests can describe an
// interpreter with a handful of temp directories and a fake Runner.
package python

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/polyforge/debugbridge/pkg/errors"
)

// EnvExecutable names the environment variable that overrides interpreter
// discovery, pointing at the host application's bundled Python.
const EnvExecutable = "POLYFORGE_PYTHON"

// Environment describes an embedded interpreter: its executable, its
// platform-library directory, and its module search path.
type Environment struct {
	// Executable is the path to the interpreter binary.
	Executable string

	// PlatLib is the interpreter's configured platform-library directory
	// (sysconfig "platlib"), if known.
	PlatLib string

	// SearchPath is the module search path, in import order.
	SearchPath []string
}

// ModuleSpec describes an importable module found on the search path.
// Finding a spec never executes the module.
type ModuleSpec struct {
	Name      string // module name as imported
	Dir       string // search-path entry the module was found under
	Path      string // package directory or module file
	IsPackage bool   // true for a package directory
}

// FindModule scans the search path for the named module and reports its spec.
// It accepts both package directories and single-file modules, mirroring the
// interpreter's own finder closely enough for an installed-or-not check.
func (e Environment) FindModule(name string) (*ModuleSpec, bool) {
	if name == "" {
		return nil, false
	}
	for _, dir := range e.SearchPath {
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)

		pkgDir := filepath.Join(dir, name)
		if info, err := os.Stat(pkgDir); err == nil && info.IsDir() {
			return &ModuleSpec{Name: name, Dir: dir, Path: pkgDir, IsPackage: true}, true
		}

		modFile := filepath.Join(dir, name+".py")
		if info, err := os.Stat(modFile); err == nil && !info.IsDir() {
			return &ModuleSpec{Name: name, Dir: dir, Path: modFile}, true
		}
	}
	return nil, false
}

// DistVersion reports the installed version of a distribution by scanning the
// search path for its .dist-info directory. Returns "" when the distribution
// is not installed. Pure filesystem check: no subprocess, no import.
func (e Environment) DistVersion(name string) string {
	want := normalizeDistName(name)
	if want == "" {
		return ""
	}
	for _, dir := range e.SearchPath {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(filepath.Clean(dir))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dist-info") {
				continue
			}
			stem := strings.TrimSuffix(entry.Name(), ".dist-info")
			dist, version, ok := strings.Cut(stem, "-")
			if !ok {
				continue
			}
			if normalizeDistName(dist) == want {
				return version
			}
		}
	}
	return ""
}

// WithSearchPath returns a copy of the environment with dir appended to the
// search path, unless it is already present.
func (e Environment) WithSearchPath(dir string) Environment {
	if dir == "" {
		return e
	}
	dir = filepath.Clean(dir)
	if slices.Contains(e.SearchPath, dir) {
		return e
	}
	out := e
	out.SearchPath = append(append([]string(nil), e.SearchPath...), dir)
	return out
}

// Python builds a Command invoking this environment's interpreter.
func (e Environment) Python(args ...string) Command {
	return Command{Path: e.Executable, Args: args}
}

// Environ returns a process environment for child interpreters that must
// import from this environment's search path: the inherited environment with
// PYTHONPATH replaced by the search path and user site-packages disabled, so
// the child sees the same modules the embedded interpreter would.
func (e Environment) Environ() []string {
	base := os.Environ()
	out := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, "PYTHONPATH=") || strings.HasPrefix(kv, "PYTHONNOUSERSITE=") {
			continue
		}
		out = append(out, kv)
	}
	if len(e.SearchPath) > 0 {
		out = append(out, "PYTHONPATH="+strings.Join(e.SearchPath, string(os.PathListSeparator)))
	}
	return append(out, "PYTHONNOUSERSITE=1")
}

// DefaultExecutable returns the interpreter debugbridge should operate on:
// the EnvExecutable override when set, otherwise the first of python3, python
// found on PATH.
func DefaultExecutable() (string, error) {
	if exe := os.Getenv(EnvExecutable); exe != "" {
		return exe, nil
	}
	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New(errors.ErrCodeInterpreterNotFound,
		"no python interpreter found on PATH (set %s to the host's bundled interpreter)", EnvExecutable)
}

// normalizeDistName canonicalizes a distribution name for comparison:
// lowercase with runs of dash, underscore, and dot collapsed to a single
// underscore (PEP 503 with wheel escaping).
func normalizeDistName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	prevSep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			if !prevSep {
				b.WriteByte('_')
			}
			prevSep = true
			continue
		}
		prevSep = false
		b.WriteRune(r)
	}
	return b.String()
}
