// Package deps manages the Python packages the debug bridge needs inside the
// host's embedded interpreter: declaring them, installing and removing them
// through pip, and importing them into an explicit module registry.
//
// The Manager is built from a Config carrying the interpreter environment, the
// subprocess runner, and the fixed dependency list. Nothing in this package
// reads process-wide state; tests drive it with a fake runner and temp-dir
// environments.
package deps

import (
	"github.com/polyforge/debugbridge/pkg/errors"
)

// Dependency describes one Python package the bridge depends on.
//
// Module is the import name and the only required field. Package (the name
// pip knows), Alias (the registry key), and DisplayName (what UI surfaces
// show) default to Module; Version is an optional PEP 440 constraint such as
// "==1.2.3" appended verbatim to the pip install spec. Descriptors are
// immutable once the Manager resolves their defaults.
type Dependency struct {
	Module      string `json:"module"`
	Package     string `json:"package"`
	Alias       string `json:"alias"`
	DisplayName string `json:"display_name"`
	Version     string `json:"version,omitempty"`
}

// withDefaults returns the descriptor with empty fields resolved from Module.
// Called exactly once per descriptor, when the Manager is constructed.
func (d Dependency) withDefaults() Dependency {
	if d.Package == "" {
		d.Package = d.Module
	}
	if d.Alias == "" {
		d.Alias = d.Module
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Module
	}
	return d
}

// validate checks the descriptor fields that end up on a pip command line.
func (d Dependency) validate() error {
	if d.Module == "" {
		return errors.New(errors.ErrCodeInvalidPackage, "dependency module name cannot be empty")
	}
	if err := errors.ValidatePythonPackageName(d.Module); err != nil {
		return err
	}
	if d.Package != "" {
		if err := errors.ValidatePythonPackageName(d.Package); err != nil {
			return err
		}
	}
	return errors.ValidateVersionConstraint(d.Version)
}

// Spec returns the pip install specifier, the package name with the version
// constraint appended: "debugpy" or "debugpy==1.2.3".
func (d Dependency) Spec() string {
	return d.Package + d.Version
}

// Default is the dependency set the debug bridge ships with: the debugging
// library that owns the wire protocol.
func Default() []Dependency {
	return []Dependency{
		{Module: "debugpy", DisplayName: "debugpy (remote debugging library)"},
	}
}
