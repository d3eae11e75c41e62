package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name for safety and correctness.
// It rejects names that could be used for path traversal or argument
// injection when the name is handed to the package manager.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path separators or traversal sequences
//   - No null bytes
//   - No leading dashes (would parse as a pip flag)
//   - Maximum length of 256 characters
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}

	// Check for control characters and null bytes
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package name contains invalid control characters")
		}
	}

	if strings.HasPrefix(name, "-") {
		return New(ErrCodeInvalidPackage, "package name cannot start with a dash")
	}

	// Check for path separators and traversal patterns
	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// pythonPackageNameRegex matches valid Python package names (PEP 508).
var pythonPackageNameRegex = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9])$`)

// ValidatePythonPackageName validates a Python package name per PEP 508.
func ValidatePythonPackageName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if !pythonPackageNameRegex.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid Python package name: %q", name)
	}

	return nil
}

// versionClauseRegex matches a single PEP 440 version specifier clause,
// e.g. "==1.2.3", ">=1.0", "~=2.1", "!=1.4.*".
var versionClauseRegex = regexp.MustCompile(`^(===|==|!=|~=|<=|>=|<|>)\s*[A-Za-z0-9][A-Za-z0-9._*+!-]*$`)

// ValidateVersionConstraint validates a version constraint string as it is
// appended to the package name for the package manager, such as "==1.2.3"
// or ">=1.0,<2.0". An empty constraint is valid and means "no pin".
func ValidateVersionConstraint(constraint string) error {
	if constraint == "" {
		return nil
	}

	if len(constraint) > 128 {
		return New(ErrCodeInvalidVersion, "version constraint too long (max 128 characters)")
	}

	for _, clause := range strings.Split(constraint, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return New(ErrCodeInvalidVersion, "version constraint has an empty clause: %q", constraint)
		}
		if !versionClauseRegex.MatchString(clause) {
			return New(ErrCodeInvalidVersion, "invalid version constraint clause: %q", clause)
		}
	}

	return nil
}

// ValidatePort validates a TCP port for the debug listener.
// The full 0-65535 range is accepted; 0 lets the OS pick a free port.
func ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return New(ErrCodeInvalidPort, "port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// ValidateInstallPath validates a user-supplied install path (the directory
// expected to contain the debugging library). An empty path is valid and
// means "not configured".
func ValidateInstallPath(path string) error {
	if path == "" {
		return nil
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	// Check for null bytes and control characters
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}
