package errors

import (
	"testing"
)

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "debugpy", false},
		{"valid with dash", "my-package", false},
		{"valid with underscore", "my_package", false},
		{"valid with dot", "my.package", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"leading dash", "-upgrade", true},
		{"path traversal ..", "foo..bar", true},
		{"path separator", "foo/bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
		{"carriage return", "foo\rbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePythonPackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "debugpy", false},
		{"with dash", "my-package", false},
		{"with underscore", "my_package", false},
		{"with dot", "my.package", false},
		{"with numbers", "package123", false},
		{"uppercase", "MyPackage", false},
		{"single char", "x", false},

		{"empty", "", true},
		{"starts with dash", "-package", true},
		{"starts with dot", ".package", true},
		{"ends with dash", "package-", true},
		{"ends with dot", "package.", true},
		{"special chars", "my@package", true},
		{"spaces", "my package", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePythonPackageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePythonPackageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateVersionConstraint(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", false},
		{"exact pin", "==1.2.3", false},
		{"minimum", ">=1.0", false},
		{"compatible release", "~=2.1", false},
		{"exclusion", "!=1.4.*", false},
		{"range", ">=1.0,<2.0", false},
		{"arbitrary equality", "===1.0+local", false},

		{"no operator", "1.2.3", true},
		{"bare operator", "==", true},
		{"trailing comma", ">=1.0,", true},
		{"shell metachars", "==1.0; rm -rf /", true},
		{"spaces in version", "== 1 2", true},
		{"too long", "==" + string(make([]byte, 200)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVersionConstraint(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVersionConstraint(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidVersion) {
				t.Errorf("ValidateVersionConstraint(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name    string
		input   int
		wantErr bool
	}{
		{"default", 5678, false},
		{"zero picks free port", 0, false},
		{"max", 65535, false},

		{"negative", -1, true},
		{"too large", 65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePort(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePort(%d) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPort) {
				t.Errorf("ValidatePort(%d) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateInstallPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty means unset", "", false},
		{"absolute unix", "/opt/polyforge/python/lib/site-packages", false},
		{"absolute windows", `C:\Polyforge\python\Lib\site-packages`, false},
		{"relative", "python/lib/site-packages", false},

		{"null byte", "/opt\x00/lib", true},
		{"control char", "/opt\x01/lib", true},
		{"too long", "/" + string(make([]byte, 5000)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInstallPath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInstallPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidateInstallPath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidPackage,
		ErrCodeInvalidVersion,
		ErrCodeInvalidPath,
		ErrCodeInvalidPort,
		ErrCodeInvalidConfig,
		ErrCodeNotFound,
		ErrCodeDependencyNotFound,
		ErrCodePathNotFound,
		ErrCodeInterpreterNotFound,
		ErrCodePipUnavailable,
		ErrCodeInstallFailed,
		ErrCodeUninstallFailed,
		ErrCodeImportFailed,
		ErrCodeAlreadyListening,
		ErrCodePortInUse,
		ErrCodeAttachTimeout,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
