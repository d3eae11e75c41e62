//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Build mg.Namespace
type Publish mg.Namespace

var Default = Build.App

// ****************************************
// * Variables
// ****************************************
const appName = "debugbridge"
const publishFolder = "dist"

var publishConf = map[string]map[string]string{
	"windows-amd64": {
		"GOOS":   "windows",
		"GOARCH": "amd64",
	},
	"macos-amd64": {
		"GOOS":   "darwin",
		"GOARCH": "amd64",
	},
	"macos-arm64": {
		"GOOS":   "darwin",
		"GOARCH": "arm64",
	},
	"linux-amd64": {
		"GOOS":   "linux",
		"GOARCH": "amd64",
	},
}

// ****************************************
// * Helper functions
// ****************************************
var g0 = sh.RunCmd("go")

func ldflags() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	commit, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	if commit == "" {
		commit = "none"
	}
	date := time.Now().UTC().Format(time.RFC3339)

	prefix := "github.com/polyforge/debugbridge/pkg/buildinfo"
	return fmt.Sprintf("-X %[1]s.Version=%[2]s -X %[1]s.Commit=%[3]s -X %[1]s.Date=%[4]s", prefix, version, commit, date)
}

// Build the CLI binary.
func (Build) App() error {
	mg.Deps(Build.InstallDeps)
	fmt.Println("Building...")
	return g0("build", "-ldflags", ldflags(), "-o", appName, "./cmd/"+appName)
}

// Download module dependencies.
func (Build) InstallDeps() error {
	fmt.Println("Installing Deps...")
	return g0("mod", "download")
}

// Run the test suite with the race detector.
func (Build) Test() error {
	fmt.Println("Testing...")
	return g0("test", "-race", "./...")
}

// Run go vet across the module.
func (Build) Lint() error {
	fmt.Println("Vetting...")
	return g0("vet", "./...")
}

// Clean up build artifacts.
func (Build) Clean() {
	fmt.Println("Cleaning...")
	os.RemoveAll(appName)
	os.RemoveAll(publishFolder)
}

// Cross-compile release binaries into dist/.
func (Publish) All() error {
	fmt.Println("Publishing apps...")
	if err := os.RemoveAll(publishFolder); err != nil {
		return err
	}

	if err := os.Mkdir(publishFolder, 0770); err != nil {
		return err
	}

	flags := ldflags()
	for k, e := range publishConf {
		fmt.Println("Publishing ", k)

		var outputPath = filepath.Join(publishFolder, k)
		if err := os.Mkdir(outputPath, 0770); err != nil {
			return err
		}

		var outputName = appName
		if strings.HasPrefix(k, "windows") {
			outputName += ".exe"
		}

		var output = filepath.Join(outputPath, outputName)
		if err := sh.RunWith(e, "go", "build", "-ldflags", "-w -s "+flags, "-o", output, "./cmd/"+appName); err != nil {
			return err
		}
	}

	return nil
}
