package cli

import (
	"context"
	"io"
	"testing"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	want := []string{"deps", "locate", "serve", "config", "panel", "version", "completion"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("RootCommand() missing subcommand %q", name)
		}
	}
}

func TestRootCommandMetadata(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	if root.Use != "debugbridge" {
		t.Errorf("Use = %q, want %q", root.Use, "debugbridge")
	}
	if root.Version == "" {
		t.Error("Version not set")
	}
	if f := root.PersistentFlags().Lookup("config"); f == nil {
		t.Error("missing persistent --config flag")
	}
}

func TestRootCommandAttachesLoggerToContext(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetContext(context.Background())

	if err := root.PersistentPreRunE(root, nil); err != nil {
		t.Fatalf("PersistentPreRunE() error = %v", err)
	}
	if loggerFromContext(root.Context()) != c.Logger {
		t.Error("command context should carry the CLI logger")
	}
}

func TestConfigSetRejectsUnknownKey(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c := New(io.Discard, LogInfo)
	cmd := c.configSetCommand()
	cmd.SetArgs([]string{"colour", "blue"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err == nil {
		t.Error("expected error for unknown preference key")
	}
}
