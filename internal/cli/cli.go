package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/polyforge/debugbridge/pkg/buildinfo"
	"github.com/polyforge/debugbridge/pkg/extension"
	"github.com/polyforge/debugbridge/pkg/prefs"
	"github.com/polyforge/debugbridge/pkg/python"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "debugbridge"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath overrides the preferences file location (--config).
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Debugbridge attaches code editors to Polyforge's embedded Python",
		Long:         `Debugbridge opens a remote-debugging listener for the Polyforge 3D application's embedded Python interpreter, and manages the debugging library that owns the wire protocol: installing it with pip, finding where it lives, and waiting for an editor to attach.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "preferences file (default: $XDG_CONFIG_HOME/debugbridge/config.toml)")

	// Attach the logger to the command context so every RunE and the
	// subsystems it builds pull the same instance back out.
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		return nil
	}

	// Register all subcommands
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.locateCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.panelCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// versionCommand creates the "version" command, printing the full build info.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(buildinfo.String())
		},
	}
}

// =============================================================================
// Extension Factory
// =============================================================================

// discoverEnvironment probes the interpreter debugbridge operates on. A
// failed probe degrades to an executable-only environment so commands that
// do not need the search path still work.
func (c *CLI) discoverEnvironment(ctx context.Context) (python.Environment, error) {
	exe, err := python.DefaultExecutable()
	if err != nil {
		return python.Environment{}, err
	}
	env, err := python.Discover(ctx, python.ExecRunner{}, exe)
	if err != nil {
		loggerFromContext(ctx).Debug("interpreter probe failed, continuing with executable only", "err", err)
		return python.Environment{Executable: exe}, nil
	}
	return env, nil
}

// prefsStore opens the preferences file store, honoring --config.
func (c *CLI) prefsStore() (prefs.Store, error) {
	return prefs.NewFileStore(c.configPath)
}

// setup builds the extension and registers it against the CLI host. This is
// the CLI's stand-in for the host application enabling the add-on.
func (c *CLI) setup(ctx context.Context) (*extension.Extension, *cliHost, error) {
	env, err := c.discoverEnvironment(ctx)
	if err != nil {
		return nil, nil, err
	}
	ext, err := extension.New(extension.Config{
		Environment: env,
		Runner:      python.ExecRunner{},
		Logger:      loggerFromContext(ctx),
	})
	if err != nil {
		return nil, nil, err
	}
	store, err := c.prefsStore()
	if err != nil {
		return nil, nil, err
	}
	host := &cliHost{store: store}
	if _, err := ext.Register(ctx, host); err != nil {
		return nil, nil, err
	}
	return ext, host, nil
}

// =============================================================================
// CLI Host
// =============================================================================

// cliHost implements extension.Host for the standalone harness: preferences
// live in the TOML file store and reports render through the ui helpers.
type cliHost struct {
	store prefs.Store
}

func (h *cliHost) Settings() prefs.Store      { return h.store }
func (h *cliHost) Report() extension.Reporter { return cliReporter{} }

// cliReporter renders host reports as terminal status lines.
type cliReporter struct{}

func (cliReporter) Info(format string, args ...any)  { printInfo(format, args...) }
func (cliReporter) Warn(format string, args ...any)  { printWarning(format, args...) }
func (cliReporter) Error(format string, args ...any) { printError(format, args...) }
