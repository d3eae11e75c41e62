package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// depsCommand creates the dependency management command.
func (c *CLI) depsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Manage the Python dependencies in the embedded interpreter",
	}

	cmd.AddCommand(c.depsInstallCommand())
	cmd.AddCommand(c.depsUninstallCommand())
	cmd.AddCommand(c.depsStatusCommand())

	return cmd
}

// depsInstallCommand creates the "deps install" subcommand. Package
// arguments select individual dependencies; none means all of them.
func (c *CLI) depsInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install [package ...]",
		Short: "Install or upgrade dependencies with pip",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ext, _, err := c.setup(ctx)
			if err != nil {
				return err
			}

			spinner := newSpinnerWithContext(ctx, "Installing dependencies with pip...")
			spinner.Start()
			err = ext.InstallDependencies(ctx, args...)
			if err != nil {
				spinner.StopWithError("Installation failed")
				return err
			}
			spinner.StopWithSuccess("Dependencies installed")

			printNextStep("Next", fmt.Sprintf("%s serve", appName))
			return nil
		},
	}
}

// depsUninstallCommand creates the "deps uninstall" subcommand.
func (c *CLI) depsUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall [package ...]",
		Short: "Remove dependencies with pip",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ext, _, err := c.setup(ctx)
			if err != nil {
				return err
			}

			spinner := newSpinnerWithContext(ctx, "Removing dependencies with pip...")
			spinner.Start()
			err = ext.UninstallDependencies(ctx, args...)
			if err != nil {
				spinner.StopWithError("Removal failed")
				return err
			}
			spinner.StopWithSuccess("Dependencies removed")
			return nil
		},
	}
}

// depsStatusCommand creates the "deps status" subcommand.
func (c *CLI) depsStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the install state of every declared dependency",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ext, host, err := c.setup(ctx)
			if err != nil {
				return err
			}

			states := ext.Manager().States()
			rows := make([][]string, 0, len(states))
			allOK := true
			for _, st := range states {
				installed := styleIconError.Render(iconError)
				if st.Installed {
					installed = styleIconSuccess.Render(iconSuccess)
				} else {
					allOK = false
				}
				version := st.Version
				if version == "" {
					version = "—"
				}
				rows = append(rows, []string{st.Dependency.DisplayName, installed, version})
			}

			t := table.New().
				Headers("Dependency", "Installed", "Version").
				Rows(rows...)
			fmt.Println(t.Render())
			printNewline()

			p, err := host.Settings().Load()
			if err == nil {
				path := p.Path
				if path == "" {
					path = "(not configured)"
				}
				printKeyValue("Path", path)
			}

			if !allOK {
				printNextStep("Install missing dependencies", fmt.Sprintf("%s deps install", appName))
			}
			return nil
		},
	}
}
