package cli

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polyforge/debugbridge/pkg/locate"
	"github.com/polyforge/debugbridge/pkg/python"
)

// locateCommand creates the "locate" command: run the install-path search
// and optionally persist the result.
func (c *CLI) locateCommand() *cobra.Command {
	var save bool
	var pkg string

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Find the directory the debugging library is installed in",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := c.discoverEnvironment(ctx)
			if err != nil {
				return err
			}

			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Searching for %s...", pkg))
			spinner.Start()
			resolver := locate.New(env, python.ExecRunner{})
			path, err := resolver.Locate(ctx, pkg)
			if stderrors.Is(err, locate.ErrNotFound) {
				spinner.StopWithWarning(fmt.Sprintf("%s not found in any search location", pkg))
				printNextStep("Install it", fmt.Sprintf("%s deps install", appName))
				return err
			}
			if err != nil {
				spinner.Stop()
				return err
			}
			spinner.StopWithSuccess(fmt.Sprintf("Found %s", pkg))
			printSuccess("%s", StyleHighlight.Render(path))

			if save {
				store, err := c.prefsStore()
				if err != nil {
					return err
				}
				p, err := store.Load()
				if err != nil {
					return err
				}
				p.Path = path
				if err := store.Save(p); err != nil {
					return err
				}
				printDetail("Saved to %s", store.Location())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "persist the found path to the preferences")
	cmd.Flags().StringVar(&pkg, "package", "debugpy", "package directory name to search for")
	return cmd
}
