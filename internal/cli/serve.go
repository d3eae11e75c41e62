package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/polyforge/debugbridge/internal/control"
	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/extension"
	"github.com/polyforge/debugbridge/pkg/prefs"
)

// serveCommand creates the "serve" command: open the debug listener, then
// keep serving editor sessions until interrupted.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		wait        bool
		port        int
		timeout     int
		controlAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the debug listener for editor attachment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ext, host, err := c.setup(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = ext.Unregister(ctx) }()

			// Flag overrides apply to this run only; the file keeps its
			// persisted values.
			if timeout > 0 {
				host.store = &overrideStore{Store: host.store, timeout: timeout}
			}

			logger := loggerFromContext(ctx)
			prog := newProgress(logger)
			if err := ext.StartServer(ctx, extension.StartOptions{Port: port}); err != nil {
				return err
			}
			prog.done("Debug server listening")

			if wait {
				if _, err := ext.CheckAttach(ctx); err != nil {
					if !errors.Expected(err) {
						return err
					}
					printWarning("%s", errors.UserMessage(err))
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			if controlAddr != "" {
				api := control.New(ext, logger)
				g.Go(func() error { return api.ListenAndServe(gctx, controlAddr) })
				printInfo("Control API on %s", StyleLink.Render("http://"+controlAddr))
			}
			g.Go(func() error {
				<-gctx.Done()
				return gctx.Err()
			})
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "block until an editor attaches before serving")
	cmd.Flags().IntVar(&port, "port", 0, "listener port for this run (default: preference value)")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "attach timeout in seconds for this run (default: preference value)")
	cmd.Flags().StringVar(&controlAddr, "control", "", "also serve the control API on this address (e.g. 127.0.0.1:5679)")
	return cmd
}

// overrideStore layers one-run flag values over the persisted preferences.
type overrideStore struct {
	prefs.Store
	timeout int
}

func (s *overrideStore) Load() (prefs.Preferences, error) {
	p, err := s.Store.Load()
	if err != nil {
		return p, err
	}
	if s.timeout > 0 {
		p.Timeout = s.timeout
	}
	return p, nil
}
