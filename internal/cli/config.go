package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/polyforge/debugbridge/pkg/errors"
)

// configCommand creates the preferences management command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the persisted preferences",
	}

	cmd.AddCommand(c.configShowCommand())
	cmd.AddCommand(c.configSetCommand())
	cmd.AddCommand(c.configPathCommand())

	return cmd
}

// configShowCommand creates the "config show" subcommand.
func (c *CLI) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.prefsStore()
			if err != nil {
				return err
			}
			p, err := store.Load()
			if err != nil {
				return err
			}

			path := p.Path
			if path == "" {
				path = "(not configured)"
			}
			printKeyValue("path", path)
			printKeyValue("timeout", fmt.Sprintf("%d s", p.Timeout))
			printKeyValue("port", strconv.Itoa(p.Port))
			printDetail("File: %s", store.Location())
			return nil
		},
	}
}

// configSetCommand creates the "config set" subcommand.
func (c *CLI) configSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Set a preference value (path, timeout, port)",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"path", "timeout", "port"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.prefsStore()
			if err != nil {
				return err
			}
			p, err := store.Load()
			if err != nil {
				return err
			}

			key, value := args[0], args[1]
			switch key {
			case "path":
				p.Path = value
			case "timeout":
				n, err := strconv.Atoi(value)
				if err != nil {
					return errors.New(errors.ErrCodeInvalidConfig, "timeout must be an integer, got %q", value)
				}
				p.Timeout = n
			case "port":
				n, err := strconv.Atoi(value)
				if err != nil {
					return errors.New(errors.ErrCodeInvalidPort, "port must be an integer, got %q", value)
				}
				p.Port = n
			default:
				return errors.New(errors.ErrCodeInvalidConfig, "unknown preference %q (expected path, timeout, or port)", key)
			}

			if err := store.Save(p); err != nil {
				return err
			}
			printSuccess("%s = %s", key, value)
			return nil
		},
	}
}

// configPathCommand creates the "config path" subcommand.
func (c *CLI) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the preferences file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.prefsStore()
			if err != nil {
				return err
			}
			fmt.Println(store.Location())
			return nil
		},
	}
}
