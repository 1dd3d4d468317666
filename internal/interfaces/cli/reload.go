package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReloadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Run the configured host reload command",
		Long: `Run reload_command so the host loads freshly installed plugins.
In watch mode the reload is offered on the notice surface instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.container.Reloader.Reload(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Host reloaded.")
			return nil
		},
	}
}
