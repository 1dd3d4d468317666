package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/infrastructure/presenter"
)

func newInstallCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install <name>",
		Short: "Download the latest release of a declared plugin",
		Long: `Download the plugin from its source URL and replace the local plugin file.
The host has to reload before the new version takes effect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.container.RegisterDeclared(cmd.Context()); err != nil {
				return err
			}

			a.container.Presenters.Add(presenter.NewConsole(cmd.OutOrStdout(), "run `km-updater reload`"))

			outcome := a.container.Updater.InstallByName(cmd.Context(), args[0])
			if outcome.Status == plugindomain.StatusInstallFailed {
				return fmt.Errorf("install %s: %w", args[0], outcome.Err)
			}
			return nil
		},
	}
}
