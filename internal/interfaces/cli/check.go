package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/infrastructure/presenter"
)

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check every declared plugin for updates once",
		Long: `Check every plugin in the plugins file against its source URL and print
the result. Plugins whose check fails are reported but do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes, err := a.container.RegisterDeclared(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(outcomes) == 0 {
				fmt.Fprintf(out, "No plugins declared in %s\n", a.container.Config.PluginsFile)
				return nil
			}

			printOutcomes(out, outcomes)
			if body := presenter.RenderNoticeBody(a.container.Updater.Notice(), "run `km-updater install <name>`"); body != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, body)
			}
			return nil
		},
	}
}

func printOutcomes(out io.Writer, outcomes []plugindomain.CheckOutcome) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PLUGIN", "INSTALLED", "AVAILABLE", "STATUS")

	for _, o := range outcomes {
		available := "-"
		if o.Status != plugindomain.StatusCheckFailed {
			available = o.Remote.String()
		}
		t.Row(o.Entry.Name, o.Entry.Version.String(), available, statusText(o))
	}

	fmt.Fprintln(out, t.String())
}

func statusText(o plugindomain.CheckOutcome) string {
	switch o.Status {
	case plugindomain.StatusOutdated:
		return "update available"
	case plugindomain.StatusUpToDate:
		return "up to date"
	default:
		return fmt.Sprintf("check failed: %v", o.Err)
	}
}
