package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List declared plugins and their installed versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.container
			plugins, err := c.DeclaredPlugins()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(plugins) == 0 {
				fmt.Fprintf(out, "No plugins declared in %s\n", c.Config.PluginsFile)
				return nil
			}

			installed, err := c.Store.Load(cmd.Context())
			if err != nil {
				c.Logger.Warn().Err(err).Msg("failed to read installed versions")
				installed = map[string]version.SemVer{}
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("PLUGIN", "DECLARED", "INSTALLED", "SOURCE")

			for _, p := range plugins {
				source := p.Source
				if source == "" {
					source = c.Config.SourceURLFor(p.Name)
				}
				current := "-"
				if v, ok := installed[source]; ok {
					current = v.String()
				}
				if source == "" {
					source = "(no source)"
				}
				t.Row(p.Name, p.Version, current, source)
			}

			fmt.Fprintln(out, t.String())
			return nil
		},
	}
}
