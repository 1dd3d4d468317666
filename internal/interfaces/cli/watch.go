package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	configinfra "github.com/kilometers-ai/plugin-updater/internal/infrastructure/config"
	"github.com/kilometers-ai/plugin-updater/internal/infrastructure/hostbridge"
	"github.com/kilometers-ai/plugin-updater/internal/infrastructure/presenter"
	"github.com/kilometers-ai/plugin-updater/internal/interfaces/di"
)

// WatchFlags holds command-line flags for the watch command
type WatchFlags struct {
	TUI    bool
	Listen string
}

func newWatchCommand(a *app) *cobra.Command {
	flags := &WatchFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep checking declared plugins for updates",
		Long: `Register every declared plugin and keep checking for updates on the
configured interval until interrupted.

Changes to the plugins file are picked up while running. With --tui the
notice surface is interactive: [enter] installs the selected plugin, [r]
reloads the host, [c] checks now. With --listen a host UI can connect over
a websocket at /notices.

Examples:
  km-updater watch
  km-updater watch --tui
  km-updater watch --listen 127.0.0.1:7411`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("listen") {
				flags.Listen = a.container.Config.BridgeListen
			}
			return runWatch(cmd.Context(), a.container, cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.TUI, "tui", false, "Interactive terminal notice surface")
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "Serve the host bridge websocket on this address")

	return cmd
}

func runWatch(ctx context.Context, c *di.Container, out io.Writer, flags *WatchFlags) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if flags.Listen != "" {
		bridge := hostbridge.New(c.Updater, c.Logger)
		addr, err := bridge.ListenAndServe(flags.Listen)
		if err != nil {
			return err
		}
		defer bridge.Close()
		c.Presenters.Add(bridge)
		fmt.Fprintf(out, "Host bridge listening on ws://%s%s\n", addr, hostbridge.NoticesPath)
	}

	watcher, err := configinfra.NewPluginsFileWatcher(c.Config.PluginsFile, 0, func(plugins []configinfra.PluginSpec) {
		c.Register(ctx, plugins)
	}, c.Logger)
	if err != nil {
		c.Logger.Warn().Err(err).Msg("plugins file changes will not be picked up")
	} else {
		watcher.Start(ctx)
		defer func() {
			cancel()
			watcher.Wait()
		}()
	}

	if flags.TUI {
		return runWatchTUI(ctx, cancel, c)
	}

	c.Presenters.Add(presenter.NewConsole(out, "run `km-updater install <name>`, then reload the host"))

	outcomes, err := c.RegisterDeclared(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Watching %d plugins, checking every %s. Press Ctrl+C to stop.\n",
		len(outcomes), c.Config.CheckInterval)

	<-ctx.Done()
	return nil
}

func runWatchTUI(ctx context.Context, cancel context.CancelFunc, c *di.Container) error {
	tui, program := presenter.NewTUI(ctx, c.Updater, tea.WithAltScreen())
	c.Presenters.Add(tui)

	go func() {
		if _, err := c.RegisterDeclared(ctx); err != nil {
			c.Presenters.ReportError("Unable to read plugins file", err)
		}
	}()

	_, err := program.Run()
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("notice surface failed: %w", err)
	}
	return nil
}
