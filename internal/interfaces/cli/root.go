package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/kilometers-ai/plugin-updater/internal/interfaces/di"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// app carries the container from PersistentPreRunE to the commands
type app struct {
	container *di.Container
	out       io.Writer
	logOut    io.Writer

	// newContainer is replaced in tests
	newContainer func(ctx context.Context, opts di.Options) (*di.Container, error)
}

// flag name -> config field for flags that override configuration
var flagFields = map[string]string{
	"plugins-dir":  "plugins_dir",
	"plugins-file": "plugins_file",
	"debug":        "debug",
}

// NewRootCommand creates the km-updater command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{out: os.Stdout, logOut: os.Stderr, newContainer: di.NewContainer})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "km-updater",
		Short: "Keeps host plugins up to date",
		Long: `km-updater tracks the plugins installed in a host application, checks their
source URLs for newer releases, and replaces the local plugin files on request.

Plugins are declared in a plugins file (plugins.yaml by default). Outdated
plugins are reported on a notice surface; installed updates take effect after
the host reloads.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}

			overrides, err := flagOverrides(cmd)
			if err != nil {
				return err
			}
			configPath, _ := cmd.Flags().GetString("config")

			// the interactive surface owns the terminal
			logOut := a.logOut
			if tui, err := cmd.Flags().GetBool("tui"); err == nil && tui {
				logOut = io.Discard
			}

			container, err := a.newContainer(cmd.Context(), di.Options{
				ConfigPath: configPath,
				Overrides:  overrides,
				Version:    Version,
				LogOutput:  logOut,
			})
			if err != nil {
				return err
			}
			a.container = container
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.container == nil {
				return nil
			}
			return a.container.Shutdown(cmd.Context())
		},
	}

	rootCmd.SetOut(a.out)
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", defaultConfigPath(), "Config file path (.yaml, .toml or .json)")
	rootCmd.PersistentFlags().String("plugins-file", "", "Plugins file declaring tracked plugins")
	rootCmd.PersistentFlags().String("plugins-dir", "", "Host plugins directory")

	rootCmd.AddCommand(newCheckCommand(a))
	rootCmd.AddCommand(newInstallCommand(a))
	rootCmd.AddCommand(newListCommand(a))
	rootCmd.AddCommand(newWatchCommand(a))
	rootCmd.AddCommand(newReloadCommand(a))
	rootCmd.AddCommand(newVersionCommand(a))

	return rootCmd
}

// flagOverrides collects only flags the user set explicitly
func flagOverrides(cmd *cobra.Command) (map[string]interface{}, error) {
	overrides := make(map[string]interface{})
	for flag, field := range flagFields {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if flag == "debug" {
			v, err := cmd.Flags().GetBool(flag)
			if err != nil {
				return nil, err
			}
			overrides[field] = v
			continue
		}
		overrides[field] = f.Value.String()
	}
	return overrides, nil
}

func defaultConfigPath() string {
	return "~/.km-updater/config.yaml"
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the root command and exits non-zero on failure
func Execute(ctx context.Context) {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
