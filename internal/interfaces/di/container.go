package di

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/kilometers-ai/plugin-updater/internal/application/services"
	configdomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/config"
	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
	configinfra "github.com/kilometers-ai/plugin-updater/internal/infrastructure/config"
	fsinfra "github.com/kilometers-ai/plugin-updater/internal/infrastructure/filesystem"
	httpinfra "github.com/kilometers-ai/plugin-updater/internal/infrastructure/http"
	"github.com/kilometers-ai/plugin-updater/internal/infrastructure/logging"
	"github.com/kilometers-ai/plugin-updater/internal/infrastructure/presenter"
	"github.com/kilometers-ai/plugin-updater/internal/infrastructure/process"
	stateinfra "github.com/kilometers-ai/plugin-updater/internal/infrastructure/state"
)

// Options controls container construction
type Options struct {
	ConfigPath string
	// Overrides holds explicitly set CLI flags keyed by config field
	Overrides map[string]interface{}
	Version   string
	LogOutput io.Writer
	// Transport replaces the HTTP manifest transport, mainly for tests
	Transport ports.Transport
}

// Container holds all application dependencies
type Container struct {
	Config *configdomain.Config
	Logger zerolog.Logger

	// Infrastructure
	Transport  ports.Transport
	PluginsDir *fsinfra.PluginsDirectory
	Suppressor *fsinfra.SuppressorProbe
	Store      *stateinfra.FileVersionStore
	Reloader   *process.CommandReloader

	// Presenters attached by commands; the updater reports to all of them
	Presenters *presenter.Multi

	Updater *services.UpdaterService
}

// NewContainer loads configuration and wires the updater
func NewContainer(ctx context.Context, opts Options) (*Container, error) {
	cfg, err := configinfra.NewDefaultLoader(opts.ConfigPath).Load(ctx, opts.Overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewContainerWithConfig(cfg, opts)
}

// NewContainerWithConfig wires the updater around an already loaded configuration
func NewContainerWithConfig(cfg *configdomain.Config, opts Options) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logging.NewLogger(logging.Options{
			Level:  cfg.LogLevel,
			Debug:  cfg.Debug,
			Output: opts.LogOutput,
		}),
		Presenters: presenter.NewMulti(),
	}

	if err := c.initializeComponents(opts); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	c.Logger.Debug().
		Str("plugins_dir", cfg.PluginsDir).
		Str("data_dir", cfg.DataDir).
		Dur("check_interval", cfg.CheckInterval).
		Msg("container initialized")
	return c, nil
}

func (c *Container) initializeComponents(opts Options) error {
	cfg := c.Config

	// 1. Transport and local storage
	c.Transport = opts.Transport
	if c.Transport == nil {
		userAgent := "km-updater"
		if opts.Version != "" {
			userAgent += "/" + opts.Version
		}
		c.Transport = httpinfra.NewManifestTransport(cfg.DefaultTimeout, userAgent, cfg.MaxManifestBytes)
	}
	c.PluginsDir = fsinfra.NewPluginsDirectory(cfg.PluginsDir)
	c.Suppressor = fsinfra.NewSuppressorProbe(c.PluginsDir, cfg.ReloadSuppressors)
	c.Store = stateinfra.NewFileVersionStore(cfg.DataDir)

	// 2. Host reload
	c.Reloader = process.NewCommandReloader(cfg.ReloadCommand, cfg.DefaultTimeout, c.Logger)

	// 3. Updater
	c.Updater = services.NewUpdaterService(services.UpdaterConfig{
		Transport:    c.Transport,
		FileSystem:   c.PluginsDir,
		Presenter:    c.Presenters,
		Store:        c.Store,
		Suppressor:   c.Suppressor,
		Reloader:     c.Reloader,
		SourceURLFor: cfg.SourceURLFor,
		SchedulerOptions: []services.SchedulerOption{
			services.WithInterval(cfg.CheckInterval),
			services.WithConcurrency(cfg.SweepConcurrency),
		},
		Logger: c.Logger,
	})

	return nil
}

// DeclaredPlugins reads the configured plugins file
func (c *Container) DeclaredPlugins() ([]configinfra.PluginSpec, error) {
	return configinfra.LoadPluginsFile(c.Config.PluginsFile)
}

// RegisterDeclared registers every plugin of the plugins file in file order.
// A plugin that fails to register is logged and skipped.
func (c *Container) RegisterDeclared(ctx context.Context) ([]plugindomain.CheckOutcome, error) {
	plugins, err := c.DeclaredPlugins()
	if err != nil {
		return nil, err
	}
	return c.Register(ctx, plugins), nil
}

// Register registers plugins with the updater and returns their first check
func (c *Container) Register(ctx context.Context, plugins []configinfra.PluginSpec) []plugindomain.CheckOutcome {
	outcomes := make([]plugindomain.CheckOutcome, 0, len(plugins))
	for _, p := range plugins {
		outcome, err := c.Updater.Register(ctx, p.Name, p.Source, p.Version)
		if err != nil {
			c.Logger.Warn().Err(err).Str("plugin", p.Name).Msg("skipping plugin")
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Shutdown stops the recurring sweep
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Updater != nil {
		c.Updater.Close()
	}
	c.Logger.Debug().Msg("shutdown complete")
	return nil
}
