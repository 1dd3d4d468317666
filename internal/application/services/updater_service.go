package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
	"github.com/kilometers-ai/plugin-updater/internal/core/notice"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
	"github.com/kilometers-ai/plugin-updater/internal/core/registry"
)

// UpdaterConfig holds the service's collaborators and settings
type UpdaterConfig struct {
	Transport  ports.Transport
	FileSystem ports.FileSystem
	Presenter  ports.Presenter        // optional, can be set later on Notice()
	Store      ports.VersionStore     // optional
	Suppressor ports.ReloadSuppressor // optional
	Reloader   ports.Reloader         // optional

	// SourceURLFor resolves a source URL for plugins registered without one
	SourceURLFor func(name string) string

	SchedulerOptions []SchedulerOption
	Logger           zerolog.Logger
}

// UpdaterService is the update-notification engine. Construct one per
// process at startup and Close it on shutdown.
type UpdaterService struct {
	registry  *registry.PluginRegistry
	notice    *notice.State
	checker   *UpdateChecker
	scheduler *UpdateScheduler
	installer *Installer

	store        ports.VersionStore
	reloader     ports.Reloader
	sourceURLFor func(string) string
	logger       zerolog.Logger

	// applyMu makes each completion's registry+notice edit one step
	applyMu sync.Mutex

	// stored caches the version store; installs made by this process are
	// written through so re-registering never falls back to a stale version
	storedMu sync.Mutex
	stored   map[string]version.SemVer

	ctx    context.Context
	cancel context.CancelFunc
}

var _ ports.Actions = (*UpdaterService)(nil)

// NewUpdaterService wires the registry, notification state, checker,
// scheduler and installer together
func NewUpdaterService(cfg UpdaterConfig) *UpdaterService {
	ctx, cancel := context.WithCancel(context.Background())

	s := &UpdaterService{
		registry:     registry.New(),
		notice:       notice.New(cfg.Presenter),
		store:        cfg.Store,
		reloader:     cfg.Reloader,
		sourceURLFor: cfg.SourceURLFor,
		logger:       cfg.Logger.With().Str("component", "updater").Logger(),
		ctx:          ctx,
		cancel:       cancel,
	}

	s.checker = NewUpdateChecker(cfg.Transport, cfg.Logger)
	s.scheduler = NewUpdateScheduler(s.registry, s.checker, s.applyCheck, cfg.Logger, cfg.SchedulerOptions...)
	s.installer = NewInstaller(InstallerDeps{
		Transport:  cfg.Transport,
		FileSystem: cfg.FileSystem,
		Registry:   s.registry,
		Notice:     s.notice,
		Store:      cfg.Store,
		Suppressor: cfg.Suppressor,
		ApplyLock:  &s.applyMu,
		Logger:     cfg.Logger,
	})

	return s
}

// Register starts tracking a plugin and checks it right away. The first
// registration arms the recurring sweep. Re-registering the same source URL
// updates name and version in place, but never moves the plugin below a
// version that was recorded or installed for it.
func (s *UpdaterService) Register(ctx context.Context, name, sourceURL, currentVersion string) (plugindomain.CheckOutcome, error) {
	if name == "" {
		return plugindomain.CheckOutcome{}, errors.New("plugin name cannot be empty")
	}

	local, err := version.Parse(currentVersion)
	if err != nil {
		return plugindomain.CheckOutcome{}, fmt.Errorf("invalid version for %s: %w", name, err)
	}

	if sourceURL == "" && s.sourceURLFor != nil {
		sourceURL = s.sourceURLFor(name)
	}
	if sourceURL == "" {
		return plugindomain.CheckOutcome{}, fmt.Errorf("no source URL for %s and no default source template configured", name)
	}

	if stored, ok := s.storedVersion(ctx, sourceURL); ok && version.IsNewer(stored, local) {
		local = stored
	}

	s.applyMu.Lock()
	prev, existed := s.registry.Get(sourceURL)
	if existed && version.IsNewer(prev.Version, local) {
		local = prev.Version
	}
	first := s.registry.Register(name, sourceURL, local)
	if existed && prev.Name != name {
		s.notice.Rename(prev.Name, name)
	}
	s.applyMu.Unlock()

	if first {
		s.scheduler.Arm(s.ctx)
	}

	s.logger.Debug().Str("plugin", name).Str("source", sourceURL).Stringer("version", local).Bool("first", first).Msg("plugin registered")

	return s.scheduler.CheckOne(ctx, sourceURL), nil
}

// CheckOne checks a single plugin now
func (s *UpdaterService) CheckOne(ctx context.Context, sourceURL string) plugindomain.CheckOutcome {
	return s.scheduler.CheckOne(ctx, sourceURL)
}

// SweepNow checks every registered plugin now
func (s *UpdaterService) SweepNow(ctx context.Context) {
	s.scheduler.Sweep(ctx)
}

// Sweep checks every registered plugin and returns the outcomes
func (s *UpdaterService) Sweep(ctx context.Context) []plugindomain.CheckOutcome {
	return s.scheduler.Sweep(ctx)
}

// Install replaces the local file of the plugin tracked at sourceURL
func (s *UpdaterService) Install(ctx context.Context, sourceURL string) plugindomain.InstallOutcome {
	entry, ok := s.registry.Get(sourceURL)
	if !ok {
		err := fmt.Errorf("%w: %s", plugindomain.ErrNotRegistered, sourceURL)
		s.notice.ReportError("Unable to install plugin", err)
		return plugindomain.InstallFailed(plugindomain.Entry{SourceURL: sourceURL}, err)
	}
	return s.install(ctx, entry)
}

// InstallByName replaces the local file of the plugin registered as name
func (s *UpdaterService) InstallByName(ctx context.Context, name string) plugindomain.InstallOutcome {
	entry, ok := s.registry.GetByName(name)
	if !ok {
		err := fmt.Errorf("%w: %s", plugindomain.ErrNotRegistered, name)
		s.notice.ReportError(fmt.Sprintf("Unable to get update for %s", name), err)
		return plugindomain.InstallFailed(plugindomain.Entry{Name: name}, err)
	}
	return s.install(ctx, entry)
}

func (s *UpdaterService) install(ctx context.Context, entry plugindomain.Entry) plugindomain.InstallOutcome {
	outcome := s.installer.Install(ctx, entry)
	if outcome.Status == plugindomain.StatusInstalled {
		s.storedMu.Lock()
		if s.stored != nil {
			s.stored[entry.SourceURL] = outcome.Version
		}
		s.storedMu.Unlock()
	}
	return outcome
}

// Reload asks the host to reload so downloaded plugins take effect
func (s *UpdaterService) Reload(ctx context.Context) error {
	if len(s.notice.Downloaded()) == 0 {
		return plugindomain.ErrNothingToReload
	}
	if s.reloader == nil {
		err := errors.New("no reloader configured")
		s.notice.ReportError("Reload failed", err)
		return err
	}

	if err := s.reloader.Reload(ctx); err != nil {
		s.notice.ReportError("Reload failed", err)
		return fmt.Errorf("reload failed: %w", err)
	}

	s.notice.ClearDownloaded()
	s.logger.Info().Msg("host reloaded")
	return nil
}

// Tracked returns every registered plugin in registration order
func (s *UpdaterService) Tracked() []plugindomain.Entry {
	return s.registry.All()
}

// TrackedNames returns the registered plugin names in registration order
func (s *UpdaterService) TrackedNames() []string {
	return s.registry.Names()
}

// Notice returns the current notification snapshot
func (s *UpdaterService) Notice() plugindomain.Notice {
	return s.notice.Snapshot()
}

// NoticeState exposes the notification state, e.g. to attach a presenter
func (s *UpdaterService) NoticeState() *notice.State {
	return s.notice
}

// Scheduler exposes the scheduler
func (s *UpdaterService) Scheduler() *UpdateScheduler {
	return s.scheduler
}

// Close stops the recurring sweep
func (s *UpdaterService) Close() {
	s.cancel()
	s.scheduler.Stop()
}

// applyCheck turns a check outcome into notice edits. The outdated decision
// is re-evaluated against the registry under the lock so a check that
// started before an install cannot re-flag the freshly installed plugin.
func (s *UpdaterService) applyCheck(outcome plugindomain.CheckOutcome) {
	if outcome.Status == plugindomain.StatusCheckFailed {
		s.logger.Warn().
			Err(outcome.Err).
			Str("plugin", outcome.Entry.Name).
			Str("source", outcome.Entry.SourceURL).
			Msg("update check failed")
		return
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	current, ok := s.registry.Get(outcome.Entry.SourceURL)
	if !ok {
		return
	}

	if version.IsNewer(outcome.Remote, current.Version) {
		s.notice.MarkOutdated(current.Name)
	} else {
		s.notice.ClearOutdated(current.Name)
	}
}

// storedVersion loads the version store on first use
func (s *UpdaterService) storedVersion(ctx context.Context, sourceURL string) (version.SemVer, bool) {
	s.storedMu.Lock()
	defer s.storedMu.Unlock()

	if s.stored == nil {
		s.stored = map[string]version.SemVer{}
		if s.store != nil {
			stored, err := s.store.Load(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("failed to load installed versions")
			}
			for url, v := range stored {
				s.stored[url] = v
			}
		}
	}

	v, ok := s.stored[sourceURL]
	return v, ok
}
