package services

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
	"github.com/kilometers-ai/plugin-updater/internal/core/notice"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
	"github.com/kilometers-ai/plugin-updater/internal/core/registry"
)

// InstallerDeps are the collaborators of an Installer
type InstallerDeps struct {
	Transport  ports.Transport
	FileSystem ports.FileSystem
	Registry   *registry.PluginRegistry
	Notice     *notice.State
	Store      ports.VersionStore     // optional
	Suppressor ports.ReloadSuppressor // optional
	// ApplyLock serializes registry and notice edits with check outcomes
	ApplyLock sync.Locker
	Logger    zerolog.Logger
}

// Installer downloads a plugin's manifest body and replaces its local file
type Installer struct {
	deps   InstallerDeps
	logger zerolog.Logger
}

// NewInstaller creates an installer
func NewInstaller(deps InstallerDeps) *Installer {
	if deps.ApplyLock == nil {
		deps.ApplyLock = &sync.Mutex{}
	}
	return &Installer{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "installer").Logger(),
	}
}

// Install fetches the latest body for entry and writes it over the local
// plugin file. It never reloads the host; on success the plugin is marked
// downloaded unless a reload suppressor is installed.
func (i *Installer) Install(ctx context.Context, entry plugindomain.Entry) plugindomain.InstallOutcome {
	body, err := i.deps.Transport.FetchText(ctx, entry.SourceURL)
	if err != nil {
		return i.fail(entry, err)
	}

	remote, err := version.Extract(body)
	if err != nil {
		return i.fail(entry, err)
	}

	filename, err := FileNameFromURL(entry.SourceURL)
	if err != nil {
		return i.fail(entry, err)
	}

	dir, err := i.deps.FileSystem.ResolvePluginsDirectory()
	if err != nil {
		return i.fail(entry, &plugindomain.IOError{Path: filename, Err: err})
	}

	target := filepath.Join(dir, filename)
	if err := i.deps.FileSystem.WriteFile(target, []byte(body)); err != nil {
		return i.fail(entry, err)
	}

	suppressed := i.deps.Suppressor != nil && i.deps.Suppressor.HasReloadSuppressor(ctx)

	i.deps.ApplyLock.Lock()
	if err := i.deps.Registry.SetVersion(entry.SourceURL, remote); err != nil {
		i.deps.ApplyLock.Unlock()
		return i.fail(entry, err)
	}
	if suppressed {
		i.deps.Notice.ClearOutdated(entry.Name)
	} else {
		i.deps.Notice.MarkDownloaded(entry.Name)
	}
	i.deps.ApplyLock.Unlock()

	if i.deps.Store != nil {
		if err := i.deps.Store.Record(ctx, entry.SourceURL, remote); err != nil {
			i.logger.Warn().Err(err).Str("plugin", entry.Name).Msg("failed to persist installed version")
		}
	}

	outcome := plugindomain.Installed(entry, remote, target)
	i.deps.Notice.Toast(outcome.ReplacedMessage())
	i.logger.Info().
		Str("plugin", entry.Name).
		Stringer("from", entry.Version).
		Stringer("to", remote).
		Str("path", target).
		Bool("reload_suppressed", suppressed).
		Msg("plugin replaced")

	return outcome
}

func (i *Installer) fail(entry plugindomain.Entry, err error) plugindomain.InstallOutcome {
	i.logger.Warn().Err(err).Str("plugin", entry.Name).Msg("install failed")
	i.deps.Notice.ReportError(fmt.Sprintf("Unable to get update for %s", entry.Name), err)
	return plugindomain.InstallFailed(entry, err)
}

// FileNameFromURL returns the last path segment of a source URL
func FileNameFromURL(sourceURL string) (string, error) {
	p := sourceURL
	if u, err := url.Parse(sourceURL); err == nil {
		p = u.Path
	}

	name := path.Base(strings.TrimRight(p, "/"))
	switch name {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %s", plugindomain.ErrInvalidFilename, sourceURL)
	}
	return name, nil
}
