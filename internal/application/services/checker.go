package services

import (
	"context"

	"github.com/rs/zerolog"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

// UpdateChecker compares a plugin's remote manifest version with the
// locally recorded one. It never mutates the registry.
type UpdateChecker struct {
	transport ports.Transport
	logger    zerolog.Logger
}

// NewUpdateChecker creates a checker fetching through transport
func NewUpdateChecker(transport ports.Transport, logger zerolog.Logger) *UpdateChecker {
	return &UpdateChecker{
		transport: transport,
		logger:    logger.With().Str("component", "checker").Logger(),
	}
}

// Check fetches the manifest for entry and reports the outcome. Every
// failure is returned as a StatusCheckFailed outcome.
func (c *UpdateChecker) Check(ctx context.Context, entry plugindomain.Entry) plugindomain.CheckOutcome {
	log := c.logger.With().
		Str("plugin", entry.Name).
		Str("source", entry.SourceURL).
		Stringer("local", entry.Version).
		Logger()

	body, err := c.transport.FetchText(ctx, entry.SourceURL)
	if err != nil {
		log.Debug().Err(err).Msg("manifest fetch failed")
		return plugindomain.CheckFailed(entry, err)
	}

	remote, err := version.Extract(body)
	if err != nil {
		log.Debug().Err(err).Msg("manifest has no version literal")
		return plugindomain.CheckFailed(entry, err)
	}

	if version.IsNewer(remote, entry.Version) {
		log.Debug().Stringer("remote", remote).Msg("update available")
		return plugindomain.Outdated(entry, remote)
	}

	log.Debug().Stringer("remote", remote).Msg("up to date")
	return plugindomain.UpToDate(entry, remote)
}
