package fsinfra

import (
	"context"

	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

// SuppressorProbe reports a reload suppressor when any of the configured
// companion plugin files is installed in the plugins directory.
type SuppressorProbe struct {
	dir   *PluginsDirectory
	files []string
}

var _ ports.ReloadSuppressor = (*SuppressorProbe)(nil)

// NewSuppressorProbe creates a probe looking for files in dir
func NewSuppressorProbe(dir *PluginsDirectory, files []string) *SuppressorProbe {
	return &SuppressorProbe{dir: dir, files: files}
}

// HasReloadSuppressor implements ports.ReloadSuppressor
func (p *SuppressorProbe) HasReloadSuppressor(ctx context.Context) bool {
	for _, name := range p.files {
		if p.dir.Exists(name) {
			return true
		}
	}
	return false
}
