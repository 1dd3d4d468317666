// Package registry holds the table of tracked plugins keyed by source URL.
package registry

import (
	"fmt"
	"sync"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
)

// PluginRegistry tracks plugins in insertion order. Entries are never removed.
type PluginRegistry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*plugindomain.Entry
}

// New creates an empty registry
func New() *PluginRegistry {
	return &PluginRegistry{
		entries: make(map[string]*plugindomain.Entry),
	}
}

// Register inserts or overwrites the entry for sourceURL. Re-registering keeps
// the original position. first is true only for the first entry ever added.
func (r *PluginRegistry) Register(name, sourceURL string, current version.SemVer) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[sourceURL]; ok {
		e.Name = name
		e.Version = current
		return false
	}

	r.entries[sourceURL] = &plugindomain.Entry{Name: name, SourceURL: sourceURL, Version: current}
	r.order = append(r.order, sourceURL)
	return len(r.order) == 1
}

// Get returns the entry for sourceURL
func (r *PluginRegistry) Get(sourceURL string) (plugindomain.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[sourceURL]
	if !ok {
		return plugindomain.Entry{}, false
	}
	return *e, true
}

// GetByName returns the first entry registered under name
func (r *PluginRegistry) GetByName(name string) (plugindomain.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, url := range r.order {
		if e := r.entries[url]; e.Name == name {
			return *e, true
		}
	}
	return plugindomain.Entry{}, false
}

// All returns copies of every entry in insertion order
func (r *PluginRegistry) All() []plugindomain.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]plugindomain.Entry, 0, len(r.order))
	for _, url := range r.order {
		out = append(out, *r.entries[url])
	}
	return out
}

// Names returns the tracked plugin names in insertion order
func (r *PluginRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, url := range r.order {
		names = append(names, r.entries[url].Name)
	}
	return names
}

// SetVersion records a newly installed version
func (r *PluginRegistry) SetVersion(sourceURL string, v version.SemVer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sourceURL]
	if !ok {
		return fmt.Errorf("%w: %s", plugindomain.ErrNotRegistered, sourceURL)
	}
	e.Version = v
	return nil
}
