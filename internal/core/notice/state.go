// Package notice maintains which plugins are outdated and which have been
// downloaded but not yet loaded by the host.
//
// The state is edited incrementally by plugin name. Every edit that changes
// the sets produces exactly one presenter call: RenderNotice while anything
// is left to show, DismissNotice on the transition to empty. Edits that
// change nothing produce no call, so repeated checks do not make the host UI
// flicker.
package notice

import (
	"slices"
	"sync"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

// State is the notification state. The zero value is not usable; call New.
type State struct {
	// emitMu serializes edit+emit so presenters see transitions in order.
	emitMu    sync.Mutex
	presenter ports.Presenter

	mu         sync.Mutex
	outdated   []string
	downloaded []string
}

// New creates an empty state that reports to presenter. presenter may be nil.
func New(presenter ports.Presenter) *State {
	return &State{presenter: presenter}
}

// SetPresenter swaps the presenter receiving transitions
func (s *State) SetPresenter(p ports.Presenter) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.presenter = p
}

// MarkOutdated adds name to the outdated set. A name waiting for reload moves
// back to outdated since a newer release appeared.
func (s *State) MarkOutdated(name string) {
	s.edit(func() bool {
		if slices.Contains(s.outdated, name) {
			return false
		}
		s.downloaded = remove(s.downloaded, name)
		s.outdated = append(s.outdated, name)
		return true
	})
}

// ClearOutdated removes name from the outdated set
func (s *State) ClearOutdated(name string) {
	s.edit(func() bool {
		if !slices.Contains(s.outdated, name) {
			return false
		}
		s.outdated = remove(s.outdated, name)
		return true
	})
}

// MarkDownloaded moves name from outdated into downloaded
func (s *State) MarkDownloaded(name string) {
	s.edit(func() bool {
		wasOutdated := slices.Contains(s.outdated, name)
		if !wasOutdated && slices.Contains(s.downloaded, name) {
			return false
		}
		s.outdated = remove(s.outdated, name)
		if !slices.Contains(s.downloaded, name) {
			s.downloaded = append(s.downloaded, name)
		}
		return true
	})
}

// Rename moves oldName's place in either set over to newName, for a plugin
// re-registered under another name
func (s *State) Rename(oldName, newName string) {
	if oldName == newName {
		return
	}
	s.edit(func() bool {
		a := rename(&s.outdated, oldName, newName)
		b := rename(&s.downloaded, oldName, newName)
		return a || b
	})
}

// ClearDownloaded empties the downloaded set after the host reloaded
func (s *State) ClearDownloaded() {
	s.edit(func() bool {
		if len(s.downloaded) == 0 {
			return false
		}
		s.downloaded = nil
		return true
	})
}

// Toast forwards an informational message to the presenter
func (s *State) Toast(message string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.presenter != nil {
		s.presenter.Toast(message)
	}
}

// ReportError forwards a user-visible failure to the presenter
func (s *State) ReportError(message string, err error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.presenter != nil {
		s.presenter.ReportError(message, err)
	}
}

// IsEmpty reports whether nothing is outdated or waiting for reload
func (s *State) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outdated) == 0 && len(s.downloaded) == 0
}

// Outdated returns the outdated names in first-seen order
func (s *State) Outdated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.outdated)
}

// Downloaded returns the names waiting for reload
func (s *State) Downloaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.downloaded)
}

// Snapshot returns both sets
func (s *State) Snapshot() plugindomain.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() plugindomain.Notice {
	return plugindomain.Notice{
		Outdated:   append([]string{}, s.outdated...),
		Downloaded: append([]string{}, s.downloaded...),
	}
}

func (s *State) edit(fn func() bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	wasVisible := len(s.outdated) > 0 || len(s.downloaded) > 0
	changed := fn()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if !changed || s.presenter == nil {
		return
	}

	switch {
	case snap.Visible():
		s.presenter.RenderNotice(snap)
	case wasVisible:
		s.presenter.DismissNotice()
	}
}

func remove(names []string, name string) []string {
	i := slices.Index(names, name)
	if i < 0 {
		return names
	}
	return slices.Delete(names, i, i+1)
}

func rename(names *[]string, oldName, newName string) bool {
	i := slices.Index(*names, oldName)
	if i < 0 {
		return false
	}
	if slices.Contains(*names, newName) {
		*names = slices.Delete(*names, i, i+1)
	} else {
		(*names)[i] = newName
	}
	return true
}
