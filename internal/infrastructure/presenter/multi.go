package presenter

import (
	"sync"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

// Multi fans every presenter call out to a set of presenters in order
type Multi struct {
	mu         sync.RWMutex
	presenters []ports.Presenter
}

var _ ports.Presenter = (*Multi)(nil)

// NewMulti creates a fan-out presenter. nil entries are skipped.
func NewMulti(presenters ...ports.Presenter) *Multi {
	m := &Multi{}
	for _, p := range presenters {
		m.Add(p)
	}
	return m
}

// Add attaches another presenter
func (m *Multi) Add(p ports.Presenter) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.presenters = append(m.presenters, p)
	m.mu.Unlock()
}

// Len returns the number of attached presenters
func (m *Multi) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.presenters)
}

func (m *Multi) each(fn func(ports.Presenter)) {
	m.mu.RLock()
	ps := append([]ports.Presenter(nil), m.presenters...)
	m.mu.RUnlock()
	for _, p := range ps {
		fn(p)
	}
}

func (m *Multi) RenderNotice(n plugindomain.Notice) {
	m.each(func(p ports.Presenter) { p.RenderNotice(n) })
}

func (m *Multi) DismissNotice() {
	m.each(func(p ports.Presenter) { p.DismissNotice() })
}

func (m *Multi) Toast(message string) {
	m.each(func(p ports.Presenter) { p.Toast(message) })
}

func (m *Multi) ReportError(message string, err error) {
	m.each(func(p ports.Presenter) { p.ReportError(message, err) })
}
