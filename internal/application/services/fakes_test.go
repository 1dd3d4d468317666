package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
)

// fakeTransport serves manifest bodies by URL
type fakeTransport struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		bodies: map[string]string{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeTransport) set(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
	delete(f.errs, url)
}

func (f *fakeTransport) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = &plugindomain.TransportError{URL: url, Err: err}
}

func (f *fakeTransport) FetchText(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	body, ok := f.bodies[url]
	if !ok {
		return "", &plugindomain.TransportError{URL: url, StatusCode: 404}
	}
	return body, nil
}

// memFS is an in-memory plugins directory
type memFS struct {
	mu       sync.Mutex
	dir      string
	files    map[string][]byte
	writeErr error
}

func newMemFS() *memFS {
	return &memFS{dir: "/plugins", files: map[string][]byte{}}
}

func (m *memFS) ResolvePluginsDirectory() (string, error) { return m.dir, nil }

func (m *memFS) WriteFile(path string, contents []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return &plugindomain.IOError{Path: path, Err: m.writeErr}
	}
	m.files[path] = append([]byte(nil), contents...)
	return nil
}

func (m *memFS) read(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	return string(b), ok
}

// recordingPresenter captures presenter traffic
type recordingPresenter struct {
	mu       sync.Mutex
	renders  []plugindomain.Notice
	dismisss int
	toasts   []string
	errors   []string
}

func (p *recordingPresenter) RenderNotice(n plugindomain.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renders = append(p.renders, n)
}

func (p *recordingPresenter) DismissNotice() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismisss++
}

func (p *recordingPresenter) Toast(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toasts = append(p.toasts, message)
}

func (p *recordingPresenter) ReportError(message string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, message)
}

func (p *recordingPresenter) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.renders) + p.dismisss
}

type MockSuppressor struct {
	mock.Mock
}

func (m *MockSuppressor) HasReloadSuppressor(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

type MockReloader struct {
	mock.Mock
}

func (m *MockReloader) Reload(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockVersionStore struct {
	mock.Mock
}

func (m *MockVersionStore) Load(ctx context.Context) (map[string]version.SemVer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]version.SemVer), args.Error(1)
}

func (m *MockVersionStore) Record(ctx context.Context, sourceURL string, v version.SemVer) error {
	return m.Called(ctx, sourceURL, v).Error(0)
}

// manualTicker is fired by the test
type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

// tickerFactory counts how many tickers the scheduler created
type tickerFactory struct {
	mu      sync.Mutex
	created []*manualTicker
	periods []time.Duration
}

func (f *tickerFactory) New(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	f.created = append(f.created, t)
	f.periods = append(f.periods, d)
	return t
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *tickerFactory) fire() {
	f.mu.Lock()
	t := f.created[len(f.created)-1]
	f.mu.Unlock()
	t.ch <- time.Now()
}

var errConnRefused = errors.New("connection refused")
