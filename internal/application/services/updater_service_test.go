package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
)

const (
	fooURL = "https://raw.example.com/Plugins/Foo/Foo.plugin.js"
	barURL = "https://raw.example.com/Plugins/Bar/Bar.plugin.js"
	bazURL = "https://raw.example.com/Plugins/Baz/Baz.plugin.js"
)

type testEnv struct {
	svc       *UpdaterService
	transport *fakeTransport
	fs        *memFS
	presenter *recordingPresenter
	tickers   *tickerFactory
}

func newTestEnv(t *testing.T, mutate func(*UpdaterConfig)) *testEnv {
	t.Helper()

	env := &testEnv{
		transport: newFakeTransport(),
		fs:        newMemFS(),
		presenter: &recordingPresenter{},
		tickers:   &tickerFactory{},
	}

	cfg := UpdaterConfig{
		Transport:        env.transport,
		FileSystem:       env.fs,
		Presenter:        env.presenter,
		SchedulerOptions: []SchedulerOption{WithTickerFunc(env.tickers.New), WithInterval(time.Hour)},
		Logger:           zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	env.svc = NewUpdaterService(cfg)
	t.Cleanup(env.svc.Close)
	return env
}

func manifest(v string) string {
	return fmt.Sprintf("/**\n * @name Plugin\n */\nmodule.exports = class { getVersion() { return \"%s\"; } };\n", v)
}

func TestUpdaterService_Register_ReportsOutdated(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.2.0"))

	outcome, err := env.svc.Register(context.Background(), "Foo", fooURL, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, plugindomain.StatusOutdated, outcome.Status)
	assert.Equal(t, version.MustParse("1.2.0"), outcome.Remote)
	assert.Equal(t, []string{"Foo"}, env.svc.Notice().Outdated)
	assert.Empty(t, env.svc.Notice().Downloaded)

	entry, ok := env.svc.registry.Get(fooURL)
	require.True(t, ok)
	assert.Equal(t, version.MustParse("1.0.0"), entry.Version, "checks never change the registry version")
}

func TestUpdaterService_RepeatedChecks_KeepReportingRemote(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.2.0"))

	_, err := env.svc.Register(context.Background(), "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	renders := env.presenter.calls()

	for i := 0; i < 3; i++ {
		o := env.svc.CheckOne(context.Background(), fooURL)
		assert.Equal(t, plugindomain.StatusOutdated, o.Status)
		assert.Equal(t, version.MustParse("1.2.0"), o.Remote)
	}
	assert.Equal(t, renders, env.presenter.calls(), "idempotent edits must not re-render")
}

func TestUpdaterService_RegisterInstall_RoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.2.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)

	outcome := env.svc.Install(ctx, fooURL)
	require.Equal(t, plugindomain.StatusInstalled, outcome.Status, "err: %v", outcome.Err)
	assert.Equal(t, version.MustParse("1.2.0"), outcome.Version)
	assert.Equal(t, "/plugins/Foo.plugin.js", outcome.Path)

	body, ok := env.fs.read("/plugins/Foo.plugin.js")
	require.True(t, ok)
	assert.Contains(t, body, `"1.2.0"`)

	entry, _ := env.svc.registry.Get(fooURL)
	assert.Equal(t, version.MustParse("1.2.0"), entry.Version)

	n := env.svc.Notice()
	assert.Empty(t, n.Outdated)
	assert.Equal(t, []string{"Foo"}, n.Downloaded)
	assert.True(t, n.ReloadVisible())
	assert.Equal(t, plugindomain.ReloadMessage, n.Message())

	assert.Equal(t, []string{"Foo 1.0.0 has been replaced by Foo 1.2.0"}, env.presenter.toasts)

	// a later check sees the installed version and leaves the notice alone
	o := env.svc.CheckOne(ctx, fooURL)
	assert.Equal(t, plugindomain.StatusUpToDate, o.Status)
	assert.Equal(t, []string{"Foo"}, env.svc.Notice().Downloaded)
}

func TestUpdaterService_TransportError_NoStateChange(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.2.0"))
	env.transport.fail(barURL, errConnRefused)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	before := env.svc.Notice()
	calls := env.presenter.calls()

	outcome, err := env.svc.Register(ctx, "Bar", barURL, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, plugindomain.StatusCheckFailed, outcome.Status)
	var terr *plugindomain.TransportError
	assert.True(t, errors.As(outcome.Err, &terr))
	assert.Equal(t, before, env.svc.Notice())
	assert.Equal(t, calls, env.presenter.calls())
	assert.Empty(t, env.presenter.errors, "check failures are silent")
}

func TestUpdaterService_TransportError_KeepsExistingNotice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.2.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)

	env.transport.fail(fooURL, errConnRefused)
	o := env.svc.CheckOne(ctx, fooURL)
	assert.Equal(t, plugindomain.StatusCheckFailed, o.Status)
	assert.Equal(t, []string{"Foo"}, env.svc.Notice().Outdated, "a failed check is not 'up to date'")
}

func TestUpdaterService_MissingVersionLiteral_ParseError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(bazURL, "module.exports = class Baz {};")

	outcome, err := env.svc.Register(context.Background(), "Baz", bazURL, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, plugindomain.StatusCheckFailed, outcome.Status)
	var perr *version.ParseError
	assert.True(t, errors.As(outcome.Err, &perr))
	assert.True(t, env.svc.NoticeState().IsEmpty())
	assert.Equal(t, 0, env.presenter.calls())
}

func TestUpdaterService_UpToDate_ClearsOutdated(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.2.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)

	// upstream rolled back
	env.transport.set(fooURL, manifest("1.0.0"))
	o := env.svc.CheckOne(ctx, fooURL)

	assert.Equal(t, plugindomain.StatusUpToDate, o.Status)
	assert.True(t, env.svc.NoticeState().IsEmpty())
	assert.Equal(t, 1, env.presenter.dismisss)
}

func TestUpdaterService_Reregister_ArmsSweepOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.0.0"))
	env.transport.set(barURL, manifest("1.0.0"))
	ctx := context.Background()

	assert.False(t, env.svc.Scheduler().Armed())

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	_, err = env.svc.Register(ctx, "Foo", fooURL, "1.1.0")
	require.NoError(t, err)
	_, err = env.svc.Register(ctx, "Bar", barURL, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, 1, env.tickers.count(), "sweep armed exactly once")
	assert.Equal(t, []time.Duration{time.Hour}, env.tickers.periods)

	tracked := env.svc.Tracked()
	require.Len(t, tracked, 2)
	assert.Equal(t, version.MustParse("1.1.0"), tracked[0].Version)
}

func TestUpdaterService_Reregister_RenameClearsOldName(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("2.0.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	_, err = env.svc.Register(ctx, "FooPlus", fooURL, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, []string{"FooPlus"}, env.svc.Notice().Outdated)
}

func TestUpdaterService_TrackedNames(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.0.0"))
	env.transport.set(barURL, manifest("1.0.0"))
	ctx := context.Background()

	assert.Empty(t, env.svc.TrackedNames())

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	_, err = env.svc.Register(ctx, "Bar", barURL, "1.0.0")
	require.NoError(t, err)
	_, err = env.svc.Register(ctx, "FooPlus", fooURL, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, []string{"FooPlus", "Bar"}, env.svc.TrackedNames())
}

func TestUpdaterService_Reregister_RenameKeepsDownloaded(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.2.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	require.Equal(t, plugindomain.StatusInstalled, env.svc.Install(ctx, fooURL).Status)

	_, err = env.svc.Register(ctx, "FooPlus", fooURL, "1.0.0")
	require.NoError(t, err)

	n := env.svc.Notice()
	assert.Empty(t, n.Outdated)
	assert.Equal(t, []string{"FooPlus"}, n.Downloaded)
}

func TestUpdaterService_Reregister_AfterInstall_KeepsInstalledVersion(t *testing.T) {
	store := &MockVersionStore{}
	store.On("Load", mock.Anything).Return(map[string]version.SemVer{}, nil).Once()
	store.On("Record", mock.Anything, fooURL, version.MustParse("1.2.0")).Return(nil).Once()

	env := newTestEnv(t, func(cfg *UpdaterConfig) { cfg.Store = store })
	env.transport.set(fooURL, manifest("1.2.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	require.Equal(t, plugindomain.StatusInstalled, env.svc.Install(ctx, fooURL).Status)

	// plugins file edited in watch mode: same plugin, declared version unchanged
	outcome, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, plugindomain.StatusUpToDate, outcome.Status)

	entry, _ := env.svc.registry.Get(fooURL)
	assert.Equal(t, version.MustParse("1.2.0"), entry.Version)

	n := env.svc.Notice()
	assert.Empty(t, n.Outdated)
	assert.Equal(t, []string{"Foo"}, n.Downloaded)

	v, ok := env.svc.storedVersion(ctx, fooURL)
	require.True(t, ok)
	assert.Equal(t, version.MustParse("1.2.0"), v)
	store.AssertExpectations(t)
}

func TestUpdaterService_Reregister_LowerVersionIgnored(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("2.0.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.5.0")
	require.NoError(t, err)
	_, err = env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, version.MustParse("1.5.0"), env.svc.Tracked()[0].Version)
	assert.Equal(t, []string{"Foo"}, env.svc.Notice().Outdated)
}

func TestUpdaterService_RecurringSweep_ChecksAll(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.0.0"))
	env.transport.set(barURL, manifest("1.0.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	_, err = env.svc.Register(ctx, "Bar", barURL, "1.0.0")
	require.NoError(t, err)
	assert.True(t, env.svc.NoticeState().IsEmpty())

	env.transport.set(fooURL, manifest("1.0.1"))
	env.transport.set(barURL, manifest("3.0.0"))
	env.tickers.fire()

	assert.Eventually(t, func() bool {
		return len(env.svc.Notice().Outdated) == 2
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"Foo", "Bar"}, env.svc.Notice().Outdated)
}

func TestUpdaterService_Sweep_FailureDoesNotSkipOthers(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		url := fmt.Sprintf("https://example.com/p%d.plugin.js", i)
		env.transport.set(url, manifest("1.0.0"))
		_, err := env.svc.Register(ctx, fmt.Sprintf("p%d", i), url, "1.0.0")
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		url := fmt.Sprintf("https://example.com/p%d.plugin.js", i)
		if i%2 == 0 {
			env.transport.fail(url, errConnRefused)
		} else {
			env.transport.set(url, manifest("1.1.0"))
		}
	}

	outcomes := env.svc.Sweep(ctx)
	require.Len(t, outcomes, 10)

	var failed int
	for _, o := range outcomes {
		if o.Status == plugindomain.StatusCheckFailed {
			failed++
		}
	}
	assert.Equal(t, 5, failed)
	assert.ElementsMatch(t, []string{"p1", "p3", "p5", "p7", "p9"}, env.svc.Notice().Outdated)
}

func TestUpdaterService_Install_ReloadSuppressed(t *testing.T) {
	suppressor := &MockSuppressor{}
	suppressor.On("HasReloadSuppressor", mock.Anything).Return(true)

	env := newTestEnv(t, func(cfg *UpdaterConfig) { cfg.Suppressor = suppressor })
	env.transport.set(fooURL, manifest("1.2.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)

	outcome := env.svc.InstallByName(ctx, "Foo")
	require.Equal(t, plugindomain.StatusInstalled, outcome.Status)

	n := env.svc.Notice()
	assert.Empty(t, n.Outdated)
	assert.Empty(t, n.Downloaded, "no reload affordance when a suppressor is present")
	assert.Equal(t, 1, env.presenter.dismisss)
	suppressor.AssertExpectations(t)
}

func TestUpdaterService_Install_WriteFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.2.0"))
	env.fs.writeErr = errors.New("read-only file system")
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)

	outcome := env.svc.Install(ctx, fooURL)
	assert.Equal(t, plugindomain.StatusInstallFailed, outcome.Status)
	var ioErr *plugindomain.IOError
	assert.True(t, errors.As(outcome.Err, &ioErr))

	entry, _ := env.svc.registry.Get(fooURL)
	assert.Equal(t, version.MustParse("1.0.0"), entry.Version)
	assert.Equal(t, []string{"Foo"}, env.svc.Notice().Outdated)
	assert.Equal(t, []string{"Unable to get update for Foo"}, env.presenter.errors)
}

func TestUpdaterService_Install_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(env *testEnv)
		url     string
		isError func(error) bool
	}{
		{
			name:  "TransportError",
			setup: func(env *testEnv) { env.transport.fail(fooURL, errConnRefused) },
			url:   fooURL,
			isError: func(err error) bool {
				var terr *plugindomain.TransportError
				return errors.As(err, &terr)
			},
		},
		{
			name:  "ParseError",
			setup: func(env *testEnv) { env.transport.set(fooURL, "no version here") },
			url:   fooURL,
			isError: func(err error) bool {
				var perr *version.ParseError
				return errors.As(err, &perr)
			},
		},
		{
			name:    "NotRegistered",
			setup:   func(env *testEnv) {},
			url:     barURL,
			isError: func(err error) bool { return errors.Is(err, plugindomain.ErrNotRegistered) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.transport.set(fooURL, manifest("1.2.0"))
			_, err := env.svc.Register(context.Background(), "Foo", fooURL, "1.0.0")
			require.NoError(t, err)

			tt.setup(env)
			outcome := env.svc.Install(context.Background(), tt.url)

			assert.Equal(t, plugindomain.StatusInstallFailed, outcome.Status)
			assert.True(t, tt.isError(outcome.Err), "unexpected error: %v", outcome.Err)
			assert.Empty(t, env.fs.files)
			assert.Len(t, env.presenter.errors, 1)
		})
	}
}

func TestUpdaterService_StaleCheck_DoesNotReflagInstalled(t *testing.T) {
	env := newTestEnv(t, nil)
	env.transport.set(fooURL, manifest("1.2.0"))
	ctx := context.Background()

	first, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	env.svc.Install(ctx, fooURL)

	// outcome computed against 1.0.0 arrives after the install committed
	env.svc.applyCheck(first)

	n := env.svc.Notice()
	assert.Empty(t, n.Outdated)
	assert.Equal(t, []string{"Foo"}, n.Downloaded)
}

func TestUpdaterService_Reload(t *testing.T) {
	reloader := &MockReloader{}
	env := newTestEnv(t, func(cfg *UpdaterConfig) { cfg.Reloader = reloader })
	env.transport.set(fooURL, manifest("1.2.0"))
	ctx := context.Background()

	assert.ErrorIs(t, env.svc.Reload(ctx), plugindomain.ErrNothingToReload)

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	env.svc.Install(ctx, fooURL)

	reloader.On("Reload", mock.Anything).Return(errors.New("host busy")).Once()
	assert.Error(t, env.svc.Reload(ctx))
	assert.Equal(t, []string{"Foo"}, env.svc.Notice().Downloaded)

	reloader.On("Reload", mock.Anything).Return(nil).Once()
	require.NoError(t, env.svc.Reload(ctx))
	assert.True(t, env.svc.NoticeState().IsEmpty())
	reloader.AssertExpectations(t)
}

func TestUpdaterService_Register_UsesStoredVersion(t *testing.T) {
	store := &MockVersionStore{}
	store.On("Load", mock.Anything).Return(map[string]version.SemVer{fooURL: version.MustParse("1.2.0")}, nil).Once()

	env := newTestEnv(t, func(cfg *UpdaterConfig) { cfg.Store = store })
	env.transport.set(fooURL, manifest("1.2.0"))

	outcome, err := env.svc.Register(context.Background(), "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, plugindomain.StatusUpToDate, outcome.Status)
	assert.Equal(t, version.MustParse("1.2.0"), env.svc.Tracked()[0].Version)
	store.AssertExpectations(t)
}

func TestUpdaterService_Install_RecordsVersion(t *testing.T) {
	store := &MockVersionStore{}
	store.On("Load", mock.Anything).Return(map[string]version.SemVer{}, nil)
	store.On("Record", mock.Anything, fooURL, version.MustParse("1.2.0")).Return(nil).Once()

	env := newTestEnv(t, func(cfg *UpdaterConfig) { cfg.Store = store })
	env.transport.set(fooURL, manifest("1.2.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	env.svc.Install(ctx, fooURL)

	store.AssertExpectations(t)
}

func TestUpdaterService_Register_Validation(t *testing.T) {
	env := newTestEnv(t, func(cfg *UpdaterConfig) {
		cfg.SourceURLFor = func(name string) string {
			if name == "Templated" {
				return "https://example.com/Templated/Templated.plugin.js"
			}
			return ""
		}
	})
	env.transport.set("https://example.com/Templated/Templated.plugin.js", manifest("0.1.0"))
	ctx := context.Background()

	_, err := env.svc.Register(ctx, "Foo", fooURL, "latest")
	var perr *version.ParseError
	assert.True(t, errors.As(err, &perr))

	_, err = env.svc.Register(ctx, "", fooURL, "1.0.0")
	assert.Error(t, err)

	_, err = env.svc.Register(ctx, "Unknown", "", "1.0.0")
	assert.Error(t, err)

	o, err := env.svc.Register(ctx, "Templated", "", "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, plugindomain.StatusUpToDate, o.Status)
	assert.Equal(t, "https://example.com/Templated/Templated.plugin.js", env.svc.Tracked()[0].SourceURL)
}

func TestUpdaterService_CheckOne_Unregistered(t *testing.T) {
	env := newTestEnv(t, nil)
	o := env.svc.CheckOne(context.Background(), "https://nowhere/x.js")
	assert.Equal(t, plugindomain.StatusCheckFailed, o.Status)
	assert.ErrorIs(t, o.Err, plugindomain.ErrNotRegistered)
}

func TestUpdaterService_Close_PreventsRearm(t *testing.T) {
	env := newTestEnv(t, nil)
	env.svc.Close()
	env.transport.set(fooURL, manifest("1.0.0"))

	_, err := env.svc.Register(context.Background(), "Foo", fooURL, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 0, env.tickers.count())
}

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
		wantErr  bool
	}{
		{url: "https://raw.githubusercontent.com/a/b/master/Plugins/Foo/Foo.plugin.js", expected: "Foo.plugin.js"},
		{url: "https://example.com/dl/Foo.plugin.js?token=abc#frag", expected: "Foo.plugin.js"},
		{url: "https://example.com/dir/", expected: "dir"},
		{url: "https://example.com", wantErr: true},
		{url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			name, err := FileNameFromURL(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, plugindomain.ErrInvalidFilename)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, name)
		})
	}
}
