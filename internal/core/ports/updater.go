package ports

import (
	"context"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
)

// Transport fetches remote manifests
type Transport interface {
	// FetchText returns the body at url. Failures are *plugindomain.TransportError.
	FetchText(ctx context.Context, url string) (string, error)
}

// FileSystem is the local plugin storage
type FileSystem interface {
	// ResolvePluginsDirectory returns the directory installed plugins live in
	ResolvePluginsDirectory() (string, error)

	// WriteFile replaces path with contents. Failures are *plugindomain.IOError.
	WriteFile(path string, contents []byte) error
}

// Presenter renders the notice surface in the host UI. Implementations must
// not call back into the updater synchronously from these methods.
type Presenter interface {
	// RenderNotice shows or refreshes the notice surface
	RenderNotice(notice plugindomain.Notice)

	// DismissNotice removes the notice surface
	DismissNotice()

	// Toast shows a short informational message
	Toast(message string)

	// ReportError surfaces a failure the user should know about
	ReportError(message string, err error)
}

// ReloadSuppressor answers whether a companion capability that reloads
// plugins on its own is installed.
type ReloadSuppressor interface {
	HasReloadSuppressor(ctx context.Context) bool
}

// Reloader performs the host reload behind the reload affordance
type Reloader interface {
	Reload(ctx context.Context) error
}

// VersionStore persists installed versions across runs
type VersionStore interface {
	// Load returns the recorded version per source URL
	Load(ctx context.Context) (map[string]version.SemVer, error)

	// Record stores the installed version for a source URL
	Record(ctx context.Context, sourceURL string, v version.SemVer) error
}

// Actions is what presenters and host bridges may invoke on the updater
type Actions interface {
	InstallByName(ctx context.Context, name string) plugindomain.InstallOutcome
	Reload(ctx context.Context) error
	SweepNow(ctx context.Context)
	Notice() plugindomain.Notice
	TrackedNames() []string
}
