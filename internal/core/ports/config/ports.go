package configports

import (
	"context"

	configdomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/config"
)

// Loader produces a configuration snapshot from one source
type Loader interface {
	Load(ctx context.Context) (configdomain.Snapshot, error)
	Name() string
}
