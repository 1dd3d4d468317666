package configinfra

import (
	"context"
	"fmt"
	"time"

	configdomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/config"
	configports "github.com/kilometers-ai/plugin-updater/internal/core/ports/config"
)

// UnifiedLoader merges every source with precedence
// flags > environment > config file > defaults.
type UnifiedLoader struct {
	loaders []configports.Loader
}

// NewUnifiedLoader creates a loader over the given sources
func NewUnifiedLoader(loaders ...configports.Loader) *UnifiedLoader {
	return &UnifiedLoader{loaders: loaders}
}

// NewDefaultLoader reads configPath and the KMU_* environment
func NewDefaultLoader(configPath string) *UnifiedLoader {
	return NewUnifiedLoader(NewFileLoader(configPath), NewEnvLoader())
}

// Load builds the configuration. overrides carries explicitly set CLI flags
// keyed by config field.
func (l *UnifiedLoader) Load(ctx context.Context, overrides map[string]interface{}) (*configdomain.Config, error) {
	cfg := configdomain.DefaultConfig()

	merged := make(configdomain.Snapshot)
	for _, loader := range l.loaders {
		snap, err := loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s config: %w", loader.Name(), err)
		}
		merged.Merge(snap)
	}

	for field, value := range overrides {
		merged.Merge(configdomain.Snapshot{
			field: {Key: field, Value: value, Source: "cli", SourcePath: "command_line_flag", Priority: configdomain.PriorityFlag},
		})
	}

	if err := cfg.Apply(merged); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.LoadedAt = time.Now()
	return cfg, nil
}
