package configinfra

import (
	"context"
	"os"

	configdomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/config"
	configports "github.com/kilometers-ai/plugin-updater/internal/core/ports/config"
)

// EnvPrefix prefixes every environment variable the updater reads
const EnvPrefix = "KMU_"

var envMappings = map[string]string{
	"KMU_PLUGINS_DIR":             "plugins_dir",
	"KMU_DATA_DIR":                "data_dir",
	"KMU_PLUGINS_FILE":            "plugins_file",
	"KMU_CHECK_INTERVAL":          "check_interval",
	"KMU_TIMEOUT":                 "default_timeout",
	"KMU_SWEEP_CONCURRENCY":       "sweep_concurrency",
	"KMU_DEFAULT_SOURCE_TEMPLATE": "default_source_template",
	"KMU_MAX_MANIFEST_BYTES":      "max_manifest_bytes",
	"KMU_RELOAD_SUPPRESSORS":      "reload_suppressors",
	"KMU_RELOAD_COMMAND":          "reload_command",
	"KMU_BRIDGE_LISTEN":           "bridge_listen",
	"KMU_LOG_LEVEL":               "log_level",
	"KMU_DEBUG":                   "debug",
}

type EnvLoader struct {
	lookup func(string) (string, bool)
}

func NewEnvLoader() *EnvLoader { return &EnvLoader{lookup: os.LookupEnv} }

// NewEnvLoaderWithLookup reads variables through lookup instead of the process environment
func NewEnvLoaderWithLookup(lookup func(string) (string, bool)) *EnvLoader {
	return &EnvLoader{lookup: lookup}
}

func (l *EnvLoader) Name() string { return "env" }

// Load builds a snapshot from KMU_* environment variables (priority 2).
// Values stay strings; Config.SetValue converts them.
func (l *EnvLoader) Load(ctx context.Context) (configdomain.Snapshot, error) {
	snap := make(configdomain.Snapshot)
	for key, field := range envMappings {
		if v, ok := l.lookup(key); ok && v != "" {
			snap[field] = configdomain.Entry{Key: field, Value: v, Source: "env", SourcePath: key, Priority: configdomain.PriorityEnv}
		}
	}
	return snap, nil
}

var _ configports.Loader = (*EnvLoader)(nil)
