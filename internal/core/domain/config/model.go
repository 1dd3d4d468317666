package configdomain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Priorities, lower wins.
const (
	PriorityFlag    = 1
	PriorityEnv     = 2
	PriorityFile    = 3
	PriorityDefault = 4
)

// MinCheckInterval is the shortest accepted sweep period
const MinCheckInterval = time.Minute

// Entry represents a single configuration value with provenance and priority.
type Entry struct {
	Key        string
	Value      interface{}
	Source     string
	SourcePath string
	Priority   int
}

// Snapshot is a collection of config entries keyed by field name.
type Snapshot map[string]Entry

// Merge merges another snapshot into this one respecting priority
// (lower number indicates higher priority).
func (s Snapshot) Merge(other Snapshot) {
	for k, e := range other {
		if existing, ok := s[k]; !ok || e.Priority <= existing.Priority {
			s[k] = e
		}
	}
}

// Config is the complete updater configuration
type Config struct {
	// Filesystem
	PluginsDir  string `json:"plugins_dir" yaml:"plugins_dir" toml:"plugins_dir"`
	DataDir     string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	PluginsFile string `json:"plugins_file" yaml:"plugins_file" toml:"plugins_file"`

	// Checking
	CheckInterval         time.Duration `json:"check_interval" yaml:"check_interval" toml:"check_interval"`
	DefaultTimeout        time.Duration `json:"default_timeout" yaml:"default_timeout" toml:"default_timeout"`
	SweepConcurrency      int           `json:"sweep_concurrency" yaml:"sweep_concurrency" toml:"sweep_concurrency"`
	DefaultSourceTemplate string        `json:"default_source_template" yaml:"default_source_template" toml:"default_source_template"`
	MaxManifestBytes      int64         `json:"max_manifest_bytes" yaml:"max_manifest_bytes" toml:"max_manifest_bytes"`

	// Host integration
	ReloadSuppressors []string `json:"reload_suppressors" yaml:"reload_suppressors" toml:"reload_suppressors"`
	ReloadCommand     string   `json:"reload_command" yaml:"reload_command" toml:"reload_command"`
	BridgeListen      string   `json:"bridge_listen" yaml:"bridge_listen" toml:"bridge_listen"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	Debug    bool   `json:"debug" yaml:"debug" toml:"debug"`

	Sources  map[string]Entry `json:"sources" yaml:"-" toml:"-"`
	LoadedAt time.Time        `json:"loaded_at" yaml:"-" toml:"-"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		PluginsDir:            "~/.km-updater/plugins",
		DataDir:               "~/.km-updater",
		PluginsFile:           "~/.km-updater/plugins.yaml",
		CheckInterval:         2 * time.Hour,
		DefaultTimeout:        30 * time.Second,
		SweepConcurrency:      4,
		DefaultSourceTemplate: "",
		MaxManifestBytes:      10 << 20,
		ReloadSuppressors:     []string{"restartNoMore.plugin.js"},
		LogLevel:              "info",
		Sources:               make(map[string]Entry),
		LoadedAt:              time.Now(),
	}
}

// Fields lists every settable configuration key
func Fields() []string {
	fields := []string{
		"plugins_dir", "data_dir", "plugins_file",
		"check_interval", "default_timeout", "sweep_concurrency",
		"default_source_template", "max_manifest_bytes",
		"reload_suppressors", "reload_command", "bridge_listen",
		"log_level", "debug",
	}
	sort.Strings(fields)
	return fields
}

// Apply sets every entry of the snapshot on the config
func (c *Config) Apply(snap Snapshot) error {
	for field, entry := range snap {
		if err := c.SetValue(field, entry.Source, entry.SourcePath, entry.Value, entry.Priority); err != nil {
			return err
		}
	}
	return nil
}

// SetValue sets a configuration value with its source metadata. Values are
// converted with cast so env strings, file values and flag values share one path.
func (c *Config) SetValue(field, source, sourcePath string, value interface{}, priority int) error {
	if c.Sources == nil {
		c.Sources = make(map[string]Entry)
	}

	// Only update if this source has higher or equal priority
	if existing, exists := c.Sources[field]; exists && priority > existing.Priority {
		return nil
	}

	var err error
	switch field {
	case "plugins_dir":
		c.PluginsDir, err = cast.ToStringE(value)
	case "data_dir":
		c.DataDir, err = cast.ToStringE(value)
	case "plugins_file":
		c.PluginsFile, err = cast.ToStringE(value)
	case "check_interval":
		c.CheckInterval, err = toDuration(value)
	case "default_timeout":
		c.DefaultTimeout, err = toDuration(value)
	case "sweep_concurrency":
		c.SweepConcurrency, err = cast.ToIntE(value)
	case "default_source_template":
		c.DefaultSourceTemplate, err = cast.ToStringE(value)
	case "max_manifest_bytes":
		c.MaxManifestBytes, err = cast.ToInt64E(value)
	case "reload_suppressors":
		c.ReloadSuppressors, err = toStringList(value)
	case "reload_command":
		c.ReloadCommand, err = cast.ToStringE(value)
	case "bridge_listen":
		c.BridgeListen, err = cast.ToStringE(value)
	case "log_level":
		c.LogLevel, err = cast.ToStringE(value)
	case "debug":
		c.Debug, err = cast.ToBoolE(value)
	default:
		return fmt.Errorf("unknown config field: %s", field)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s from %s: %w", field, source, err)
	}

	c.Sources[field] = Entry{
		Key:        field,
		Value:      value,
		Source:     source,
		SourcePath: sourcePath,
		Priority:   priority,
	}
	return nil
}

// toDuration accepts only unit-bearing values. cast would read a bare
// number such as 7200 as nanoseconds.
func toDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		return time.ParseDuration(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("duration %v has no unit, use a string such as \"2h\" or \"30s\"", value)
	}
}

// env values arrive as "a,b,c"
func toStringList(value interface{}) ([]string, error) {
	if s, ok := value.(string); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	return cast.ToStringSliceE(value)
}

// GetSource returns the source information for a specific field
func (c *Config) GetSource(field string) (Entry, bool) {
	source, exists := c.Sources[field]
	return source, exists
}

// Validate performs domain-level validation on the configuration
func (c *Config) Validate() error {
	var errors []string

	if c.PluginsDir == "" {
		errors = append(errors, "plugins_dir must be set")
	}
	if c.CheckInterval < MinCheckInterval {
		errors = append(errors, fmt.Sprintf("check_interval must be at least %s", MinCheckInterval))
	}
	if c.DefaultTimeout < 0 {
		errors = append(errors, "default_timeout must be non-negative")
	}
	if c.SweepConcurrency <= 0 {
		errors = append(errors, "sweep_concurrency must be greater than 0")
	}
	if c.MaxManifestBytes <= 0 {
		errors = append(errors, "max_manifest_bytes must be greater than 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("invalid log_level: %s (must be one of: debug, info, warn, error)", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

// IsDebugMode returns true if debug logging is enabled
func (c *Config) IsDebugMode() bool {
	return c.Debug || c.LogLevel == "debug"
}

// SourceURLFor expands DefaultSourceTemplate for a plugin name. Empty when
// no template is configured.
func (c *Config) SourceURLFor(name string) string {
	if c.DefaultSourceTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(c.DefaultSourceTemplate, "{name}", name)
}
