package configinfra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	fsinfra "github.com/kilometers-ai/plugin-updater/internal/infrastructure/filesystem"
)

// PluginSpec is one tracked plugin as declared in the plugins file
type PluginSpec struct {
	Name    string `yaml:"name" toml:"name"`
	Source  string `yaml:"source,omitempty" toml:"source,omitempty"`
	Version string `yaml:"version" toml:"version"`
}

type pluginsFile struct {
	Plugins []PluginSpec `yaml:"plugins" toml:"plugins"`
}

// LoadPluginsFile reads the declared plugin list. Format follows the
// extension (.yaml/.yml or .toml). A missing file is an empty list.
func LoadPluginsFile(path string) ([]PluginSpec, error) {
	path = fsinfra.ExpandPath(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading plugins file %s: %w", path, err)
	}

	var file pluginsFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &file)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported plugins file format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing plugins file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Plugins))
	for i, p := range file.Plugins {
		if p.Name == "" {
			return nil, fmt.Errorf("%s: plugin #%d has no name", path, i+1)
		}
		if p.Version == "" {
			return nil, fmt.Errorf("%s: plugin %s has no version", path, p.Name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%s: plugin %s declared twice", path, p.Name)
		}
		seen[p.Name] = true
	}

	return file.Plugins, nil
}

// SavePluginsFile writes the plugin list as YAML
func SavePluginsFile(path string, plugins []PluginSpec) error {
	path = fsinfra.ExpandPath(path)

	data, err := yaml.Marshal(pluginsFile{Plugins: plugins})
	if err != nil {
		return fmt.Errorf("failed to marshal plugins file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return fsinfra.WriteFileAtomic(path, data, 0644)
}
