package configinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	configdomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/config"
	configports "github.com/kilometers-ai/plugin-updater/internal/core/ports/config"
	fsinfra "github.com/kilometers-ai/plugin-updater/internal/infrastructure/filesystem"
)

// FileLoader reads a config file. The format follows the extension:
// .yaml/.yml, .toml or .json. A missing file yields an empty snapshot.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: fsinfra.ExpandPath(path)}
}

func (l *FileLoader) Name() string { return "file" }

// Path returns the expanded config file path
func (l *FileLoader) Path() string { return l.path }

func (l *FileLoader) Load(ctx context.Context) (configdomain.Snapshot, error) {
	snap := make(configdomain.Snapshot)
	if l.path == "" {
		return snap, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", l.path, err)
	}

	kv, err := decode(l.path, data)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	for _, f := range configdomain.Fields() {
		known[f] = true
	}

	for key, value := range kv {
		field := strings.ReplaceAll(strings.ToLower(key), "-", "_")
		if !known[field] {
			return nil, fmt.Errorf("%s: unknown config field %q", l.path, key)
		}
		snap[field] = configdomain.Entry{Key: field, Value: value, Source: "file", SourcePath: l.path, Priority: configdomain.PriorityFile}
	}

	return snap, nil
}

func decode(path string, data []byte) (map[string]interface{}, error) {
	kv := make(map[string]interface{})

	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &kv)
	case ".toml":
		err = toml.Unmarshal(data, &kv)
	case ".json":
		err = json.Unmarshal(data, &kv)
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .yaml, .toml or .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return kv, nil
}

var _ configports.Loader = (*FileLoader)(nil)
