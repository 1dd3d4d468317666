package fsinfra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

// PluginsDirectory is the host's plugin folder on the local filesystem
type PluginsDirectory struct {
	dir string
}

var _ ports.FileSystem = (*PluginsDirectory)(nil)

// NewPluginsDirectory creates a filesystem adapter rooted at dir. A leading
// "~/" is expanded to the user's home directory.
func NewPluginsDirectory(dir string) *PluginsDirectory {
	return &PluginsDirectory{dir: ExpandPath(dir)}
}

// ResolvePluginsDirectory returns the plugins directory, creating it if needed
func (d *PluginsDirectory) ResolvePluginsDirectory() (string, error) {
	if d.dir == "" {
		return "", fmt.Errorf("plugins directory not configured")
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create plugins directory: %w", err)
	}
	return d.dir, nil
}

// WriteFile atomically replaces path with contents. The data goes to a
// temporary file in the same directory which is then renamed over path.
func (d *PluginsDirectory) WriteFile(path string, contents []byte) error {
	if err := WriteFileAtomic(path, contents, 0644); err != nil {
		return &plugindomain.IOError{Path: path, Err: err}
	}
	return nil
}

// Exists reports whether a file with the given name is in the plugins directory
func (d *PluginsDirectory) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(d.dir, name))
	return err == nil && !info.IsDir()
}

// WriteFileAtomic writes data to a temp file next to path and renames it
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	// Rename temp file to final location
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	return nil
}

// ExpandPath expands a leading "~/" to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return path
}
