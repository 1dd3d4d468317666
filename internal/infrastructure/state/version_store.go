package stateinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
	fsinfra "github.com/kilometers-ai/plugin-updater/internal/infrastructure/filesystem"
)

const stateFileName = "state.json"

// FileVersionStore persists installed plugin versions in a JSON file
type FileVersionStore struct {
	mu       sync.Mutex
	dataDir  string
	filePath string
}

var _ ports.VersionStore = (*FileVersionStore)(nil)

// NewFileVersionStore creates a store writing to dataDir/state.json
func NewFileVersionStore(dataDir string) *FileVersionStore {
	dataDir = fsinfra.ExpandPath(dataDir)
	return &FileVersionStore{
		dataDir:  dataDir,
		filePath: filepath.Join(dataDir, stateFileName),
	}
}

// stateData represents the persisted format
type stateData struct {
	Version     string                    `json:"version"`
	LastUpdated time.Time                 `json:"last_updated"`
	Plugins     map[string]installedEntry `json:"plugins"`
}

type installedEntry struct {
	Version     string    `json:"version"`
	InstalledAt time.Time `json:"installed_at"`
}

// Path returns the state file location
func (s *FileVersionStore) Path() string {
	return s.filePath
}

// Load returns the recorded version per source URL. A missing file is an
// empty store.
func (s *FileVersionStore) Load(ctx context.Context) (map[string]version.SemVer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}

	out := make(map[string]version.SemVer, len(data.Plugins))
	for url, entry := range data.Plugins {
		v, err := version.Parse(entry.Version)
		if err != nil {
			// skip entries a human mangled rather than failing every run
			continue
		}
		out[url] = v
	}
	return out, nil
}

// Record stores the installed version for a source URL
func (s *FileVersionStore) Record(ctx context.Context, sourceURL string, v version.SemVer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	data.Plugins[sourceURL] = installedEntry{Version: v.String(), InstalledAt: now}
	data.LastUpdated = now
	data.Version = "1.0"

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := fsinfra.WriteFileAtomic(s.filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

func (s *FileVersionStore) read() (*stateData, error) {
	data := &stateData{Plugins: map[string]installedEntry{}}

	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if data.Plugins == nil {
		data.Plugins = map[string]installedEntry{}
	}
	return data, nil
}
