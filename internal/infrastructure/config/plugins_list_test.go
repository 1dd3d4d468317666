package configinfra

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPluginsFile(t *testing.T) {
	path := writeFile(t, "plugins.yaml", `
plugins:
  - name: Foo
    source: https://example.com/Foo.plugin.js
    version: 1.0.0
  - name: Bar
    version: 0.3.1
`)

	plugins, err := LoadPluginsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []PluginSpec{
		{Name: "Foo", Source: "https://example.com/Foo.plugin.js", Version: "1.0.0"},
		{Name: "Bar", Version: "0.3.1"},
	}, plugins)
}

func TestLoadPluginsFile_TOML(t *testing.T) {
	path := writeFile(t, "plugins.toml", `
[[plugins]]
name = "Foo"
source = "https://example.com/Foo.plugin.js"
version = "1.0.0"
`)

	plugins, err := LoadPluginsFile(path)
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "Foo", plugins[0].Name)
}

func TestLoadPluginsFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"missing name", "plugins:\n  - version: 1.0.0\n", "has no name"},
		{"missing version", "plugins:\n  - name: Foo\n", "has no version"},
		{"duplicate", "plugins:\n  - {name: Foo, version: 1.0.0}\n  - {name: Foo, version: 1.0.1}\n", "declared twice"},
		{"bad yaml", "plugins: [", "parsing plugins file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPluginsFile(writeFile(t, "plugins.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPluginsFile_SaveAndMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plugins.yaml")

	plugins, err := LoadPluginsFile(path)
	require.NoError(t, err)
	assert.Empty(t, plugins)

	want := []PluginSpec{{Name: "Foo", Version: "1.0.0"}}
	require.NoError(t, SavePluginsFile(path, want))

	got, err := LoadPluginsFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPluginsFileWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "plugins.yaml", "plugins: []\n")

	var mu sync.Mutex
	var seen [][]PluginSpec
	w, err := NewPluginsFileWatcher(path, 20*time.Millisecond, func(p []PluginSpec) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	defer func() {
		cancel()
		w.Wait()
	}()

	// give the watch loop a moment to start selecting
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("plugins:\n  - {name: Foo, version: 1.0.0}\n"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && len(seen[len(seen)-1]) == 1 && seen[len(seen)-1][0].Name == "Foo"
	}, 2*time.Second, 10*time.Millisecond)
}
