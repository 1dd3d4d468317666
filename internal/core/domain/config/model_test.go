package configdomain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotMerge_LowerPriorityWins(t *testing.T) {
	snap := Snapshot{"log_level": {Key: "log_level", Value: "warn", Source: "file", Priority: PriorityFile}}
	snap.Merge(Snapshot{"log_level": {Key: "log_level", Value: "debug", Source: "env", Priority: PriorityEnv}})
	snap.Merge(Snapshot{"log_level": {Key: "log_level", Value: "info", Source: "default", Priority: PriorityDefault}})

	assert.Equal(t, "debug", snap["log_level"].Value)
}

func TestConfig_SetValueConverts(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.SetValue("check_interval", "env", "KMU_CHECK_INTERVAL", "15m", PriorityEnv))
	require.NoError(t, cfg.SetValue("sweep_concurrency", "file", "c.toml", int64(6), PriorityFile))
	require.NoError(t, cfg.SetValue("debug", "cli", "flag", true, PriorityFlag))
	require.NoError(t, cfg.SetValue("reload_suppressors", "file", "c.yaml", []interface{}{"a.plugin.js"}, PriorityFile))

	assert.Equal(t, 15*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 6, cfg.SweepConcurrency)
	assert.True(t, cfg.IsDebugMode())
	assert.Equal(t, []string{"a.plugin.js"}, cfg.ReloadSuppressors)

	// a lower-priority source does not override
	require.NoError(t, cfg.SetValue("check_interval", "file", "c.yaml", "1h", PriorityFile))
	assert.Equal(t, 15*time.Minute, cfg.CheckInterval)
}

func TestConfig_SetValueErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.SetValue("api_key", "env", "", "x", PriorityEnv))
	assert.Error(t, cfg.SetValue("check_interval", "env", "", "soon", PriorityEnv))
}

func TestConfig_SetValue_DurationsNeedUnits(t *testing.T) {
	for _, v := range []interface{}{7200, int64(7200), float64(7200), "7200"} {
		cfg := DefaultConfig()
		err := cfg.SetValue("check_interval", "file", "c.yaml", v, PriorityFile)
		require.Error(t, err, "value %#v", v)
		assert.Contains(t, err.Error(), "check_interval")
		assert.Equal(t, 2*time.Hour, cfg.CheckInterval, "rejected value leaves the default")
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.SetValue("default_timeout", "cli", "flag", 45*time.Second, PriorityFlag))
	require.NoError(t, cfg.SetValue("check_interval", "file", "c.yaml", " 90m ", PriorityFile))
	assert.Equal(t, 45*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 90*time.Minute, cfg.CheckInterval)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"no plugins dir", func(c *Config) { c.PluginsDir = "" }, "plugins_dir"},
		{"zero interval", func(c *Config) { c.CheckInterval = 0 }, "check_interval"},
		{"interval below minimum", func(c *Config) { c.CheckInterval = 7200 }, "check_interval must be at least 1m0s"},
		{"minimum interval", func(c *Config) { c.CheckInterval = MinCheckInterval }, ""},
		{"zero concurrency", func(c *Config) { c.SweepConcurrency = 0 }, "sweep_concurrency"},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, "invalid log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_SourceURLFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.SourceURLFor("Foo"))

	cfg.DefaultSourceTemplate = "https://cdn.example.com/{name}/{name}.plugin.js"
	assert.Equal(t, "https://cdn.example.com/Foo/Foo.plugin.js", cfg.SourceURLFor("Foo"))
}
