package rtbvh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4, cfg.Build.CPULeafSize)
	assert.Equal(t, 3, cfg.Build.GPULeafSize)
	assert.Equal(t, 8, cfg.Build.Bins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.File)
	assert.Equal(t, "high-performance", cfg.GPU.PowerPreference)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtbvh.yaml")
	content := `
build:
  cpu_leaf_size: 2
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Build.CPULeafSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Build.Bins, "untouched keys keep defaults")
	assert.Equal(t, 1.25, cfg.GPU.Headroom)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("build: [1, 2"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rtbvh.yaml")
	cfg := DefaultConfig()
	cfg.Build.Bins = 16
	cfg.Logging.File = "trace.log"

	require.NoError(t, cfg.SaveTo(path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLogger_LevelsAndFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "rtbvh.log")
	cfg := DefaultConfig().Logging
	cfg.File = logFile

	l, err := NewLogger("test", cfg)
	require.NoError(t, err)
	assert.False(t, l.DebugEnabled())

	l.Debugf("hidden %d", 1)
	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("shown %d", 2)
	l.Named("child").Warnf("careful")
	l.Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden 1")
	assert.Contains(t, string(data), "shown 2")
	assert.Contains(t, string(data), "careful")
}

func TestDefaultLogger_DebugFlag(t *testing.T) {
	assert.True(t, NewDefaultLogger("dbg", true).DebugEnabled())
	assert.False(t, NewDefaultLogger("info", false).DebugEnabled())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.SetDebug(true)
	assert.False(t, l.DebugEnabled())
}
