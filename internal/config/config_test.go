package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	dataset "github.com/luhtfiimanal/go-ensemble-archive"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Archive.Compress)
	assert.True(t, cfg.Archive.Mmap)
	assert.Equal(t, 1, cfg.Resample.BinSize)
	assert.Equal(t, 100, cfg.Resample.NumBootstraps)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("ENSEMBLE_SEED", "")
	t.Setenv("ENSEMBLE_CACHE_DIR", "")
	t.Setenv("ENSEMBLE_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("ENSEMBLE_SEED", "")
	t.Setenv("ENSEMBLE_CACHE_DIR", "")
	t.Setenv("ENSEMBLE_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "nested", "ensemble.yaml")
	cfg := DefaultConfig()
	cfg.Archive.Method = "zstd"
	cfg.Archive.CacheBudget = 1 << 20
	cfg.Resample.Seed = 17
	cfg.Resample.BinSize = 4

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("ENSEMBLE_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "ensemble.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resample:\n  bin_size: 8\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Resample.BinSize)
	assert.Equal(t, 100, cfg.Resample.NumBootstraps)
	assert.True(t, cfg.Archive.Compress)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENSEMBLE_SEED", "99")
	t.Setenv("ENSEMBLE_CACHE_DIR", "/tmp/ens-cache")
	t.Setenv("ENSEMBLE_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, uint64(99), cfg.Resample.Seed)
	assert.Equal(t, "/tmp/ens-cache", cfg.Archive.CacheDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesAreValidated(t *testing.T) {
	t.Setenv("ENSEMBLE_LOG_LEVEL", "loud")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "invalid logging level")
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"method":     func(c *Config) { c.Archive.Method = "lzma" },
		"bin_size":   func(c *Config) { c.Resample.BinSize = 0 },
		"bootstraps": func(c *Config) { c.Resample.NumBootstraps = -1 },
		"budget":     func(c *Config) { c.Archive.CacheBudget = -5 },
		"level":      func(c *Config) { c.Logging.Level = "loud" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOptionsCreateArchive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Archive.Compress = false
	cfg.Resample.Seed = 5
	opts, err := cfg.Options(nil)
	require.NoError(t, err)

	ds, err := dataset.Create(dataset.Float, filepath.Join(t.TempDir(), "a.zip"), opts...)
	require.NoError(t, err)
	assert.False(t, ds.Compressed())
	assert.Equal(t, dataset.MethodStore, ds.Method())

	cfg.Archive.Method = "zstd"
	opts, err = cfg.Options(nil)
	require.NoError(t, err)
	ds, err = dataset.Create(dataset.Float, filepath.Join(t.TempDir(), "b.zip"), opts...)
	require.NoError(t, err)
	assert.Equal(t, dataset.MethodZstd, ds.Method())
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	logger, err := cfg.NewLogger(true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	_ = logger.Sync()
}
