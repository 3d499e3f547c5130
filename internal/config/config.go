// Package config holds the YAML configuration of the ensemble command.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	dataset "github.com/luhtfiimanal/go-ensemble-archive"
)

// Config is the on-disk configuration of the ensemble CLI.
type Config struct {
	Archive  ArchiveConfig  `yaml:"archive"`
	Resample ResampleConfig `yaml:"resample"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ArchiveConfig configures how archives are written and read.
type ArchiveConfig struct {
	Compress    bool   `yaml:"compress"`
	Method      string `yaml:"method"` // store, deflate, zstd; overrides compress when set
	Mmap        bool   `yaml:"mmap"`
	LargeFile   bool   `yaml:"large_file"`
	CacheBudget int64  `yaml:"cache_budget"` // bytes, 0 = unlimited
	CacheDir    string `yaml:"cache_dir"`
}

// ResampleConfig holds the default resampling parameters.
type ResampleConfig struct {
	Seed          uint64 `yaml:"seed"` // 0 = time based
	BinSize       int    `yaml:"bin_size"`
	NumBootstraps int    `yaml:"num_bootstraps"`
	Cache         bool   `yaml:"cache"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			Compress:  true,
			Mmap:      true,
			LargeFile: true,
		},
		Resample: ResampleConfig{
			BinSize:       1,
			NumBootstraps: 100,
			Cache:         true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults, still subject to environment overrides
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("ENSEMBLE_CACHE_DIR"); dir != "" {
		c.Archive.CacheDir = dir
	}
	if s := os.Getenv("ENSEMBLE_SEED"); s != "" {
		if seed, err := strconv.ParseUint(s, 10, 64); err == nil {
			c.Resample.Seed = seed
		}
	}
	if lvl := os.Getenv("ENSEMBLE_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// Validate checks the configuration for values the library would reject.
func (c *Config) Validate() error {
	if _, err := c.method(); err != nil {
		return err
	}
	if c.Resample.BinSize < 1 {
		return fmt.Errorf("invalid bin_size %d: must be at least 1", c.Resample.BinSize)
	}
	if c.Resample.NumBootstraps < 1 {
		return fmt.Errorf("invalid num_bootstraps %d: must be at least 1", c.Resample.NumBootstraps)
	}
	if c.Archive.CacheBudget < 0 {
		return fmt.Errorf("invalid cache_budget %d", c.Archive.CacheBudget)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level %q: %w", c.Logging.Level, err)
	}
	return nil
}

func (c *Config) method() (dataset.Method, error) {
	switch c.Archive.Method {
	case "":
		if c.Archive.Compress {
			return dataset.MethodDeflate, nil
		}
		return dataset.MethodStore, nil
	case "store":
		return dataset.MethodStore, nil
	case "deflate":
		return dataset.MethodDeflate, nil
	case "zstd":
		return dataset.MethodZstd, nil
	}
	return 0, fmt.Errorf("invalid archive method %q (valid: store, deflate, zstd)", c.Archive.Method)
}

// Options translates the configuration into data set options.
func (c *Config) Options(logger *zap.Logger) ([]dataset.Option, error) {
	m, err := c.method()
	if err != nil {
		return nil, err
	}
	opts := []dataset.Option{
		dataset.WithMethod(m),
		dataset.WithMmap(c.Archive.Mmap),
		dataset.WithLargeFile(c.Archive.LargeFile),
		dataset.WithCacheBudget(c.Archive.CacheBudget),
	}
	if c.Archive.CacheDir != "" {
		opts = append(opts, dataset.WithCacheDir(c.Archive.CacheDir))
	}
	if c.Resample.Seed != 0 {
		opts = append(opts, dataset.WithSeed(c.Resample.Seed))
	}
	if logger != nil {
		opts = append(opts, dataset.WithLogger(logger))
	}
	return opts, nil
}

// NewLogger builds a production zap logger at the configured level, or at
// debug level when verbose is set.
func (c *Config) NewLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
