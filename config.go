package rtbvh

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gekko3d/rtbvh/rt/bvh"

	"gopkg.in/yaml.v3"
)

// Config holds registry and tooling settings.
type Config struct {
	Build   BuildConfig   `yaml:"build"`
	Logging LoggingConfig `yaml:"logging"`
	GPU     GPUConfig     `yaml:"gpu"`
}

// BuildConfig tunes the hierarchy builders.
type BuildConfig struct {
	CPULeafSize int `yaml:"cpu_leaf_size"`
	GPULeafSize int `yaml:"gpu_leaf_size"` // capped at 3 by the compressed layout
	Bins        int `yaml:"bins"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// GPUConfig is consumed by the upload tooling, not by the registry.
type GPUConfig struct {
	PowerPreference string  `yaml:"power_preference"` // "high-performance" or "low-power"
	Headroom        float64 `yaml:"headroom"`         // growth factor for reallocated buffers
}

func DefaultConfig() Config {
	return Config{
		Build: BuildConfig{
			CPULeafSize: bvh.DefaultMaxLeafSize,
			GPULeafSize: 3,
			Bins:        bvh.DefaultBins,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		GPU: GPUConfig{
			PowerPreference: "high-performance",
			Headroom:        1.25,
		},
	}
}

// LoadConfig layers the YAML file at path over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveTo writes the config to a specific path.
func (c Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c BuildConfig) cpuOptions() bvh.BuildOptions {
	return bvh.BuildOptions{MaxLeafSize: c.CPULeafSize, Bins: c.Bins}
}

func (c BuildConfig) gpuOptions() bvh.BuildOptions {
	return bvh.BuildOptions{MaxLeafSize: c.GPULeafSize, Bins: c.Bins}
}
