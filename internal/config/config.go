// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Explanation modes
const (
	ExplainTemplate = "template"
	ExplainModel    = "model"
)

// Config is the full control-plane configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Store    StoreConfig    `yaml:"store"`
	Logs     LogsConfig     `yaml:"logs"`
	Explain  ExplainConfig  `yaml:"explain"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type AnalysisConfig struct {
	IntervalSeconds       int `yaml:"interval_seconds"`
	MinSamples            int `yaml:"min_samples"`
	SequenceWindowSeconds int `yaml:"sequence_window_seconds"`
	PairThreshold         int `yaml:"pair_threshold"`
	SpikeMinRecent        int `yaml:"spike_min_recent"`
	StatsCapacity         int `yaml:"stats_capacity"`
	PatternCapacity       int `yaml:"pattern_capacity"`
	BatchSize             int `yaml:"batch_size"`
}

type StoreConfig struct {
	DataDir          string `yaml:"data_dir"`
	HistoryRetention int    `yaml:"history_retention"`
}

type LogsConfig struct {
	Capacity int `yaml:"capacity"`
	// MonitoringURL switches the collector to remote pull mode
	MonitoringURL string `yaml:"monitoring_url"`
}

type ExplainConfig struct {
	Mode      string `yaml:"mode"`
	Model     string `yaml:"model"`
	Retention int    `yaml:"retention"`
}

// Default returns the configuration defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8000,
			LogLevel: "info",
		},
		Analysis: AnalysisConfig{
			IntervalSeconds:       300,
			MinSamples:            5,
			SequenceWindowSeconds: 5,
			PairThreshold:         3,
			SpikeMinRecent:        3,
			StatsCapacity:         10000,
			PatternCapacity:       10000,
			BatchSize:             1000,
		},
		Store: StoreConfig{
			DataDir:          "/data",
			HistoryRetention: 100,
		},
		Logs: LogsConfig{
			Capacity: 10000,
		},
		Explain: ExplainConfig{
			Mode:      ExplainTemplate,
			Retention: 1000,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Interval returns the analysis interval as a duration
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Analysis.IntervalSeconds) * time.Second
}

// SequenceWindow returns the prefetch sequence window as a duration
func (c *Config) SequenceWindow() time.Duration {
	return time.Duration(c.Analysis.SequenceWindowSeconds) * time.Second
}
