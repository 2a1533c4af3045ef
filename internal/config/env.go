// internal/config/env.go
package config

import (
	"os"
	"strconv"
)

// LoadFromEnv applies environment overrides on top of cfg
func LoadFromEnv(cfg *Config) {
	setInt(&cfg.Server.Port, "EDGEPLANE_PORT")
	setString(&cfg.Server.LogLevel, "EDGEPLANE_LOG_LEVEL")

	setInt(&cfg.Analysis.IntervalSeconds, "EDGEPLANE_ANALYSIS_INTERVAL")
	setInt(&cfg.Analysis.MinSamples, "EDGEPLANE_MIN_SAMPLES")
	setInt(&cfg.Analysis.SequenceWindowSeconds, "EDGEPLANE_SEQUENCE_WINDOW")
	setInt(&cfg.Analysis.PairThreshold, "EDGEPLANE_PAIR_THRESHOLD")
	setInt(&cfg.Analysis.SpikeMinRecent, "EDGEPLANE_SPIKE_MIN_RECENT")
	setInt(&cfg.Analysis.StatsCapacity, "EDGEPLANE_STATS_CAPACITY")
	setInt(&cfg.Analysis.PatternCapacity, "EDGEPLANE_PATTERN_CAPACITY")
	setInt(&cfg.Analysis.BatchSize, "EDGEPLANE_BATCH_SIZE")

	setString(&cfg.Store.DataDir, "EDGEPLANE_DATA_DIR")
	setInt(&cfg.Store.HistoryRetention, "EDGEPLANE_HISTORY_RETENTION")

	setInt(&cfg.Logs.Capacity, "EDGEPLANE_LOG_CAPACITY")
	setString(&cfg.Logs.MonitoringURL, "EDGEPLANE_MONITORING_URL")

	setString(&cfg.Explain.Mode, "EDGEPLANE_EXPLAIN_MODE")
	setString(&cfg.Explain.Model, "EDGEPLANE_GENAI_MODEL")
	setInt(&cfg.Explain.Retention, "EDGEPLANE_EXPLAIN_RETENTION")
}

// GetEnvOrDefault returns an environment variable or a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}
