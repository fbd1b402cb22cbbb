package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent tracelens configuration stored as
// config.toml in the .tracelens/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Worker      WorkerConfig      `toml:"worker"`
	Analysis    AnalysisConfig    `toml:"analysis"`
}

// StorageConfig selects and configures the snapshot store.
type StorageConfig struct {
	// Driver is one of "inmemory", "sqlite" or "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventStreamConfig configures where analysis events are published.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// WorkerConfig sizes the background analysis pool.
type WorkerConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// AnalysisConfig tunes the analysis engine.
type AnalysisConfig struct {
	// LateStageNames are name fragments marking output-bearing steps for
	// leak detection.
	LateStageNames []string `toml:"late_stage_names,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			if !isValidDriver(v) {
				return fmt.Errorf("invalid value for storage.driver: %q (expected inmemory, sqlite or postgres)", v)
			}
			c.Storage.Driver = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			if v != EventStreamNop && v != EventStreamKafka {
				return fmt.Errorf("invalid value for eventstream.provider: %q (expected nop or kafka)", v)
			}
			c.EventStream.Provider = v
			return nil
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error { c.EventStream.Brokers = SplitList(v); return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"worker.workers": {
		get: func(c *Config) string { return formatUint(c.Worker.Workers) },
		set: func(c *Config, v string) error { return parseUint("worker.workers", v, &c.Worker.Workers) },
	},
	"worker.queue_size": {
		get: func(c *Config) string { return formatUint(c.Worker.QueueSize) },
		set: func(c *Config, v string) error { return parseUint("worker.queue_size", v, &c.Worker.QueueSize) },
	},
	"analysis.late_stage_names": {
		get: func(c *Config) string { return strings.Join(c.Analysis.LateStageNames, ",") },
		set: func(c *Config, v string) error { c.Analysis.LateStageNames = SplitList(v); return nil },
	},
}

// SplitList splits a comma separated value, trimming blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isValidDriver(v string) bool {
	switch v {
	case StorageInMemory, StorageSQLite, StoragePostgres:
		return true
	}
	return false
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string, target *uint) error {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*target = uint(n)
	return nil
}
