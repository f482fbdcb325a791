// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DataDir is the Badger store directory. Empty means in-memory.
	DataDir string `koanf:"data_dir"`

	// AgentURL is the endpoint of the external extraction agent.
	AgentURL string `koanf:"agent_url"`

	// AgentAPIKey authenticates calls to the extraction agent.
	AgentAPIKey string `koanf:"agent_api_key"`

	// MaxWorkers bounds how many extraction tasks run concurrently per stream.
	MaxWorkers int `koanf:"max_workers"`

	// RequestTimeoutSec bounds one extraction agent call.
	RequestTimeoutSec int `koanf:"request_timeout_sec"`

	// KeepaliveIntervalSec is the idle threshold before an SSE keepalive comment.
	KeepaliveIntervalSec int `koanf:"keepalive_interval_sec"`

	// MaxConcurrentStreams bounds open streaming sessions server-wide.
	MaxConcurrentStreams int `koanf:"max_concurrent_streams"`

	// CacheMaxAgeHours is the recency window for serving cached extraction results.
	CacheMaxAgeHours int `koanf:"cache_max_age_hours"`

	// MaxHistoryLimit caps GET /api/history?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// StreamBufferSize is the capacity of the per-stream event channel.
	StreamBufferSize int `koanf:"stream_buffer_size"`

	// SnapshotWeights are recorded in snapshots as weights_used.
	SnapshotWeights map[string]float64 `koanf:"snapshot_weights"`
}

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:             "info",
		Addr:                 ":9090",
		DataDir:              "./scout-data",
		AgentURL:             "https://mino.ai/v1/automation/run-sse",
		AgentAPIKey:          "",
		MaxWorkers:           5,
		RequestTimeoutSec:    180,
		KeepaliveIntervalSec: 10,
		MaxConcurrentStreams: 20,
		CacheMaxAgeHours:     24,
		MaxHistoryLimit:      100,
		StreamBufferSize:     256,
		SnapshotWeights: map[string]float64{
			"general":   1.0,
			"coding":    1.0,
			"safety":    1.0,
			"economics": 1.0,
		},
	}
	return c
}
