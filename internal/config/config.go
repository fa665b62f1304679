package config

import "time"

// ServerConfig holds configuration for the sherpa study server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.sherpa/sherpa.db, ":memory:" for testing)

	// WorkerDeadline is how long a worker may miss heartbeats before the
	// reaper marks it offline and abandons its running trial.
	WorkerDeadline time.Duration
	// ReapInterval is how often the reaper checks worker liveness.
	ReapInterval time.Duration
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		WorkerDeadline: 60 * time.Second,
		ReapInterval:   10 * time.Second,
	}
}
