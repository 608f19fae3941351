// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for feedwire.
package config

import (
	"time"

	"feedwire/internal/cache"
	"feedwire/internal/gateway"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Backend points at the hosted real-time API.
	Backend BackendConfig `yaml:"backend"`

	// Topic is the conversation to synchronise.
	Topic string `yaml:"topic"`

	// Identity is attached to every outbound message.
	Identity IdentityConfig `yaml:"identity"`

	// Transport tunes channel detection and polling cadence.
	Transport TransportConfig `yaml:"transport"`

	// Cache configures the optional SQLite snapshot cache.
	Cache cache.Config `yaml:"cache"`

	// Gateway configures the local observability HTTP server.
	Gateway gateway.Config `yaml:"gateway"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// BackendConfig identifies the backend endpoints and credentials.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	WSURL   string        `yaml:"ws_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// IdentityConfig names the local sender.
type IdentityConfig struct {
	SenderID   string `yaml:"sender_id"`
	SenderName string `yaml:"sender_name"`
}

// TransportConfig tunes the dual-channel machinery.
type TransportConfig struct {
	// DetectionTimeout bounds how long the reactive channel may stay
	// silent before polling wins the race. Default: 3s.
	DetectionTimeout time.Duration `yaml:"detection_timeout"`

	// PollInterval is the polling cadence while visible. Default: 5s.
	PollInterval time.Duration `yaml:"poll_interval"`

	// StaleThreshold is how old the last successful fetch may be before
	// returning to the foreground forces an immediate fetch. Default: 10s.
	StaleThreshold time.Duration `yaml:"stale_threshold"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Default: text.
	Format string `yaml:"format"`
}
