package cache

import (
	"fmt"
	"time"
)

const (
	defaultBusyTimeout = 5000
	defaultRetention   = 7 * 24 * time.Hour
)

// Config holds the snapshot cache configuration.
type Config struct {
	// Path is the database file path. Empty disables the cache.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// Retention is how long a topic's cached snapshot survives without a
	// refresh before the sweep removes it. Defaults to 168h.
	Retention time.Duration `yaml:"retention"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.Retention == 0 {
		c.Retention = defaultRetention
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("cache: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if c.Retention < 0 {
		return fmt.Errorf("cache: retention must be non-negative, got %s", c.Retention)
	}
	return nil
}
