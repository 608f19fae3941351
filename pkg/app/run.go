// Package app assembles and runs the feedwire sync client.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"feedwire/internal/config"
	"feedwire/internal/security"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string
}

// Run loads configuration, starts the client, and blocks until a
// shutdown signal is received. SIGHUP resets the transport decision so
// both channels race again; SIGUSR1/SIGUSR2 drive the visibility state.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := BuildLogger(cfg.Log,
		cfg.Backend.Token,
		cfg.Gateway.Auth.BearerToken,
		cfg.Gateway.Auth.BasicPass,
	)

	client, err := New(cfg, logger)
	if err != nil {
		return err
	}

	if err := client.Start(); err != nil {
		return err
	}
	logger.Info("feedwire started",
		"version", params.Version,
		"topic", cfg.Topic,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			logger.Info("SIGHUP received, resetting transport")
			client.Reset()
		default:
			logger.Info("shutdown signal received", "signal", sig.String())
			client.Stop()
			logger.Info("shutdown complete")
			return nil
		}
	}
	return nil
}

// Start seeds the store from the cache, arms the detection timer, and
// brings up both channels and the supporting surfaces.
func (c *Client) Start() error {
	if c.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		snap, ok, err := c.cache.Load(ctx, c.cfg.Topic)
		cancel()
		switch {
		case err != nil:
			c.logger.Warn("loading cached snapshot failed", "error", err)
		case ok:
			c.store.Apply(snap)
			c.logger.Info("restored cached snapshot", "messages", len(snap))
		}
	}

	c.negotiator.Start()
	c.reactive.Start()
	c.poller.Start()

	if err := c.gateway.Start(); err != nil {
		c.poller.Stop()
		c.reactive.Stop()
		return err
	}
	if err := c.scheduler.Start(); err != nil {
		return err
	}
	return nil
}

// Stop tears everything down in reverse order.
func (c *Client) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = c.scheduler.Stop(ctx)
	_ = c.gateway.Stop(ctx)
	c.poller.Stop()

	c.mu.Lock()
	ch := c.reactive
	c.mu.Unlock()
	ch.Stop()

	c.negotiator.Stop()
	if c.cache != nil {
		_ = c.cache.Close()
	}
}

// BuildLogger constructs the slog logger from the log section. Any
// secrets passed in are scrubbed from every record the logger emits.
func BuildLogger(cfg config.LogConfig, secrets ...string) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	redactor := security.NewRedactor()
	for _, s := range secrets {
		redactor.AddLiteral(s)
	}
	return slog.New(security.NewRedactingHandler(handler, redactor))
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/feedwire/feedwire.yaml →
// ~/.config/feedwire/feedwire.yaml → ./feedwire.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "feedwire", "feedwire.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "feedwire", "feedwire.yaml"))
	}

	candidates = append(candidates, "feedwire.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/feedwire if set, otherwise ~/.local/share/feedwire.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "feedwire")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "feedwire")
}
