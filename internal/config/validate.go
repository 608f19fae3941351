package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the structural validity of a Config: the version field,
// the backend endpoints, the topic, and the per-section bounds.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateBackend(cfg.Backend)...)

	if cfg.Topic == "" {
		errs = append(errs, errors.New("config: topic is required"))
	}
	if cfg.Identity.SenderID == "" {
		errs = append(errs, errors.New("config: identity.sender_id is required"))
	}

	errs = append(errs, validateTransport(cfg.Transport)...)

	if err := cfg.Cache.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q is not one of text, json", cfg.Log.Format))
	}

	return errors.Join(errs...)
}

func validateBackend(b BackendConfig) []error {
	var errs []error

	if b.BaseURL == "" {
		errs = append(errs, errors.New("config: backend.base_url is required"))
	} else if err := checkURL(b.BaseURL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("config: backend.base_url: %w", err))
	}

	if b.WSURL == "" {
		errs = append(errs, errors.New("config: backend.ws_url is required"))
	} else if err := checkURL(b.WSURL, "ws", "wss"); err != nil {
		errs = append(errs, fmt.Errorf("config: backend.ws_url: %w", err))
	}

	if b.Timeout < 0 {
		errs = append(errs, fmt.Errorf("config: backend.timeout must be non-negative, got %s", b.Timeout))
	}

	return errs
}

func validateTransport(t TransportConfig) []error {
	var errs []error
	if t.DetectionTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: transport.detection_timeout must be non-negative, got %s", t.DetectionTimeout))
	}
	if t.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("config: transport.poll_interval must be non-negative, got %s", t.PollInterval))
	}
	if t.StaleThreshold < 0 {
		errs = append(errs, fmt.Errorf("config: transport.stale_threshold must be non-negative, got %s", t.StaleThreshold))
	}
	return errs
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme %q not allowed (want one of %v)", u.Scheme, schemes)
}
