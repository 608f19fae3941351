package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Version: "1",
		Backend: BackendConfig{
			BaseURL: "https://api.example.com",
			WSURL:   "wss://api.example.com/subscribe",
		},
		Topic:    "general",
		Identity: IdentityConfig{SenderID: "u1", SenderName: "alice"},
	}
}

func TestValidate_AcceptsMinimalConfig(t *testing.T) {
	t.Parallel()
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing version", func(c *Config) { c.Version = "" }, "version field is required"},
		{"unknown version", func(c *Config) { c.Version = "2" }, "unsupported version"},
		{"missing base url", func(c *Config) { c.Backend.BaseURL = "" }, "base_url is required"},
		{"http scheme on ws url", func(c *Config) { c.Backend.WSURL = "https://api.example.com" }, "scheme"},
		{"missing topic", func(c *Config) { c.Topic = "" }, "topic is required"},
		{"missing sender", func(c *Config) { c.Identity.SenderID = "" }, "sender_id is required"},
		{"negative detection timeout", func(c *Config) { c.Transport.DetectionTimeout = -time.Second }, "detection_timeout"},
		{"negative poll interval", func(c *Config) { c.Transport.PollInterval = -time.Second }, "poll_interval"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("FEEDWIRE_TOKEN", "tok-123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
version: "1"
topic: general
identity:
  sender_id: u1
backend:
  base_url: ${FEEDWIRE_BASE_URL:-https://api.example.com}
  ws_url: wss://api.example.com/subscribe
  token: ${FEEDWIRE_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.Token != "tok-123" {
		t.Errorf("token = %q, want expanded env value", cfg.Backend.Token)
	}
	if cfg.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("base_url = %q, want fallback default", cfg.Backend.BaseURL)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "version: \"1\"\ntopic: ${FEEDWIRE_DEFINITELY_UNSET_VAR}\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() accepted an unresolved variable")
	}
	if !strings.Contains(err.Error(), "FEEDWIRE_DEFINITELY_UNSET_VAR") {
		t.Errorf("error %v does not name the unresolved variable", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() succeeded on a missing file")
	}
}
