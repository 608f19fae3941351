package app

import (
	"os"
	"path/filepath"
	"testing"

	"feedwire/internal/config"
)

func TestResolveConfigPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfgDir := filepath.Join(dir, "feedwire")
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(cfgDir, "feedwire.yaml")
	if err := os.WriteFile(want, []byte("version: \"1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("ResolveConfigPath() error = %v", err)
	}
	if got != want {
		t.Errorf("ResolveConfigPath() = %q, want %q", got, want)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Fatal("ResolveConfigPath() found a config in an empty environment")
	}
}

func TestBuildLogger_Levels(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		if l := BuildLogger(config.LogConfig{Level: level}); l == nil {
			t.Errorf("BuildLogger(%q) = nil", level)
		}
	}
	if l := BuildLogger(config.LogConfig{Format: "json"}); l == nil {
		t.Error("BuildLogger(json) = nil")
	}
}

func TestDefaultDataDir_XDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	if got := DefaultDataDir(); got != "/tmp/xdg-data/feedwire" {
		t.Errorf("DefaultDataDir() = %q", got)
	}
}
