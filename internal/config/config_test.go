package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Defaults.Priority != "medium" {
		t.Fatalf("expected medium default priority, got %s", cfg.Defaults.Priority)
	}
	if !cfg.Hints.Enabled {
		t.Fatalf("hints should default on")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Defaults.MaxActionable != 10 {
		t.Fatalf("expected default max_actionable, got %d", cfg.Defaults.MaxActionable)
	}
}

func TestLoadOverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crusade.yml")
	if err := os.WriteFile(path, []byte("defaults:\n  priority: high\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Defaults.Priority != "high" {
		t.Fatalf("expected override, got %s", cfg.Defaults.Priority)
	}
	// unset fields keep their defaults
	if cfg.Server.BasePath != "/v0" {
		t.Fatalf("expected default base path, got %s", cfg.Server.BasePath)
	}

	if err := os.WriteFile(path, []byte("defaults:\n  priority: urgent\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected validation error for unknown priority")
	}
}
