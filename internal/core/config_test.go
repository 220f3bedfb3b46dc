package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, vault, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(vault, configFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !*cfg.AutoRename {
		t.Error("auto_rename should default to true")
	}
	if *cfg.DebounceDelayMs != DefaultDebounceDelayMs {
		t.Errorf("debounce = %d, want %d", *cfg.DebounceDelayMs, DefaultDebounceDelayMs)
	}
	if cfg.Scope.Mode != ScopeVault {
		t.Errorf("scope mode = %q, want %q", cfg.Scope.Mode, ScopeVault)
	}
	if cfg.Defaults.NamePattern != DefaultNamePattern {
		t.Errorf("name pattern = %q, want %q", cfg.Defaults.NamePattern, DefaultNamePattern)
	}
	if *cfg.Limits.CollisionAttempts != DefaultCollisionAttempts {
		t.Errorf("collision attempts = %d, want %d", *cfg.Limits.CollisionAttempts, DefaultCollisionAttempts)
	}
	if *cfg.Limits.CacheRetries != DefaultCacheRetries {
		t.Errorf("cache retries = %d, want %d", *cfg.Limits.CacheRetries, DefaultCacheRetries)
	}
	if *cfg.Limits.CacheRetryDelayMs != DefaultCacheRetryDelayMs {
		t.Errorf("cache retry delay = %d, want %d", *cfg.Limits.CacheRetryDelayMs, DefaultCacheRetryDelayMs)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	vault := t.TempDir()
	writeConfig(t, vault, `
auto_rename: false
scope:
  mode: include
  paths: ["Projects"]
rules:
  - id: images
    extensions: [png, jpg]
    name_pattern: "${filename} ${original}"
    path_pattern: "./assets"
`)
	cfg, err := LoadConfig(vault)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg.AutoRename {
		t.Error("auto_rename should be false")
	}
	// Unset fields keep their defaults.
	if *cfg.DebounceDelayMs != DefaultDebounceDelayMs {
		t.Errorf("debounce = %d, want default", *cfg.DebounceDelayMs)
	}
	if cfg.Defaults.NamePattern != DefaultNamePattern {
		t.Errorf("name pattern = %q, want default", cfg.Defaults.NamePattern)
	}
	if len(cfg.Rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(cfg.Rules))
	}
	// An absent rule location defaults to pattern.
	if cfg.Rules[0].Location != LocationPattern {
		t.Errorf("rule location = %q, want %q", cfg.Rules[0].Location, LocationPattern)
	}
	if cfg.Scope.Mode != ScopeInclude || len(cfg.Scope.Paths) != 1 {
		t.Errorf("scope not preserved: %+v", cfg.Scope)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad scope mode", "scope:\n  mode: sometimes\n", "unknown scope mode"},
		{"bad rule location", "rules:\n  - id: x\n    extensions: [png]\n    location: nowhere\n", "unknown location"},
		{"negative debounce", "debounce_delay_ms: -1\n", "must not be negative"},
		{"negative limit", "limits:\n  cache_retries: -5\n", "must not be negative"},
		{"broken yaml", "rules: [\n", "vattach.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vault := t.TempDir()
			writeConfig(t, vault, tt.content)
			_, err := LoadConfig(vault)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	vault := t.TempDir()
	off := false
	delay := 250
	cfg := &Config{
		AutoRename:      &off,
		DebounceDelayMs: &delay,
		Rules: []Rule{
			{ID: "images", Extensions: []string{"png"}, PathPattern: "./assets", Location: LocationPattern},
		},
	}
	if err := SaveConfig(vault, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadConfig(vault)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *got.AutoRename || *got.DebounceDelayMs != 250 {
		t.Errorf("round trip lost fields: auto=%v delay=%d", *got.AutoRename, *got.DebounceDelayMs)
	}
	if len(got.Rules) != 1 || got.Rules[0].PathPattern != "./assets" {
		t.Errorf("round trip lost rules: %+v", got.Rules)
	}
}
