package core

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = "vattach.yaml"

// Scope modes.
const (
	ScopeVault   = "vault"
	ScopeInclude = "include"
	ScopeExclude = "exclude"
)

// Location modes for renamed attachments.
const (
	LocationPattern  = "pattern"
	LocationOriginal = "original"
)

// Rule maps a set of file extensions to a naming/placement policy.
// Extensions match case-insensitively; the first rule in declared order
// that lists an extension wins.
type Rule struct {
	ID          string   `yaml:"id"`
	Label       string   `yaml:"label,omitempty"`
	Extensions  []string `yaml:"extensions"`
	NamePattern string   `yaml:"name_pattern,omitempty"`
	PathPattern string   `yaml:"path_pattern,omitempty"`
	Location    string   `yaml:"location,omitempty"` // pattern | original; absent → pattern
}

// ScopeConfig restricts which notes are processed.
type ScopeConfig struct {
	Mode  string   `yaml:"mode,omitempty"`
	Paths []string `yaml:"paths,omitempty"`
}

// DefaultPatterns apply when no rule matches and no rules are configured.
type DefaultPatterns struct {
	NamePattern string `yaml:"name_pattern,omitempty"`
	PathPattern string `yaml:"path_pattern,omitempty"` // empty = keep original folder
}

// Limits holds retry bounds. They are environment tuning knobs, not
// invariants, so they live in configuration.
type Limits struct {
	CollisionAttempts *int `yaml:"collision_attempts,omitempty"`
	CacheRetries      *int `yaml:"cache_retries,omitempty"`
	CacheRetryDelayMs *int `yaml:"cache_retry_delay_ms,omitempty"`
}

// Config represents the vattach.yaml configuration file.
type Config struct {
	AutoRename      *bool           `yaml:"auto_rename,omitempty"`
	DebounceDelayMs *int            `yaml:"debounce_delay_ms,omitempty"`
	Scope           ScopeConfig     `yaml:"scope,omitempty"`
	Defaults        DefaultPatterns `yaml:"defaults,omitempty"`
	Rules           []Rule          `yaml:"rules,omitempty"`
	Limits          Limits          `yaml:"limits,omitempty"`
}

// Default values merged in by LoadConfig.
const (
	DefaultNamePattern       = "${filename} ${original}"
	DefaultDebounceDelayMs   = 500
	DefaultCollisionAttempts = 500
	DefaultCacheRetries      = 10
	DefaultCacheRetryDelayMs = 100
)

// LoadConfig reads vattach.yaml from the vault root. A missing file yields
// the full default configuration; a partial file has defaults merged in
// per field (an absent rule location defaults to pattern).
func LoadConfig(vaultPath string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(filepath.Join(vaultPath, configFileName))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", configFileName, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configFileName, err)
	}
	return &cfg, nil
}

// SaveConfig writes the configuration back to the vault root.
func SaveConfig(vaultPath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(vaultPath, configFileName), data, 0o644)
}

func (c *Config) applyDefaults() {
	if c.AutoRename == nil {
		v := true
		c.AutoRename = &v
	}
	if c.DebounceDelayMs == nil {
		v := DefaultDebounceDelayMs
		c.DebounceDelayMs = &v
	}
	if c.Scope.Mode == "" {
		c.Scope.Mode = ScopeVault
	}
	if c.Defaults.NamePattern == "" {
		c.Defaults.NamePattern = DefaultNamePattern
	}
	for i := range c.Rules {
		if c.Rules[i].Location == "" {
			c.Rules[i].Location = LocationPattern
		}
	}
	if c.Limits.CollisionAttempts == nil {
		v := DefaultCollisionAttempts
		c.Limits.CollisionAttempts = &v
	}
	if c.Limits.CacheRetries == nil {
		v := DefaultCacheRetries
		c.Limits.CacheRetries = &v
	}
	if c.Limits.CacheRetryDelayMs == nil {
		v := DefaultCacheRetryDelayMs
		c.Limits.CacheRetryDelayMs = &v
	}
}

func (c *Config) validate() error {
	switch c.Scope.Mode {
	case ScopeVault, ScopeInclude, ScopeExclude:
	default:
		return fmt.Errorf("unknown scope mode: %s", c.Scope.Mode)
	}
	for _, r := range c.Rules {
		switch r.Location {
		case LocationPattern, LocationOriginal:
		default:
			return fmt.Errorf("rule %s: unknown location: %s", r.ID, r.Location)
		}
	}
	if *c.DebounceDelayMs < 0 {
		return fmt.Errorf("debounce_delay_ms must not be negative")
	}
	for _, v := range []*int{c.Limits.CollisionAttempts, c.Limits.CacheRetries, c.Limits.CacheRetryDelayMs} {
		if *v < 0 {
			return fmt.Errorf("limits must not be negative")
		}
	}
	return nil
}
