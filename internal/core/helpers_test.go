package core

import (
	"os"
	"path/filepath"
	"testing"
)

// buildVault creates a temp vault from a path→content map and builds its
// index.
func buildVault(t *testing.T, files map[string]string) string {
	t.Helper()
	vault := writeVault(t, files)
	if err := Build(vault); err != nil {
		t.Fatalf("build: %v", err)
	}
	return vault
}

// writeVault creates a temp vault from a path→content map without indexing.
func writeVault(t *testing.T, files map[string]string) string {
	t.Helper()
	vault := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(vault, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return vault
}

func readNote(t *testing.T, vault, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(vault, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func vaultFileExists(vault, rel string) bool {
	return fileExists(filepath.Join(vault, filepath.FromSlash(rel)))
}

// defaultTestConfig returns a configuration with all defaults applied.
func defaultTestConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
