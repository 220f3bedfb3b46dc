package core

import (
	"strings"
	"testing"
)

// End-to-end: a renamed note's attachments are renamed on disk, the note's
// links are rewritten, and a second pass changes nothing.
func TestEngineOverVault(t *testing.T) {
	vault := buildVault(t, map[string]string{
		"Projects/Active/Note.md":     "![[Old-pic.png]]\n![[Other.png]]\n",
		"Projects/Active/Old-pic.png": "p1",
		"Projects/Active/Other.png":   "p2",
	})
	cfg := imageRuleConfig()
	engine := NewEngine(NewVault(vault), cfg)
	engine.SetLogger(func(format string, args ...any) {
		t.Errorf("unexpected engine diagnostic: "+format, args...)
	})

	if n := engine.ProcessNote("Projects/Active/Note.md", "Old"); n != 2 {
		t.Fatalf("renamed = %d, want 2", n)
	}
	if !vaultFileExists(vault, "Projects/Active/assets/Note pic.png") {
		t.Error("first attachment not at its destination")
	}
	if !vaultFileExists(vault, "Projects/Active/assets/Note Other.png") {
		t.Error("second attachment not at its destination")
	}
	content := readNote(t, vault, "Projects/Active/Note.md")
	if !strings.Contains(content, "![[Projects/Active/assets/Note pic.png]]") ||
		!strings.Contains(content, "![[Projects/Active/assets/Note Other.png]]") {
		t.Errorf("note links not rewritten: %q", content)
	}

	// Everything already conforms: the second pass is a no-op.
	if n := engine.ProcessNote("Projects/Active/Note.md", ""); n != 0 {
		t.Fatalf("second pass renamed %d, want 0", n)
	}
	if got := readNote(t, vault, "Projects/Active/Note.md"); got != content {
		t.Errorf("second pass changed the note: %q", got)
	}
}

// Two notes embedding attachments that collapse to the same name must not
// clobber each other: the collision resolver suffixes the second file.
func TestEngineOverVaultCollision(t *testing.T) {
	vault := buildVault(t, map[string]string{
		"Note.md": "![[a.png]]\n![[b.png]]\n",
		"a.png":   "a",
		"b.png":   "b",
	})
	cfg := imageRuleConfig()
	cfg.Rules[0].NamePattern = "${filename}"
	engine := NewEngine(NewVault(vault), cfg)

	if n := engine.ProcessNote("Note.md", ""); n != 2 {
		t.Fatalf("renamed = %d, want 2", n)
	}
	if !vaultFileExists(vault, "assets/Note.png") || !vaultFileExists(vault, "assets/Note 1.png") {
		t.Error("expected Note.png and the suffixed Note 1.png")
	}
	if readNote(t, vault, "assets/Note.png") != "a" || readNote(t, vault, "assets/Note 1.png") != "b" {
		t.Error("attachment contents were mixed up")
	}
}

func TestProcessAllOverVault(t *testing.T) {
	vault := buildVault(t, map[string]string{
		"Projects/One.md": "![[p1.png]]\n",
		"Projects/p1.png": "x",
		"Archive/Two.md":  "![[p2.png]]\n",
		"Archive/p2.png":  "y",
	})
	cfg := imageRuleConfig()
	cfg.Scope.Mode = ScopeExclude
	cfg.Scope.Paths = []string{"Archive"}

	host := NewVault(vault)
	res, err := ProcessAll(NewEngine(host, cfg), cfg, host)
	if err != nil {
		t.Fatalf("process all: %v", err)
	}
	if res.Notes != 1 || res.Renamed != 1 {
		t.Fatalf("result = %+v, want 1 note / 1 rename", res)
	}
	if !vaultFileExists(vault, "Projects/assets/One p1.png") {
		t.Error("in-scope attachment not renamed")
	}
	if !vaultFileExists(vault, "Archive/p2.png") {
		t.Error("excluded attachment was touched")
	}
}
