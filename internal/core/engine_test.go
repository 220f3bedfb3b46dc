package core

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeHost is an in-memory Host for engine tests.
type fakeHost struct {
	mu         sync.Mutex
	cache      map[string]*FileCache
	cacheMiss  int // FileCache misses before it starts answering
	cacheCalls int
	resolve    map[string]string
	entries    map[string]EntryKind
	renames    [][2]string
	renameErr  map[string]error
	notes      []string
	onResolve  func() // runs before each ResolveRef, outside the lock
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		cache:     make(map[string]*FileCache),
		resolve:   make(map[string]string),
		entries:   make(map[string]EntryKind),
		renameErr: make(map[string]error),
	}
}

// addAsset registers a target spelling, its resolved path and the file entry.
func (h *fakeHost) addAsset(target, path string) {
	h.resolve[target] = path
	h.entries[path] = EntryFile
}

func (h *fakeHost) FileCache(notePath string) (*FileCache, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cacheCalls++
	if h.cacheMiss > 0 {
		h.cacheMiss--
		return nil, false
	}
	fc, ok := h.cache[notePath]
	return fc, ok
}

func (h *fakeHost) ResolveRef(target, fromPath string) (string, bool) {
	if h.onResolve != nil {
		h.onResolve()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.resolve[target]
	return p, ok
}

func (h *fakeHost) Stat(path string) EntryKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[path]
}

func (h *fakeHost) CreateFolder(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries[path] == EntryFile {
		return fmt.Errorf("a file occupies %s", path)
	}
	h.entries[path] = EntryFolder
	return nil
}

func (h *fakeHost) Rename(from, to string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.renameErr[from]; err != nil {
		return err
	}
	h.renames = append(h.renames, [2]string{from, to})
	delete(h.entries, from)
	h.entries[to] = EntryFile
	return nil
}

func (h *fakeHost) Notes() ([]string, error) {
	return h.notes, nil
}

func (h *fakeHost) renamedTo(i int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renames[i][1]
}

func (h *fakeHost) renameCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.renames)
}

func imageRuleConfig() *Config {
	cfg := defaultTestConfig()
	cfg.Rules = []Rule{{
		ID:          "images",
		Extensions:  []string{"png"},
		NamePattern: "${filename} ${original}",
		PathPattern: "./assets",
		Location:    LocationPattern,
	}}
	return cfg
}

func TestProcessNoteRenamesIntoAssetFolder(t *testing.T) {
	host := newFakeHost()
	host.cache["Projects/Active/Note.md"] = &FileCache{
		Embeds: []Ref{
			{Target: "Old-pic.png", Position: 1},
			{Target: "Other.png", Position: 2},
		},
	}
	host.addAsset("Old-pic.png", "Projects/Active/Old-pic.png")
	host.addAsset("Other.png", "Projects/Active/Other.png")

	n := NewEngine(host, imageRuleConfig()).ProcessNote("Projects/Active/Note.md", "Old")
	if n != 2 {
		t.Fatalf("renamed = %d, want 2", n)
	}
	if got := host.renamedTo(0); got != "Projects/Active/assets/Note pic.png" {
		t.Errorf("first rename = %q", got)
	}
	if got := host.renamedTo(1); got != "Projects/Active/assets/Note Other.png" {
		t.Errorf("second rename = %q", got)
	}
	if host.entries["Projects/Active/assets"] != EntryFolder {
		t.Error("asset folder was not created")
	}
}

// A second pass over already-conforming attachments must rename nothing.
func TestProcessNoteIdempotent(t *testing.T) {
	host := newFakeHost()
	host.cache["Projects/Active/Note.md"] = &FileCache{
		Embeds: []Ref{
			{Target: "Projects/Active/assets/Note pic.png", Position: 1},
			{Target: "Projects/Active/assets/Note Other.png", Position: 2},
		},
	}
	host.addAsset("Projects/Active/assets/Note pic.png", "Projects/Active/assets/Note pic.png")
	host.addAsset("Projects/Active/assets/Note Other.png", "Projects/Active/assets/Note Other.png")
	host.entries["Projects/Active/assets"] = EntryFolder

	n := NewEngine(host, imageRuleConfig()).ProcessNote("Projects/Active/Note.md", "")
	if n != 0 {
		t.Fatalf("renamed = %d, want 0 (renames: %v)", n, host.renames)
	}
}

func TestProcessNoteAllowlist(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{{Target: "doc.pdf", Position: 1}},
	}
	host.addAsset("doc.pdf", "doc.pdf")

	// Rules list only png; pdf is untouched.
	n := NewEngine(host, imageRuleConfig()).ProcessNote("Note.md", "")
	if n != 0 || host.renameCount() != 0 {
		t.Fatalf("renamed = %d (%v), want 0", n, host.renames)
	}
}

func TestProcessNoteNoRulesUsesDefaults(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{{Target: "pics/img.png", Position: 1}},
	}
	host.addAsset("pics/img.png", "pics/img.png")

	// No rules: every attachment is renamed with the default name pattern,
	// and an empty path pattern keeps the original folder.
	n := NewEngine(host, defaultTestConfig()).ProcessNote("Note.md", "")
	if n != 1 {
		t.Fatalf("renamed = %d, want 1", n)
	}
	if got := host.renamedTo(0); got != "pics/Note img.png" {
		t.Errorf("rename = %q, want pics/Note img.png", got)
	}
}

func TestProcessNoteLocationOriginal(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{{Target: "pics/img.png", Position: 1}},
	}
	host.addAsset("pics/img.png", "pics/img.png")

	cfg := defaultTestConfig()
	cfg.Rules = []Rule{{
		ID:          "images",
		Extensions:  []string{"png"},
		NamePattern: "${filename} ${original}",
		PathPattern: "./assets", // ignored with location original
		Location:    LocationOriginal,
	}}
	n := NewEngine(host, cfg).ProcessNote("Note.md", "")
	if n != 1 {
		t.Fatalf("renamed = %d, want 1", n)
	}
	if got := host.renamedTo(0); got != "pics/Note img.png" {
		t.Errorf("rename = %q, want the original folder kept", got)
	}
	if _, ok := host.entries["assets"]; ok {
		t.Error("no folder should be created with location original")
	}
}

func TestProcessNoteCollisionSuffix(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{
			{Target: "a.png", Position: 1},
			{Target: "b.png", Position: 2},
		},
	}
	host.addAsset("a.png", "a.png")
	host.addAsset("b.png", "b.png")

	cfg := imageRuleConfig()
	cfg.Rules[0].NamePattern = "${filename}" // both collapse to the same name
	n := NewEngine(host, cfg).ProcessNote("Note.md", "")
	if n != 2 {
		t.Fatalf("renamed = %d, want 2", n)
	}
	if got := host.renamedTo(0); got != "assets/Note.png" {
		t.Errorf("first rename = %q", got)
	}
	if got := host.renamedTo(1); got != "assets/Note 1.png" {
		t.Errorf("second rename = %q, want the suffixed name", got)
	}
}

func TestProcessNoteIndexVariable(t *testing.T) {
	host := newFakeHost()
	// Embeds come before links in the combined order.
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{{Target: "a.png", Position: 1}},
		Links:  []Ref{{Target: "b.png", Position: 2}},
	}
	host.addAsset("a.png", "a.png")
	host.addAsset("b.png", "b.png")

	cfg := imageRuleConfig()
	cfg.Rules[0].NamePattern = "${filename} ${index}"
	n := NewEngine(host, cfg).ProcessNote("Note.md", "")
	if n != 2 {
		t.Fatalf("renamed = %d, want 2", n)
	}
	if got := host.renamedTo(0); got != "assets/Note 01.png" {
		t.Errorf("first rename = %q", got)
	}
	if got := host.renamedTo(1); got != "assets/Note 02.png" {
		t.Errorf("second rename = %q", got)
	}
}

func TestProcessNoteDuplicateReferences(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{
			{Target: "a.png", Position: 1},
			{Target: "a.png", Position: 2},
		},
	}
	host.addAsset("a.png", "a.png")

	n := NewEngine(host, imageRuleConfig()).ProcessNote("Note.md", "")
	if n != 1 {
		t.Fatalf("renamed = %d, want 1 (first occurrence wins)", n)
	}
}

func TestProcessNoteSkipsNotesAndVanished(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Links: []Ref{
			{Target: "Other", Position: 1},
			{Target: "gone.png", Position: 2},
		},
	}
	host.resolve["Other"] = "Other.md"
	host.resolve["gone.png"] = "gone.png" // resolvable but not on disk

	n := NewEngine(host, imageRuleConfig()).ProcessNote("Note.md", "")
	if n != 0 || host.renameCount() != 0 {
		t.Fatalf("renamed = %d (%v), want 0", n, host.renames)
	}
}

func TestProcessNoteRenameFailureContinues(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{
			{Target: "a.png", Position: 1},
			{Target: "b.png", Position: 2},
		},
	}
	host.addAsset("a.png", "a.png")
	host.addAsset("b.png", "b.png")
	host.renameErr["a.png"] = fmt.Errorf("disk full")

	var logged []string
	e := NewEngine(host, imageRuleConfig())
	e.SetLogger(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	})
	n := e.ProcessNote("Note.md", "")
	if n != 1 {
		t.Fatalf("renamed = %d, want 1 (failure skipped)", n)
	}
	if len(logged) != 1 || !strings.Contains(logged[0], "disk full") {
		t.Errorf("logged = %v, want one rename failure", logged)
	}
}

func TestProcessNoteTargetFolderIsFile(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{{Target: "a.png", Position: 1}},
	}
	host.addAsset("a.png", "a.png")
	host.entries["assets"] = EntryFile

	e := NewEngine(host, imageRuleConfig())
	e.SetLogger(func(string, ...any) {})
	if n := e.ProcessNote("Note.md", ""); n != 0 {
		t.Fatalf("renamed = %d, want 0 when a file occupies the folder", n)
	}
}

// A pass triggered while the same note is being processed must be dropped.
func TestProcessNoteInFlightGuard(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{{Target: "a.png", Position: 1}},
	}
	host.addAsset("a.png", "a.png")

	e := NewEngine(host, imageRuleConfig())
	reentered := false
	host.onResolve = func() {
		if reentered {
			return
		}
		reentered = true
		if n := e.ProcessNote("Note.md", ""); n != 0 {
			t.Errorf("reentrant pass renamed %d, want 0", n)
		}
	}
	if n := e.ProcessNote("Note.md", ""); n != 1 {
		t.Fatalf("renamed = %d, want 1", n)
	}
	if !reentered {
		t.Fatal("reentrant call never happened")
	}
}

func TestProcessNoteWaitsForCache(t *testing.T) {
	host := newFakeHost()
	host.cache["Note.md"] = &FileCache{
		Embeds: []Ref{{Target: "a.png", Position: 1}},
	}
	host.addAsset("a.png", "a.png")
	host.cacheMiss = 3

	e := NewEngine(host, imageRuleConfig())
	slept := 0
	e.sleep = func(time.Duration) { slept++ }
	if n := e.ProcessNote("Note.md", ""); n != 1 {
		t.Fatalf("renamed = %d, want 1 after cache retries", n)
	}
	if slept != 3 {
		t.Errorf("slept %d times, want 3", slept)
	}
}

func TestProcessNoteCacheNeverArrives(t *testing.T) {
	host := newFakeHost()
	host.cacheMiss = 1000

	cfg := imageRuleConfig()
	two := 2
	cfg.Limits.CacheRetries = &two
	e := NewEngine(host, cfg)
	e.sleep = func(time.Duration) {}
	if n := e.ProcessNote("Note.md", ""); n != 0 {
		t.Fatalf("renamed = %d, want 0 on cache timeout", n)
	}
	if host.cacheCalls != 3 {
		t.Errorf("cache polled %d times, want 3 (initial + 2 retries)", host.cacheCalls)
	}
}
