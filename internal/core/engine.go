package core

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Ref is one reference discovered in a note.
type Ref struct {
	Target   string // link target as written, fragment removed
	Position int    // 1-based position in the combined embed+link list
}

// FileCache is the ordered reference index of one note: embeds first,
// then links.
type FileCache struct {
	Embeds []Ref
	Links  []Ref
}

// Host provides the vault collaborators the engine depends on. The sqlite
// Vault implements it; tests substitute an in-memory fake.
type Host interface {
	// FileCache returns a note's reference index, or false when the note
	// is not indexed yet.
	FileCache(notePath string) (*FileCache, bool)
	// ResolveRef resolves a link target written in fromPath to a concrete
	// vault-relative path.
	ResolveRef(target, fromPath string) (string, bool)
	// Stat reports what occupies a vault-relative path.
	Stat(path string) EntryKind
	// CreateFolder creates a folder recursively; it fails when a file
	// occupies the path.
	CreateFolder(path string) error
	// Rename moves a file and rewrites all referencing links.
	Rename(from, to string) error
	// Notes lists all note paths in deterministic order.
	Notes() ([]string, error)
}

// Engine reconciles a note's attachments with the configured rules: it
// discovers references, computes deterministic collision-free destinations
// and applies renames one file at a time. The in-flight set makes
// overlapping triggers for the same note a no-op.
type Engine struct {
	host Host
	cfg  *Config

	mu       sync.Mutex
	inflight map[string]struct{}

	logf  func(format string, args ...any)
	now   func() time.Time
	sleep func(time.Duration)
}

// NewEngine creates an Engine over a host and configuration.
func NewEngine(host Host, cfg *Config) *Engine {
	return &Engine{
		host:     host,
		cfg:      cfg,
		inflight: make(map[string]struct{}),
		logf:     log.Printf,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// SetLogger redirects diagnostic output. Per-attachment failures are
// diagnostic only; they never abort a pass.
func (e *Engine) SetLogger(logf func(format string, args ...any)) {
	e.logf = logf
}

func (e *Engine) acquire(notePath string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inflight[notePath]; ok {
		return false
	}
	e.inflight[notePath] = struct{}{}
	return true
}

func (e *Engine) release(notePath string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, notePath)
}

// waitForCache polls the host's reference index for a note. Returns nil
// when the index never became available within the configured bound.
func (e *Engine) waitForCache(notePath string) *FileCache {
	retries := *e.cfg.Limits.CacheRetries
	delay := time.Duration(*e.cfg.Limits.CacheRetryDelayMs) * time.Millisecond
	for i := 0; ; i++ {
		if fc, ok := e.host.FileCache(notePath); ok {
			return fc
		}
		if i >= retries {
			return nil
		}
		e.sleep(delay)
	}
}

// ProcessNote runs one reconciliation pass over a note and returns the
// number of attachments actually renamed. oldName is the note's previous
// basename (without extension) when the pass was triggered by a rename,
// "" otherwise. Soft failures (no index, guard hit, nothing referenced)
// return 0.
func (e *Engine) ProcessNote(notePath, oldName string) int {
	notePath = NormalizePath(notePath)
	if !e.acquire(notePath) {
		return 0
	}
	defer e.release(notePath)

	fc := e.waitForCache(notePath)
	if fc == nil {
		return 0
	}
	refs := make([]Ref, 0, len(fc.Embeds)+len(fc.Links))
	refs = append(refs, fc.Embeds...)
	refs = append(refs, fc.Links...)
	if len(refs) == 0 {
		return 0
	}

	noteBase := baseName(notePath)
	date := e.now().Format("20060102")
	renamed := 0
	processed := make(map[string]bool)
	folderOK := make(map[string]bool)

	for _, ref := range refs {
		target, ok := e.host.ResolveRef(stripFragment(ref.Target), notePath)
		if !ok || isMarkdown(target) || target == notePath {
			continue
		}
		// First occurrence wins; duplicate references are not reprocessed.
		if processed[target] {
			continue
		}
		if e.host.Stat(target) != EntryFile {
			continue // vanished since discovery
		}

		ext := strings.TrimPrefix(filepath.Ext(target), ".")
		rule := MatchRule(e.cfg.Rules, ext)
		if rule == nil && len(e.cfg.Rules) > 0 {
			// A non-empty rule list is an allowlist: unmatched
			// extensions are left alone.
			continue
		}

		namePattern := e.cfg.Defaults.NamePattern
		pathPattern := e.cfg.Defaults.PathPattern
		location := LocationPattern
		if rule != nil {
			if rule.NamePattern != "" {
				namePattern = rule.NamePattern
			}
			if rule.PathPattern != "" {
				pathPattern = rule.PathPattern
			}
			location = rule.Location
		}

		// Strip the previous note name and the current one: a pass over
		// an already-conforming attachment must converge on the same
		// name, not stack another copy of the note name onto it.
		cleaned := StripOldNoteName(baseName(target), oldName)
		cleaned = StripOldNoteName(cleaned, noteBase)
		vars := TemplateVars{
			Filename:  noteBase,
			Original:  cleaned,
			Extension: ext,
			Date:      date,
			Index:     fmt.Sprintf("%02d", ref.Position),
		}
		base := SanitizeName(ExpandPattern(namePattern, vars))
		if base == "" {
			base = "attachment"
		}
		newName := base
		if ext != "" {
			newName += "." + ext
		}

		var folder string
		if location == LocationOriginal {
			folder = parentDir(target)
		} else {
			switch pp := ExpandPattern(pathPattern, vars); {
			case pp == "":
				folder = parentDir(target)
			case strings.HasPrefix(pp, "./"):
				folder = NormalizePath(joinPath(parentDir(notePath), strings.TrimPrefix(pp, "./")))
			default:
				folder = NormalizePath(pp)
			}
		}

		desired := joinPath(folder, newName)
		if desired == target {
			processed[target] = true
			continue
		}

		final := resolveCollision(e.host.Stat, desired, target, folder, base, ext, *e.cfg.Limits.CollisionAttempts)
		if final == target {
			processed[target] = true
			continue
		}

		if location != LocationOriginal && folder != "" && !folderOK[folder] {
			switch e.host.Stat(folder) {
			case EntryFolder:
				folderOK[folder] = true
			case EntryFile:
				e.logf("vattach: %s: target folder %s is a file", target, folder)
				continue
			case EntryMissing:
				if err := e.host.CreateFolder(folder); err != nil {
					e.logf("vattach: %s: %v", target, err)
					continue
				}
				folderOK[folder] = true
			}
		}

		if err := e.host.Rename(target, final); err != nil {
			e.logf("vattach: rename %s -> %s: %v", target, final, err)
			continue
		}
		renamed++
		processed[target] = true
		processed[final] = true
	}
	return renamed
}
