package core

import (
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Build parses the vault and creates the index DB from scratch.
// Notes (.md) and assets (every other non-hidden file) become nodes; each
// note's embeds and links become refs rows, resolved where possible.
func Build(vaultPath string) error {
	if _, err := ensureDataDir(vaultPath); err != nil {
		return err
	}

	notes, assets, err := collectVaultFiles(vaultPath)
	if err != nil {
		return err
	}

	tmpPath := dbPath(vaultPath) + ".tmp"
	_ = os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	db, err := openDBAt(tmpPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := initSchema(db); err != nil {
		return err
	}

	// Pass 1: insert all nodes so resolution sees the whole vault.
	for _, rel := range append(append([]string{}, notes...), assets...) {
		info, err := os.Stat(filepath.Join(vaultPath, rel))
		if err != nil {
			return err
		}
		if _, err := upsertNode(db, rel, info.ModTime().Unix()); err != nil {
			return err
		}
	}

	// Pass 2: parse notes and insert refs.
	for _, rel := range notes {
		if err := reindexNoteRefs(db, vaultPath, rel); err != nil {
			return err
		}
	}

	if err := db.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dbPath(vaultPath))
}

// Refresh updates the existing index for the given vault-relative paths.
// Files absent from disk are dropped; present notes are re-parsed.
// Used by the watch daemon after write/create/delete events.
func Refresh(vaultPath string, files []string) error {
	db, err := openIndex(vaultPath)
	if err != nil {
		return err
	}
	defer db.Close()

	seen := make(map[string]bool)
	var present []string
	for _, f := range files {
		rel := NormalizePath(f)
		if rel == "" || seen[rel] || isHidden(rel) {
			continue
		}
		seen[rel] = true

		info, err := os.Stat(filepath.Join(vaultPath, rel))
		if os.IsNotExist(err) {
			if err := deleteNode(db, rel); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if info.IsDir() {
			continue
		}
		if _, err := upsertNode(db, rel, info.ModTime().Unix()); err != nil {
			return err
		}
		present = append(present, rel)
	}

	for _, rel := range present {
		if !isMarkdown(rel) {
			continue
		}
		if err := reindexNoteRefs(db, vaultPath, rel); err != nil {
			return err
		}
	}
	return nil
}

// reindexNoteRefs replaces all refs originating from one note.
func reindexNoteRefs(db dbExecer, vaultPath, rel string) error {
	var sourceID int64
	if err := db.QueryRow("SELECT id FROM nodes WHERE node_key = ?", noteKey(rel)).Scan(&sourceID); err != nil {
		return err
	}
	if err := deleteRefsFrom(db, sourceID); err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(vaultPath, rel))
	if err != nil {
		return err
	}
	for seq, r := range parseRefs(string(content)) {
		resolved, _ := resolveTargetDB(db, rel, r.target)
		if err := insertRef(db, sourceID, r, resolved, seq); err != nil {
			return err
		}
	}
	return nil
}

// collectVaultFiles walks the vault and returns note and asset paths
// (vault-relative, sorted). Hidden files and directories are skipped.
func collectVaultFiles(vaultPath string) (notes, assets []string, err error) {
	err = filepath.Walk(vaultPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := info.Name()
		if strings.HasPrefix(name, ".") && path != vaultPath {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(vaultPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if isMarkdown(rel) {
			notes = append(notes, rel)
		} else {
			assets = append(assets, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(notes)
	sort.Strings(assets)
	return notes, assets, nil
}

// resolveTargetDB resolves a link target (fragment already removed) written
// in fromPath to a concrete vault-relative path. Basename targets resolve
// against note names first, then asset filenames; an ambiguous basename
// resolves to a root-level file when one exists, otherwise fails.
func resolveTargetDB(db dbExecer, fromPath, target string) (string, bool) {
	if target == "" {
		return "", false
	}

	if isRelativeTarget(target) {
		if escapesVault(fromPath, target) {
			return "", false
		}
		resolved := NormalizePath(filepath.Join(filepath.Dir(fromPath), target))
		return lookupPath(db, resolved)
	}

	if strings.HasPrefix(target, "/") {
		return lookupPath(db, strings.TrimPrefix(target, "/"))
	}

	if strings.Contains(target, "/") {
		return lookupPath(db, target)
	}

	if p, ok := lookupName(db, "note", target); ok {
		return p, true
	}
	return lookupName(db, "asset", target)
}

// lookupPath finds a node by exact vault path, also trying "<path>.md"
// for extensionless note targets.
func lookupPath(db dbExecer, p string) (string, bool) {
	for _, cand := range []string{p, p + ".md"} {
		var path string
		err := db.QueryRow("SELECT path FROM nodes WHERE lower(path) = ?", strings.ToLower(cand)).Scan(&path)
		if err == nil {
			return path, true
		}
		if err != sql.ErrNoRows {
			return "", false
		}
	}
	return "", false
}

// lookupName finds a node by indexed name (case-insensitive). Multiple
// matches fall back to the root-priority rule.
func lookupName(db dbExecer, kind, name string) (string, bool) {
	rows, err := db.Query("SELECT path FROM nodes WHERE type = ? AND lower(name) = ?", kind, strings.ToLower(name))
	if err != nil {
		return "", false
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return "", false
		}
		paths = append(paths, p)
	}
	if rows.Err() != nil {
		return "", false
	}

	switch len(paths) {
	case 0:
		return "", false
	case 1:
		return paths[0], true
	}
	for _, p := range paths {
		if !strings.Contains(p, "/") {
			return p, true
		}
	}
	return "", false
}

// Notes returns all indexed note paths in deterministic order.
func Notes(vaultPath string) ([]string, error) {
	db, err := openIndex(vaultPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT path FROM nodes WHERE type = 'note' ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		notes = append(notes, p)
	}
	return notes, rows.Err()
}

// StatsResult contains aggregate index counts.
type StatsResult struct {
	Notes  int `json:"notes"`
	Assets int `json:"assets"`
	Refs   int `json:"refs"`
}

// Stats returns aggregate statistics for the indexed vault.
func Stats(vaultPath string) (*StatsResult, error) {
	db, err := openIndex(vaultPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var r StatsResult
	if err := db.QueryRow("SELECT COUNT(*) FROM nodes WHERE type='note'").Scan(&r.Notes); err != nil {
		return nil, err
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM nodes WHERE type='asset'").Scan(&r.Assets); err != nil {
		return nil, err
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM refs").Scan(&r.Refs); err != nil {
		return nil, err
	}
	return &r, nil
}
