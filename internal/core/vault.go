package core

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EntryKind classifies what occupies a vault path.
type EntryKind int

const (
	// EntryMissing means nothing exists at the path.
	EntryMissing EntryKind = iota
	// EntryFile means a regular file occupies the path.
	EntryFile
	// EntryFolder means a directory occupies the path.
	EntryFolder
)

// Stat reports what occupies a vault-relative path.
func Stat(vaultPath, rel string) EntryKind {
	info, err := os.Stat(filepath.Join(vaultPath, filepath.FromSlash(rel)))
	if err != nil {
		return EntryMissing
	}
	if info.IsDir() {
		return EntryFolder
	}
	return EntryFile
}

// CreateFolder creates a vault-relative folder recursively. It fails when a
// regular file occupies the path or one of its ancestors.
func CreateFolder(vaultPath, rel string) error {
	if err := os.MkdirAll(filepath.Join(vaultPath, filepath.FromSlash(rel)), 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", rel, err)
	}
	return nil
}

// RewrittenLink records one link updated during a move.
type RewrittenLink struct {
	File    string `json:"file"`
	OldLink string `json:"old_link"`
	NewLink string `json:"new_link"`
}

// MoveResult reports the outcome of MoveFile.
type MoveResult struct {
	Rewritten []RewrittenLink `json:"rewritten"`
}

// MoveFile renames or relocates an indexed file (note or asset), rewriting
// every raw link in referencing notes, moving the file on disk, and
// updating the index in one transaction. Moving a note also recomputes its
// own relative links. Referencing notes are restored from backups when a
// later step fails.
func MoveFile(vaultPath, from, to string) (*MoveResult, error) {
	from = NormalizePath(from)
	to = NormalizePath(to)
	if from == to {
		return nil, fmt.Errorf("source and destination are the same: %s", from)
	}
	if isMarkdown(from) != isMarkdown(to) {
		return nil, fmt.Errorf("cannot change file kind: %s -> %s", from, to)
	}

	db, err := openIndex(vaultPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var nodeID int64
	err = db.QueryRow("SELECT id FROM nodes WHERE node_key = ?", nodeKeyFor(from)).Scan(&nodeID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file not registered: %s", from)
	}
	if err != nil {
		return nil, err
	}

	var existingID int64
	err = db.QueryRow("SELECT id FROM nodes WHERE node_key = ?", nodeKeyFor(to)).Scan(&existingID)
	if err == nil {
		return nil, fmt.Errorf("destination already registered: %s", to)
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	if !fileExists(filepath.Join(vaultPath, from)) {
		return nil, fmt.Errorf("source file not found on disk: %s", from)
	}
	if fileExists(filepath.Join(vaultPath, to)) {
		return nil, fmt.Errorf("destination already exists on disk: %s", to)
	}

	// Incoming refs from other notes.
	rows, err := db.Query(
		`SELECT r.id, r.raw_link, r.line, n.path
		 FROM refs r JOIN nodes n ON n.id = r.source_id
		 WHERE r.resolved_path = ?`, from)
	if err != nil {
		return nil, err
	}
	var incoming []rewriteEntry
	nameChanged := nodeNameFor(from) != nodeNameFor(to)
	for rows.Next() {
		var re rewriteEntry
		if err := rows.Scan(&re.refID, &re.rawLink, &re.line, &re.sourcePath); err != nil {
			rows.Close()
			return nil, err
		}
		if re.sourcePath == from {
			continue // the moved note's own links are handled below
		}
		// Basename links keep working when only the folder changed.
		if isBasenameRawLink(re.rawLink) && !nameChanged {
			continue
		}
		re.newRawLink = rewriteRawLink(re.rawLink, to)
		incoming = append(incoming, re)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Outgoing relative links of a moved note.
	var movedContent []byte
	var movedPerm os.FileMode
	var outgoing []rewriteEntry
	if isMarkdown(from) {
		full := filepath.Join(vaultPath, from)
		info, err := os.Stat(full)
		if err != nil {
			return nil, err
		}
		movedPerm = info.Mode().Perm()
		movedContent, err = os.ReadFile(full)
		if err != nil {
			return nil, err
		}
		for _, r := range parseRefs(string(movedContent)) {
			if !r.isRelative {
				continue
			}
			newRL, err := rewriteRelativeLink(r, from, to)
			if err != nil {
				return nil, err
			}
			if newRL != r.rawLink {
				outgoing = append(outgoing, rewriteEntry{rawLink: r.rawLink, newRawLink: newRL, line: r.line, sourcePath: to})
			}
		}
	}

	result := &MoveResult{}

	// Disk phase: rewrite referencing notes, rewrite the moved note, move.
	groups := make(map[string][]rewriteEntry)
	for _, re := range incoming {
		groups[re.sourcePath] = append(groups[re.sourcePath], re)
	}
	backups, err := applyRewrites(vaultPath, groups)
	if err != nil {
		return nil, err
	}
	rollbackDisk := func() { restoreBackups(vaultPath, backups) }

	var movedBackup *rewriteBackup
	if len(outgoing) > 0 {
		movedBackup = &rewriteBackup{path: from, content: movedContent, perm: movedPerm}
		lines := strings.Split(string(movedContent), "\n")
		for _, re := range outgoing {
			if re.line < 1 || re.line > len(lines) {
				continue
			}
			lines[re.line-1] = replaceOutsideInlineCode(lines[re.line-1], re.rawLink, re.newRawLink)
		}
		movedContent = []byte(strings.Join(lines, "\n"))
		if err := writeFilePreservePerm(filepath.Join(vaultPath, from), movedContent, movedPerm); err != nil {
			rollbackDisk()
			return nil, err
		}
	}
	if movedBackup != nil {
		prev := rollbackDisk
		rollbackDisk = func() {
			_ = writeFilePreservePerm(filepath.Join(vaultPath, from), movedBackup.content, movedBackup.perm)
			prev()
		}
	}

	toFull := filepath.Join(vaultPath, filepath.FromSlash(to))
	if err := os.MkdirAll(filepath.Dir(toFull), 0o755); err != nil {
		rollbackDisk()
		return nil, err
	}
	if err := os.Rename(filepath.Join(vaultPath, from), toFull); err != nil {
		rollbackDisk()
		return nil, err
	}

	// Index phase.
	tx, err := db.Begin()
	if err != nil {
		_ = os.Rename(toFull, filepath.Join(vaultPath, from))
		rollbackDisk()
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
			_ = os.Rename(toFull, filepath.Join(vaultPath, from))
			rollbackDisk()
		}
	}()

	info, err := os.Stat(toFull)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		"UPDATE nodes SET node_key = ?, name = ?, path = ?, mtime = ? WHERE id = ?",
		nodeKeyFor(to), nodeNameFor(to), to, info.ModTime().Unix(), nodeID); err != nil {
		return nil, err
	}
	for _, re := range incoming {
		if _, err := tx.Exec("UPDATE refs SET raw_link = ?, target = ? WHERE id = ?", re.newRawLink, to, re.refID); err != nil {
			return nil, err
		}
		result.Rewritten = append(result.Rewritten, RewrittenLink{File: re.sourcePath, OldLink: re.rawLink, NewLink: re.newRawLink})
	}
	if _, err := tx.Exec("UPDATE refs SET resolved_path = ? WHERE resolved_path = ?", to, from); err != nil {
		return nil, err
	}
	if isMarkdown(to) {
		if err := deleteRefsFrom(tx, nodeID); err != nil {
			return nil, err
		}
		for seq, r := range parseRefs(string(movedContent)) {
			resolved, _ := resolveTargetDB(tx, to, r.target)
			if err := insertRef(tx, nodeID, r, resolved, seq); err != nil {
				return nil, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	for _, re := range outgoing {
		result.Rewritten = append(result.Rewritten, RewrittenLink{File: to, OldLink: re.rawLink, NewLink: re.newRawLink})
	}
	return result, nil
}

// isBasenameRawLink reports whether a raw link addresses its target by bare
// name rather than by path.
func isBasenameRawLink(rawLink string) bool {
	body := rawLink
	if len(body) > 0 && body[0] == '!' {
		body = body[1:]
	}
	var inner string
	if strings.HasPrefix(body, "[[") && strings.HasSuffix(body, "]]") {
		inner = body[2 : len(body)-2]
		if idx := strings.IndexByte(inner, '|'); idx >= 0 {
			inner = inner[:idx]
		}
	} else {
		start := strings.Index(body, "](")
		if start < 0 || !strings.HasSuffix(body, ")") {
			return false
		}
		inner = body[start+2 : len(body)-1]
	}
	inner = stripFragment(inner)
	if inner == "" {
		return false
	}
	return !strings.Contains(inner, "/")
}
