package core

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	dataDirName = ".vattach"
	dbFileName  = "index.sqlite"
)

func dbPath(vaultPath string) string {
	return filepath.Join(vaultPath, dataDirName, dbFileName)
}

func ensureDataDir(vaultPath string) (string, error) {
	dir := filepath.Join(vaultPath, dataDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func openDBAt(path string) (*sql.DB, error) {
	return sql.Open("sqlite", fmt.Sprintf("file:%s", path))
}

// openIndex opens the index DB for a vault, failing if it was never built.
func openIndex(vaultPath string) (*sql.DB, error) {
	dbp := dbPath(vaultPath)
	if _, err := os.Stat(dbp); os.IsNotExist(err) {
		return nil, fmt.Errorf("index not found: run 'vattach build' first")
	}
	return openDBAt(dbp)
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id       INTEGER PRIMARY KEY,
			node_key TEXT NOT NULL UNIQUE,
			type     TEXT NOT NULL,
			name     TEXT NOT NULL,
			path     TEXT NOT NULL,
			mtime    INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_type_name ON nodes(type, name);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_path ON nodes(path);`,
		`CREATE TABLE IF NOT EXISTS refs (
			id            INTEGER PRIMARY KEY,
			source_id     INTEGER NOT NULL,
			target        TEXT NOT NULL,
			resolved_path TEXT NOT NULL DEFAULT '',
			raw_link      TEXT NOT NULL,
			subpath       TEXT,
			is_embed      INTEGER NOT NULL DEFAULT 0,
			seq           INTEGER NOT NULL,
			line          INTEGER,
			FOREIGN KEY(source_id) REFERENCES nodes(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_refs_source ON refs(source_id);`,
		`CREATE INDEX IF NOT EXISTS idx_refs_resolved ON refs(resolved_path);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func noteKey(path string) string {
	return "note:path:" + strings.ToLower(path)
}

func assetKey(path string) string {
	return "asset:path:" + strings.ToLower(path)
}

// nodeKeyFor picks the key namespace by file kind.
func nodeKeyFor(path string) string {
	if isMarkdown(path) {
		return noteKey(path)
	}
	return assetKey(path)
}

// dbExecer is satisfied by both *sql.DB and *sql.Tx.
type dbExecer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// nodeNameFor returns the indexed name for a path: notes use the basename
// without extension (link spelling), assets the filename with extension.
func nodeNameFor(path string) string {
	if isMarkdown(path) {
		return baseName(path)
	}
	return fileName(path)
}

func upsertNode(db dbExecer, path string, mtime int64) (int64, error) {
	kind := "asset"
	if isMarkdown(path) {
		kind = "note"
	}
	_, err := db.Exec(
		`INSERT INTO nodes (node_key, type, name, path, mtime)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(node_key) DO UPDATE SET
		   name=excluded.name,
		   path=excluded.path,
		   mtime=excluded.mtime`,
		nodeKeyFor(path), kind, nodeNameFor(path), path, mtime)
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.QueryRow("SELECT id FROM nodes WHERE node_key = ?", nodeKeyFor(path)).Scan(&id)
	return id, err
}

func insertRef(db dbExecer, sourceID int64, r refOccur, resolved string, seq int) error {
	embed := 0
	if r.isEmbed {
		embed = 1
	}
	_, err := db.Exec(
		`INSERT INTO refs (source_id, target, resolved_path, raw_link, subpath, is_embed, seq, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sourceID, r.target, resolved, r.rawLink, r.subpath, embed, seq, r.line)
	return err
}

func deleteRefsFrom(db dbExecer, sourceID int64) error {
	_, err := db.Exec("DELETE FROM refs WHERE source_id = ?", sourceID)
	return err
}

func deleteNode(db dbExecer, path string) error {
	var id int64
	err := db.QueryRow("SELECT id FROM nodes WHERE node_key = ?", nodeKeyFor(path)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if err := deleteRefsFrom(db, id); err != nil {
		return err
	}
	_, err = db.Exec("DELETE FROM nodes WHERE id = ?", id)
	return err
}
