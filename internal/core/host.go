package core

// Vault implements Host over the on-disk vault and its sqlite index.
type Vault struct {
	path string
}

// NewVault returns a Host for the vault rooted at vaultPath. The index
// must have been built (vattach build) before the engine can see notes.
func NewVault(vaultPath string) *Vault {
	return &Vault{path: vaultPath}
}

// Path returns the vault root.
func (v *Vault) Path() string { return v.path }

// FileCache returns the ordered reference index of a note, or false when
// the note is not indexed (yet).
func (v *Vault) FileCache(notePath string) (*FileCache, bool) {
	db, err := openIndex(v.path)
	if err != nil {
		return nil, false
	}
	defer db.Close()

	var sourceID int64
	err = db.QueryRow("SELECT id FROM nodes WHERE node_key = ?", noteKey(NormalizePath(notePath))).Scan(&sourceID)
	if err != nil {
		return nil, false
	}

	rows, err := db.Query(
		"SELECT target, subpath, is_embed FROM refs WHERE source_id = ? ORDER BY is_embed DESC, seq",
		sourceID)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	fc := &FileCache{}
	pos := 0
	for rows.Next() {
		var target, subpath string
		var isEmbed int
		if err := rows.Scan(&target, &subpath, &isEmbed); err != nil {
			return nil, false
		}
		pos++
		r := Ref{Target: target + subpath, Position: pos}
		if isEmbed == 1 {
			fc.Embeds = append(fc.Embeds, r)
		} else {
			fc.Links = append(fc.Links, r)
		}
	}
	if rows.Err() != nil {
		return nil, false
	}
	return fc, true
}

// ResolveRef resolves a link target written in fromPath to a vault path.
func (v *Vault) ResolveRef(target, fromPath string) (string, bool) {
	db, err := openIndex(v.path)
	if err != nil {
		return "", false
	}
	defer db.Close()
	return resolveTargetDB(db, NormalizePath(fromPath), target)
}

// Stat reports what occupies a vault-relative path.
func (v *Vault) Stat(path string) EntryKind {
	return Stat(v.path, path)
}

// CreateFolder creates a vault-relative folder recursively.
func (v *Vault) CreateFolder(path string) error {
	return CreateFolder(v.path, path)
}

// Rename moves a file, rewriting all referencing links (MoveFile).
func (v *Vault) Rename(from, to string) error {
	_, err := MoveFile(v.path, from, to)
	return err
}

// Notes lists all indexed note paths.
func (v *Vault) Notes() ([]string, error) {
	return Notes(v.path)
}

var _ Host = (*Vault)(nil)
