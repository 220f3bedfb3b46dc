package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// rewriteBackup holds original file content for rollback on failure.
type rewriteBackup struct {
	path    string
	content []byte
	perm    os.FileMode
}

// rewriteEntry is one raw link in a referencing note that must change.
type rewriteEntry struct {
	refID      int64
	rawLink    string
	newRawLink string
	line       int
	sourcePath string
}

// rewriteRawLink rebuilds a raw link so it points at newPath, preserving
// the link form: embed marker, wikilink vs markdown, alias, fragment, and
// (for markdown links) whether the ".md" extension was spelled out.
func rewriteRawLink(rawLink, newPath string) string {
	embed := ""
	body := rawLink
	if strings.HasPrefix(body, "!") {
		embed = "!"
		body = body[1:]
	}

	if strings.HasPrefix(body, "[[") {
		inner := strings.TrimSuffix(strings.TrimPrefix(body, "[["), "]]")
		var alias, subpath string
		if idx := strings.Index(inner, "|"); idx >= 0 {
			alias = inner[idx:]
			inner = inner[:idx]
		}
		if idx := strings.Index(inner, "#"); idx >= 0 {
			subpath = inner[idx:]
		}
		target := newPath
		if isMarkdown(newPath) {
			target = strings.TrimSuffix(newPath, filepath.Ext(newPath))
		}
		return embed + "[[" + target + subpath + alias + "]]"
	}

	start := strings.Index(body, "](")
	if start < 0 {
		return rawLink
	}
	textPart := body[:start+2]
	urlPart := strings.TrimSuffix(body[start+2:], ")")
	var frag string
	if idx := strings.Index(urlPart, "#"); idx >= 0 {
		frag = urlPart[idx:]
		urlPart = urlPart[:idx]
	}
	target := newPath
	if isMarkdown(newPath) && !strings.HasSuffix(strings.ToLower(urlPart), ".md") {
		target = strings.TrimSuffix(newPath, filepath.Ext(newPath))
	}
	return embed + textPart + target + frag + ")"
}

// rewriteRelativeLink recomputes a relative link inside a moved note so it
// still reaches the same target from the note's new location.
func rewriteRelativeLink(r refOccur, from, to string) (string, error) {
	resolved := NormalizePath(filepath.Join(filepath.Dir(from), r.target))
	rel, err := filepath.Rel(filepath.Dir(to), resolved)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(NormalizePath(filepath.Join(filepath.Dir(to), rel)), "..") {
		return "", fmt.Errorf("rewritten link would escape vault: %s", r.rawLink)
	}
	if !strings.HasPrefix(rel, "..") {
		rel = "./" + rel
	}
	return rewriteRelativeTarget(r, rel), nil
}

// rewriteRelativeTarget splices a recomputed relative target into the raw
// link, keeping the original form.
func rewriteRelativeTarget(r refOccur, rel string) string {
	embed := ""
	body := r.rawLink
	if strings.HasPrefix(body, "!") {
		embed = "!"
		body = body[1:]
	}
	if r.isWiki {
		inner := strings.TrimSuffix(strings.TrimPrefix(body, "[["), "]]")
		var alias string
		if idx := strings.Index(inner, "|"); idx >= 0 {
			alias = inner[idx:]
		}
		return embed + "[[" + strings.TrimSuffix(rel, ".md") + r.subpath + alias + "]]"
	}
	start := strings.Index(body, "](")
	textPart := body[:start+2]
	urlPart := strings.TrimSuffix(body[start+2:], ")")
	if idx := strings.Index(urlPart, "#"); idx >= 0 {
		urlPart = urlPart[:idx]
	}
	hasMdExt := strings.HasSuffix(strings.ToLower(urlPart), ".md")
	if hasMdExt {
		if !strings.HasSuffix(strings.ToLower(rel), ".md") {
			rel += ".md"
		}
	} else {
		rel = strings.TrimSuffix(rel, ".md")
	}
	return embed + textPart + rel + r.subpath + ")"
}

// replaceOutsideInlineCode replaces occurrences of old with new in line,
// but only outside backtick-delimited inline code spans.
func replaceOutsideInlineCode(line, old, new string) string {
	var result strings.Builder
	i := 0
	for i < len(line) {
		if line[i] == '`' {
			end := strings.IndexByte(line[i+1:], '`')
			if end < 0 {
				result.WriteString(line[i:])
				return result.String()
			}
			span := line[i : i+1+end+1]
			result.WriteString(span)
			i += len(span)
			continue
		}
		if strings.HasPrefix(line[i:], old) {
			result.WriteString(new)
			i += len(old)
			continue
		}
		result.WriteByte(line[i])
		i++
	}
	return result.String()
}

// writeFilePreservePerm writes data with exact permission bits.
// os.WriteFile applies umask on creation, hence the extra Chmod.
func writeFilePreservePerm(path string, data []byte, perm os.FileMode) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

// restoreBackups restores files to their original content (best-effort).
func restoreBackups(vaultPath string, backups []rewriteBackup) {
	for _, b := range backups {
		_ = writeFilePreservePerm(filepath.Join(vaultPath, b.path), b.content, b.perm)
	}
}

// applyRewrites applies rewrite entries grouped by source note. All
// originals are read before anything is written; on a write error the
// already-written files are restored.
func applyRewrites(vaultPath string, groups map[string][]rewriteEntry) ([]rewriteBackup, error) {
	originals := make(map[string][]byte, len(groups))
	perms := make(map[string]os.FileMode, len(groups))
	for sourcePath := range groups {
		full := filepath.Join(vaultPath, sourcePath)
		info, err := os.Stat(full)
		if err != nil {
			return nil, err
		}
		perms[sourcePath] = info.Mode().Perm()
		content, err := os.ReadFile(full)
		if err != nil {
			return nil, err
		}
		originals[sourcePath] = content
	}

	var written []rewriteBackup
	for sourcePath, entries := range groups {
		original := originals[sourcePath]
		lines := strings.Split(string(original), "\n")
		for _, re := range entries {
			if re.line < 1 || re.line > len(lines) {
				continue
			}
			lines[re.line-1] = replaceOutsideInlineCode(lines[re.line-1], re.rawLink, re.newRawLink)
		}
		full := filepath.Join(vaultPath, sourcePath)
		if err := writeFilePreservePerm(full, []byte(strings.Join(lines, "\n")), perms[sourcePath]); err != nil {
			restoreBackups(vaultPath, written)
			return nil, err
		}
		written = append(written, rewriteBackup{path: sourcePath, content: original, perm: perms[sourcePath]})
	}
	return written, nil
}
