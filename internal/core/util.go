package core

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizePath cleans a vault-relative path: forward slashes, no leading "./".
func NormalizePath(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	clean = strings.TrimPrefix(clean, "./")
	if clean == "." {
		return ""
	}
	return clean
}

// baseName returns the filename without directory or extension.
func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// fileName returns the filename with extension, without directory.
func fileName(path string) string {
	return filepath.Base(path)
}

// parentDir returns the vault-relative parent folder, "" for root-level files.
func parentDir(path string) string {
	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// joinPath joins a vault-relative folder and a filename. folder may be ""
// for the vault root.
func joinPath(folder, name string) string {
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// isMarkdown reports whether the path names a note file.
func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

// isHidden reports whether any path segment starts with a dot.
func isHidden(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// stripFragment removes a "#heading" / "#^block" suffix from a link target.
func stripFragment(target string) string {
	if idx := strings.Index(target, "#"); idx >= 0 {
		return target[:idx]
	}
	return target
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// escapesVault reports whether joining target onto the source's folder
// resolves outside the vault root.
func escapesVault(sourcePath, target string) bool {
	resolved := filepath.ToSlash(filepath.Clean(filepath.Join(filepath.Dir(sourcePath), target)))
	return strings.HasPrefix(resolved, "..")
}
