package core

import "strings"

// InScope reports whether a note path is subject to processing under the
// configured scope mode. Watched paths are normalized first; empty or root
// entries are dropped, and an empty resulting set means no restriction.
func InScope(cfg *Config, path string) bool {
	if cfg.Scope.Mode == ScopeVault {
		return true
	}

	var watched []string
	for _, p := range cfg.Scope.Paths {
		np := NormalizePath(p)
		if np == "" || np == "/" {
			continue
		}
		watched = append(watched, np)
	}
	if len(watched) == 0 {
		return true
	}

	path = NormalizePath(path)
	matched := false
	for _, folder := range watched {
		if path == folder || strings.HasPrefix(path, folder+"/") {
			matched = true
			break
		}
	}
	if cfg.Scope.Mode == ScopeInclude {
		return matched
	}
	return !matched
}
