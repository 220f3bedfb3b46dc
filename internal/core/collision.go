package core

import "fmt"

// resolveCollision finds a safe destination for a rename. The desired path
// is kept when nothing occupies it, or when the occupant is the file being
// renamed itself. Otherwise integer suffixes ("base 1.ext", "base 2.ext",
// ...) are tried inside the target folder. Exhausting the attempt bound is
// a non-fatal outcome: the current path is returned, meaning "leave the
// file as is".
func resolveCollision(stat func(string) EntryKind, desired, current, folder, base, ext string, attempts int) string {
	if desired == current || stat(desired) == EntryMissing {
		return desired
	}
	for n := 1; n <= attempts; n++ {
		name := fmt.Sprintf("%s %d", base, n)
		if ext != "" {
			name += "." + ext
		}
		cand := joinPath(folder, name)
		if cand == current || stat(cand) == EntryMissing {
			return cand
		}
	}
	return current
}
