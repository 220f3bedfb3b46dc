package core

import (
	"regexp"
	"strings"
)

// TemplateVars holds the values substituted into name and path patterns.
// Zero values fall back to documented placeholders during expansion.
type TemplateVars struct {
	Filename  string // basename of the owning note; fallback "note"
	Original  string // cleaned original basename of the attachment; fallback "file"
	Extension string // attachment extension without dot; fallback ""
	Date      string // current date as YYYYMMDD; fallback ""
	Index     string // 1-based reference position, zero-padded to 2; fallback "01"
}

func (v TemplateVars) lookup(name string) (string, bool) {
	switch name {
	case "filename":
		if v.Filename == "" {
			return "note", true
		}
		return v.Filename, true
	case "original":
		if v.Original == "" {
			return "file", true
		}
		return v.Original, true
	case "extension":
		return v.Extension, true
	case "date":
		return v.Date, true
	case "index":
		if v.Index == "" {
			return "01", true
		}
		return v.Index, true
	}
	return "", false
}

// ExpandPattern substitutes ${filename}, ${original}, ${extension},
// ${date} and ${index} tokens in a single left-to-right pass, so a
// substituted value containing another token is never re-expanded.
// Unrecognized tokens are left verbatim.
func ExpandPattern(pattern string, vars TemplateVars) string {
	var out strings.Builder
	for i := 0; i < len(pattern); {
		start := strings.Index(pattern[i:], "${")
		if start < 0 {
			out.WriteString(pattern[i:])
			break
		}
		start += i
		end := strings.Index(pattern[start:], "}")
		if end < 0 {
			out.WriteString(pattern[i:])
			break
		}
		end += start
		out.WriteString(pattern[i:start])
		name := pattern[start+2 : end]
		if val, ok := vars.lookup(name); ok {
			out.WriteString(val)
		} else {
			out.WriteString(pattern[start : end+1])
		}
		i = end + 1
	}
	return out.String()
}

var (
	illegalRun    = regexp.MustCompile(`[\\/:"*?<>|]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// SanitizeName makes a string safe for use as a filename: runs of
// filesystem-illegal characters become a single hyphen and whitespace runs
// collapse to one space. The result may be empty; callers substitute
// "attachment" then.
func SanitizeName(name string) string {
	name = illegalRun.ReplaceAllString(name, "-")
	name = whitespaceRun.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

var sepPadding = `[\s\-_]*`

// StripOldNoteName removes an occurrence of the note's previous name from
// an attachment basename, together with surrounding whitespace/hyphen/
// underscore padding. This keeps re-templating from stacking stale note
// names across repeated renames. An empty result falls back to
// "Attachment"; a base without the old name is returned unchanged.
func StripOldNoteName(base, oldName string) string {
	if oldName == "" || !strings.Contains(base, oldName) {
		return base
	}
	re := regexp.MustCompile(sepPadding + regexp.QuoteMeta(oldName) + sepPadding)
	stripped := strings.TrimSpace(re.ReplaceAllString(base, " "))
	if stripped == "" {
		return "Attachment"
	}
	return stripped
}
