package core

import "strings"

// refOccur is one embed or link occurrence found in a note body.
type refOccur struct {
	target     string // link target with any #fragment removed
	subpath    string // "#Heading" / "#^block" (if any)
	rawLink    string // the full source text, including a leading "!" for embeds
	isEmbed    bool
	isWiki     bool // [[...]] vs [text](url)
	isRelative bool // starts with ./ or ../
	line       int  // 1-based
}

// parseRefs scans a note body for wikilink and markdown references.
// Embed forms (![[...]], ![alt](url)) are flagged; external URLs are
// skipped. Fenced code blocks, inline code and YAML frontmatter are
// ignored.
func parseRefs(content string) []refOccur {
	var out []refOccur
	lines := strings.Split(content, "\n")

	start := 0
	if end := frontmatterEnd(lines); end > 0 {
		start = end + 1
	}

	inFence := false
	for i := start; i < len(lines); i++ {
		lineNum := i + 1
		trim := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trim, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		clean := stripInlineCode(lines[i])
		out = append(out, parseWikiRefs(clean, lineNum)...)
		out = append(out, parseMarkdownRefs(clean, lineNum)...)
	}
	return out
}

// frontmatterEnd returns the line index of the closing "---" of YAML
// frontmatter, or -1 if the document has none.
func frontmatterEnd(lines []string) int {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return -1
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return i
		}
	}
	return -1
}

func stripInlineCode(line string) string {
	var out strings.Builder
	inCode := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if ch == '`' {
			inCode = !inCode
			continue
		}
		if !inCode {
			out.WriteByte(ch)
		}
	}
	return out.String()
}

func parseWikiRefs(line string, lineNum int) []refOccur {
	var out []refOccur
	remaining := line
	for {
		start := strings.Index(remaining, "[[")
		if start == -1 {
			break
		}
		end := strings.Index(remaining[start+2:], "]]")
		if end == -1 {
			break
		}
		end = start + 2 + end
		inner := remaining[start+2 : end]

		isEmbed := start > 0 && remaining[start-1] == '!'
		rawLink := "[[" + inner + "]]"
		if isEmbed {
			rawLink = "!" + rawLink
		}

		name := inner
		if idx := strings.Index(name, "|"); idx >= 0 {
			name = name[:idx]
		}
		target, subpath := stripFragment(name), ""
		if idx := strings.Index(name, "#"); idx >= 0 {
			subpath = name[idx:]
		}

		if target != "" {
			out = append(out, refOccur{
				target:     trimNoteExt(target),
				subpath:    subpath,
				rawLink:    rawLink,
				isEmbed:    isEmbed,
				isWiki:     true,
				isRelative: isRelativeTarget(target),
				line:       lineNum,
			})
		}
		remaining = remaining[end+2:]
	}
	return out
}

func parseMarkdownRefs(line string, lineNum int) []refOccur {
	var out []refOccur
	remaining := line
	for {
		open := strings.Index(remaining, "[")
		if open == -1 {
			break
		}
		// Skip wikilinks; parseWikiRefs owns those.
		if open+1 < len(remaining) && remaining[open+1] == '[' {
			remaining = remaining[open+2:]
			continue
		}
		mid := strings.Index(remaining[open:], "](")
		if mid == -1 {
			break
		}
		mid = open + mid
		close := strings.Index(remaining[mid+2:], ")")
		if close == -1 {
			break
		}
		close = mid + 2 + close

		rawTarget := strings.TrimSpace(remaining[mid+2 : close])
		isEmbed := open > 0 && remaining[open-1] == '!'
		rawLink := remaining[open : close+1]
		if isEmbed {
			rawLink = "!" + rawLink
		}

		target, subpath := stripFragment(rawTarget), ""
		if idx := strings.Index(rawTarget, "#"); idx >= 0 {
			subpath = rawTarget[idx:]
		}

		if target != "" && !isURL(rawTarget) {
			out = append(out, refOccur{
				target:     trimNoteExt(target),
				subpath:    subpath,
				rawLink:    rawLink,
				isEmbed:    isEmbed,
				isWiki:     false,
				isRelative: isRelativeTarget(target),
				line:       lineNum,
			})
		}
		remaining = remaining[close+1:]
	}
	return out
}

// trimNoteExt removes a trailing ".md" so note targets share one spelling.
// Asset extensions are kept.
func trimNoteExt(target string) string {
	if strings.HasSuffix(strings.ToLower(target), ".md") && len(target) > 3 {
		return target[:len(target)-3]
	}
	return target
}

func isRelativeTarget(target string) bool {
	return strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../")
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
