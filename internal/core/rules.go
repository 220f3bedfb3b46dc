package core

import "strings"

// MatchRule returns the first rule whose extension set contains ext
// (case-insensitive), or nil. Extension sets need not be disjoint across
// rules; declaration order decides.
func MatchRule(rules []Rule, ext string) *Rule {
	ext = strings.ToLower(ext)
	for i := range rules {
		for _, e := range rules[i].Extensions {
			if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
				return &rules[i]
			}
		}
	}
	return nil
}
