package moderation

import (
	"regexp"
	"strings"
)

// Filter rejects message bodies containing denylisted terms. Matching is
// exact, whole-word and case-insensitive. An empty denylist admits everything.
type Filter struct {
	patterns []*regexp.Regexp
}

// NewFilter compiles the denylist. Blank entries are skipped.
func NewFilter(denylist []string) *Filter {
	f := &Filter{}
	for _, term := range denylist {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		f.patterns = append(f.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(term)+`\b`))
	}
	return f
}

// Allow reports whether the body passes moderation.
func (f *Filter) Allow(body string) bool {
	for _, p := range f.patterns {
		if p.MatchString(body) {
			return false
		}
	}
	return true
}
