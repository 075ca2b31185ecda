// Package normalize turns raw generated text into a single descriptive
// implementation statement.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	openingFence = regexp.MustCompile("```[A-Za-z0-9_+-]*[ \t]*\n")
	whitespace   = regexp.MustCompile(`\s+`)
	zeroWidth    = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
	emphasis     = strings.NewReplacer("**", "", "__", "", "*", "", "`", "")
)

// labels are leading prefixes models tend to emit. Longest first.
var labels = []string{
	"implementation description:",
	"description:",
	"implementation:",
}

// Normalize cleans raw model output. It returns "" when nothing usable is
// left. Normalize is idempotent. It does not truncate.
func Normalize(raw string) string {
	s := zeroWidth.Replace(raw)
	s = openingFence.ReplaceAllString(s, "")
	for {
		out := emphasis.Replace(s)
		if out == s {
			break
		}
		s = out
	}
	// Composition runs after stripping so markers cannot split a base
	// letter from its combining mark.
	s = norm.NFC.String(s)
	s = collapse(s)

	for {
		changed := false
		if out, ok := stripQuotes(s); ok {
			s, changed = out, true
		}
		if out, ok := stripLabel(s); ok {
			s, changed = out, true
		}
		if !changed {
			break
		}
	}
	if s == "" {
		return ""
	}

	for _, r := range Rules {
		if r.Match(s) {
			s = r.Apply(s)
			break
		}
	}

	s = collapse(norm.NFC.String(s))
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s[len(s)-1:], ".!?") {
		s += "."
	}
	return s
}

// Truncate cuts s to at most limit runes on a word boundary and terminates it
// with a period. A limit <= 0 disables truncation.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	cut := string(r[:limit-1])
	if i := strings.LastIndexAny(cut, " \t"); i > 0 {
		cut = cut[:i]
	}
	cut = strings.TrimRight(cut, " ,;:-")
	return cut + "."
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func stripLabel(s string) (string, bool) {
	for _, l := range labels {
		if len(s) >= len(l) && strings.EqualFold(s[:len(l)], l) {
			return strings.TrimSpace(s[len(l):]), true
		}
	}
	return s, false
}

var quotePairs = [][2]string{
	{`"`, `"`},
	{"\u201c", "\u201d"},
	{"'", "'"},
}

func stripQuotes(s string) (string, bool) {
	for _, q := range quotePairs {
		if len(s) < len(q[0])+len(q[1]) || !strings.HasPrefix(s, q[0]) || !strings.HasSuffix(s, q[1]) {
			continue
		}
		inner := s[len(q[0]) : len(s)-len(q[1])]
		if strings.Contains(inner, q[0]) || strings.Contains(inner, q[1]) {
			continue
		}
		return strings.TrimSpace(inner), true
	}
	return s, false
}
