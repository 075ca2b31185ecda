// Package learn derives suggestions from previously documented controls.
package learn

import (
	"strings"

	"github.com/sells-group/control-assist/internal/model"
)

// MaxSimilar caps the number of matches FindSimilar returns.
const MaxSimilar = 25

// FindSimilar scans existing left to right and returns up to MaxSimilar
// controls that share the target's family, or whose title has at least two
// words longer than three characters that appear in the target's title.
//
// Matches are returned in encounter order, not ranked by how similar they
// are.
func FindSimilar(target model.Control, existing []model.ExistingControl) []model.ExistingControl {
	family := target.FamilyCode()
	title := strings.ToLower(target.Title)

	var out []model.ExistingControl
	for _, ec := range existing {
		if len(out) >= MaxSimilar {
			break
		}
		if ec.FamilyCode() == family || sharedTitleWords(ec.Title, title) >= 2 {
			out = append(out, ec)
		}
	}
	return out
}

func sharedTitleWords(candidate, targetLower string) int {
	if targetLower == "" {
		return 0
	}
	n := 0
	for _, w := range strings.Fields(strings.ToLower(candidate)) {
		if len(w) > 3 && strings.Contains(targetLower, w) {
			n++
		}
	}
	return n
}
