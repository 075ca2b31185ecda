package learn

import (
	"strings"

	"github.com/sells-group/control-assist/internal/model"
)

// Defaults used when no match supplies a value for a field.
const (
	DefaultStatus           = "planned"
	DefaultResponsibleParty = "System Owner"
	DefaultControlType      = "hybrid"
	DefaultTestingMethod    = "Examine"
	DefaultTestingFrequency = "Annually"
	DefaultRiskRating       = "moderate"
)

// minImplementationLen is the length a reference implementation text must
// exceed to be reused.
const minImplementationLen = 50

// Aggregate reduces matches to a single field set by per-field majority
// vote. Ties go to the value counted first. Implementation is left empty
// when no reusable text exists, or when several matches all carry the same
// single text.
func Aggregate(matches []model.ExistingControl) model.FieldSet {
	fs := model.FieldSet{
		Status:           majority(matches, func(c model.Control) string { return c.Status }, DefaultStatus),
		ResponsibleParty: majority(matches, func(c model.Control) string { return c.ResponsibleParty }, DefaultResponsibleParty),
		ControlType:      majority(matches, func(c model.Control) string { return c.ControlType }, DefaultControlType),
		TestingMethod:    majority(matches, func(c model.Control) string { return c.TestingMethod }, DefaultTestingMethod),
		TestingFrequency: majority(matches, func(c model.Control) string { return c.TestingFrequency }, DefaultTestingFrequency),
		RiskRating:       majority(matches, func(c model.Control) string { return c.RiskRating }, DefaultRiskRating),
	}

	var distinct []string
	seen := make(map[string]bool)
	for _, m := range matches {
		text := strings.TrimSpace(m.Implementation)
		if len(text) <= minImplementationLen || seen[text] {
			continue
		}
		seen[text] = true
		distinct = append(distinct, text)
	}
	switch {
	case len(distinct) == 0:
	case len(matches) > 1 && len(distinct) == 1:
		// One narrative shared by every match would be copied verbatim.
	default:
		fs.Implementation = distinct[0]
	}
	return fs
}

// HasFieldValues reports whether any match carries a non-empty categorical
// field, i.e. whether Aggregate returns more than defaults.
func HasFieldValues(matches []model.ExistingControl) bool {
	for _, m := range matches {
		for _, v := range []string{m.Status, m.ResponsibleParty, m.ControlType, m.TestingMethod, m.TestingFrequency, m.RiskRating} {
			if strings.TrimSpace(v) != "" {
				return true
			}
		}
	}
	return false
}

func majority(matches []model.ExistingControl, field func(model.Control) string, def string) string {
	counts := make(map[string]int)
	var order []string
	for _, m := range matches {
		v := strings.TrimSpace(field(m.Control))
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best, bestN := def, 0
	for _, v := range order {
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}
