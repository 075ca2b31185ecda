package model

import "strings"

// DescriptionPart is one named prose section of a control statement
// (e.g. "statement", "guidance").
type DescriptionPart struct {
	Name  string `json:"name"`
	Prose string `json:"prose"`
}

// Control is a single compliance requirement awaiting implementation
// metadata. Pipeline stages take it by value and never modify it.
type Control struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Family           string            `json:"family,omitempty"`
	Parts            []DescriptionPart `json:"parts,omitempty"`
	Status           string            `json:"status,omitempty"`
	Implementation   string            `json:"implementation,omitempty"`
	ResponsibleParty string            `json:"responsible_party,omitempty"`
	ControlType      string            `json:"control_type,omitempty"`
	TestingMethod    string            `json:"testing_method,omitempty"`
	TestingFrequency string            `json:"testing_frequency,omitempty"`
	RiskRating       string            `json:"risk_rating,omitempty"`
}

// ExistingControl is a previously documented control used as reference
// data. It is expected to carry a non-empty Implementation.
type ExistingControl struct {
	Control
}

// FamilyCode returns the upper-cased control family. An explicit Family wins;
// otherwise it is the part of ID before the first "-".
func (c Control) FamilyCode() string {
	if f := strings.TrimSpace(c.Family); f != "" {
		return strings.ToUpper(f)
	}
	id := strings.TrimSpace(c.ID)
	if i := strings.Index(id, "-"); i >= 0 {
		id = id[:i]
	}
	return strings.ToUpper(id)
}

// Description joins the prose of all description parts in order.
func (c Control) Description() string {
	var parts []string
	for _, p := range c.Parts {
		if s := strings.TrimSpace(p.Prose); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// SearchText is the lower-cased title and description used for keyword and
// template matching.
func (c Control) SearchText() string {
	return strings.ToLower(strings.TrimSpace(c.Title + " " + c.Description()))
}
