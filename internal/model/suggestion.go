package model

// Source tags where a Suggestion's implementation text came from.
type Source string

// Suggestion sources.
const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
	SourceTemplate Source = "template"
)

// FieldSet holds the metadata fields a strategy proposes, plus a candidate
// implementation text (possibly empty).
type FieldSet struct {
	Status           string `json:"status" yaml:"status"`
	Implementation   string `json:"implementation" yaml:"implementation"`
	ResponsibleParty string `json:"responsible_party" yaml:"responsible_party"`
	ControlType      string `json:"control_type" yaml:"control_type"`
	TestingMethod    string `json:"testing_method" yaml:"testing_method"`
	TestingFrequency string `json:"testing_frequency" yaml:"testing_frequency"`
	RiskRating       string `json:"risk_rating" yaml:"risk_rating"`
}

// Suggestion is the proposed implementation metadata for one control.
type Suggestion struct {
	ControlID        string   `json:"control_id"`
	Status           string   `json:"status"`
	Implementation   string   `json:"implementation"`
	ResponsibleParty string   `json:"responsible_party"`
	ControlType      string   `json:"control_type"`
	TestingMethod    string   `json:"testing_method"`
	TestingFrequency string   `json:"testing_frequency"`
	RiskRating       string   `json:"risk_rating"`
	Confidence       float64  `json:"confidence"`
	Reasoning        []string `json:"reasoning"`
	Source           Source   `json:"source"`
}

// NewSuggestion builds a Suggestion from a field set.
func NewSuggestion(controlID string, fs FieldSet) *Suggestion {
	return &Suggestion{
		ControlID:        controlID,
		Status:           fs.Status,
		Implementation:   fs.Implementation,
		ResponsibleParty: fs.ResponsibleParty,
		ControlType:      fs.ControlType,
		TestingMethod:    fs.TestingMethod,
		TestingFrequency: fs.TestingFrequency,
		RiskRating:       fs.RiskRating,
		Reasoning:        []string{},
	}
}

// Fields returns the suggestion's field set.
func (s *Suggestion) Fields() FieldSet {
	return FieldSet{
		Status:           s.Status,
		Implementation:   s.Implementation,
		ResponsibleParty: s.ResponsibleParty,
		ControlType:      s.ControlType,
		TestingMethod:    s.TestingMethod,
		TestingFrequency: s.TestingFrequency,
		RiskRating:       s.RiskRating,
	}
}
