package generate

import (
	"regexp"
	"strings"

	"github.com/sells-group/control-assist/internal/model"
)

// MaxStyleExamples caps the number of existing implementations shown to
// the model as tone guidance.
const MaxStyleExamples = 25

// maxExampleChars keeps individual style examples short.
const maxExampleChars = 300

var controlLabel = regexp.MustCompile(`(?i)^\s*control\s*:\s*`)

// SystemPrompt is sent as the system message to every provider.
const SystemPrompt = "You are a compliance analyst writing implementation descriptions for security controls. " +
	"Write in the descriptive present tense, as a statement of how the organization meets the control. " +
	"Do not use markdown, headings, lists or quotation marks."

// BuildPrompt renders the deterministic user prompt for a control. Up to
// maxExamples existing implementation texts are appended as style
// guidance; maxExamples <= 0 or above MaxStyleExamples means MaxStyleExamples.
func BuildPrompt(c model.Control, existing []model.ExistingControl, maxExamples int) string {
	if maxExamples <= 0 || maxExamples > MaxStyleExamples {
		maxExamples = MaxStyleExamples
	}

	var b strings.Builder
	b.WriteString("Write the implementation description for this security control.\n\n")
	b.WriteString("Control ID: " + strings.TrimSpace(c.ID) + "\n")
	if title := strings.TrimSpace(c.Title); title != "" {
		b.WriteString("Title: " + title + "\n")
	}
	if fam := c.FamilyCode(); fam != "" {
		b.WriteString("Family: " + fam + "\n")
	}
	if desc := cleanDescription(c.Description()); desc != "" {
		b.WriteString("Description: " + desc + "\n")
	}

	if examples := styleExamples(existing, maxExamples); len(examples) > 0 {
		b.WriteString("\nExamples of how other controls in this system are described. ")
		b.WriteString("Use them for tone and length only; they are not facts about this control:\n")
		for _, ex := range examples {
			b.WriteString("- " + ex + "\n")
		}
	}

	b.WriteString("\nRespond with one or two sentences, under 250 characters, describing how the control is implemented.")
	return b.String()
}

func cleanDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	desc = controlLabel.ReplaceAllString(desc, "")
	return strings.Join(strings.Fields(desc), " ")
}

func styleExamples(existing []model.ExistingControl, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ec := range existing {
		if len(out) >= limit {
			break
		}
		text := strings.Join(strings.Fields(ec.Implementation), " ")
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		if r := []rune(text); len(r) > maxExampleChars {
			text = string(r[:maxExampleChars]) + "..."
		}
		out = append(out, text)
	}
	return out
}
