package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"
)

func TestNormalize_StripsMarkdown(t *testing.T) {
	in := "```text\n**Access** to the system is *restricted* to `authorized` users\n```"
	assert.Equal(t, "Access to the system is restricted to authorized users.", Normalize(in))
}

func TestNormalize_StripsLabels(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Implementation Description: Accounts are reviewed quarterly.", "Accounts are reviewed quarterly."},
		{"Description: Accounts are reviewed quarterly", "Accounts are reviewed quarterly."},
		{"implementation: Accounts are reviewed quarterly.", "Accounts are reviewed quarterly."},
		{`Description: "Accounts are reviewed quarterly."`, "Accounts are reviewed quarterly."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestNormalize_RewritesImperativeOpeners(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"Implement role-based access by assigning privileges through the identity provider.",
			"Role-based access is implemented by assigning privileges through the identity provider.",
		},
		{
			"Configure audit logging to capture privileged commands",
			"Audit logging is configured to capture privileged commands.",
		},
		{
			"Ensure that all accounts are reviewed by system owners each quarter.",
			"All accounts are reviewed by system owners each quarter.",
		},
		{
			"Establish an incident response capability.",
			"An incident response capability is established.",
		},
		{
			"Monitor system activity using the SIEM platform.",
			"System activity is monitored using the SIEM platform.",
		},
		{
			"Enforces approved authorizations for logical access.",
			"Approved authorizations for logical access is enforced.",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestNormalize_AppliesOnlyFirstRule(t *testing.T) {
	// "Implement" matches first; the embedded "monitor" must not be rewritten.
	got := Normalize("Implement monitoring tools by deploying agents to monitor hosts.")
	assert.Equal(t, "Monitoring tools is implemented by deploying agents to monitor hosts.", got)
}

func TestNormalize_LeavesDescriptiveTextAlone(t *testing.T) {
	in := "The organization manages information system accounts through a centralized identity platform."
	assert.Equal(t, in, Normalize(in))
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "Backups are performed daily.", Normalize("  Backups   are\n\tperformed\n\ndaily  "))
}

func TestNormalize_EmptyInput(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("   \n "))
	assert.Equal(t, "", Normalize("```\n```"))
	assert.Equal(t, "", Normalize("Description:"))
}

func TestNormalize_KeepsExistingPunctuation(t *testing.T) {
	assert.Equal(t, "Is the policy reviewed?", Normalize("Is the policy reviewed?"))
	assert.Equal(t, "Access is restricted!", Normalize("Access is restricted!"))
}

func TestNormalize_ComposesAfterStripping(t *testing.T) {
	assert.Equal(t, "Access is reviewed for caf\u00e9 staff.", Normalize("Access is reviewed for cafe\u200b\u0301 staff"))
	assert.Equal(t, "Access is reviewed for caf\u00e9 staff.", Normalize("Access is reviewed for cafe*\u0301 staff"))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"Implement X by Y",
		"Implement implement x",
		"Implement description: foo by bar",
		`Implement "controls by policy"`,
		`Ensure that "all good"`,
		"_*_ emphasis ___ markers **bold** __x__",
		"```go\nfmt.Println()\n```",
		"Description: Implementation: nested labels",
		`"quoted" and "more quoted"`,
		"'single quoted text'",
		"“smart quoted text”",
		"Create accounts by request to the help desk via ticketing",
		"Ensure ensure that things",
		"Manage by",
		"Protects data at rest using AES-256 encryption with managed keys.",
		"Implement x by.",
		"Monitor\u200b activity\ufeff continuously",
		"MAINTAIN AN INVENTORY OF SYSTEM COMPONENTS",
		"Access is reviewed for cafe\u200b\u0301 staff",
		"Access is reviewed for cafe*\u0301 staff",
		"Access is reviewed for cafe_\u0301 staff",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
		assert.True(t, norm.NFC.IsNormalString(once), "input %q", in)
	}
}

func TestRules_OrderIsStable(t *testing.T) {
	assert.Equal(t, "ensure-that", Rules[0].Name)
	assert.Equal(t, "implement-connector", Rules[1].Name)
	assert.Equal(t, "implement", Rules[2].Name)
	assert.Equal(t, "enforce", Rules[len(Rules)-1].Name)
}

func TestTruncate(t *testing.T) {
	s := "Access to the system is restricted to authorized users with approved accounts."
	assert.Equal(t, s, Truncate(s, 0))
	assert.Equal(t, s, Truncate(s, 500))

	got := Truncate(s, 40)
	assert.LessOrEqual(t, len([]rune(got)), 40)
	assert.True(t, strings.HasSuffix(got, "."))
	assert.Equal(t, "Access to the system is restricted to.", got)
}
