package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/control-assist/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func createTestXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	s, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, rowData := range rows {
		row := s.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "controls.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"controls.json", FormatJSON},
		{"CONTROLS.CSV", FormatCSV},
		{"a/b/controls.xlsx", FormatXLSX},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := DetectFormat("controls.txt")
	assert.Error(t, err)
}

func TestReadJSON_Array(t *testing.T) {
	got, err := ReadJSON(strings.NewReader(`[{"id":"AC-2","title":"Account Management","parts":[{"name":"statement","prose":"Manage accounts."}]}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AC-2", got[0].ID)
	assert.Equal(t, "Manage accounts.", got[0].Description())
}

func TestReadJSON_Document(t *testing.T) {
	got, err := ReadJSON(strings.NewReader(`{"controls":[{"id":"AU-6","title":"Audit Review"},{"id":"AU-2"}]}`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AU-2", got[1].ID)
}

func TestReadJSON_MissingID(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`[{"title":"No id"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control 1 has no id")
}

func TestReadJSON_Invalid(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{not json`))
	assert.Error(t, err)
}

func TestReadCSV_HeaderMapping(t *testing.T) {
	csv := "Control ID,Title,Description,Guidance,Responsible Party,Implementation\n" +
		"AC-2,Account Management,Manage accounts.,See AC-1.,IAM Team,Accounts are managed centrally.\n" +
		",,,,,\n" +
		"AC-3, Access Enforcement ,,,,\n"

	got, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.Control{
		ID:               "AC-2",
		Title:            "Account Management",
		ResponsibleParty: "IAM Team",
		Implementation:   "Accounts are managed centrally.",
		Parts: []model.DescriptionPart{
			{Name: "statement", Prose: "Manage accounts."},
			{Name: "guidance", Prose: "See AC-1."},
		},
	}, got[0])
	assert.Equal(t, "Access Enforcement", got[1].Title)
	assert.Nil(t, got[1].Parts)
}

func TestReadCSV_MissingIDColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("title\nAccount Management\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing "id" column`)
}

func TestReadCSV_RowWithoutID(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("id,title\nAC-1,Policy\n,Orphan\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3 has no id")
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, "Controls", [][]string{
		{"id", "title", "family", "risk-rating"},
		{"SC-7", "Boundary Protection", "sc", "high"},
	})

	got, err := ReadXLSX(path, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SC-7", got[0].ID)
	assert.Equal(t, "SC", got[0].FamilyCode())
	assert.Equal(t, "high", got[0].RiskRating)

	_, err = ReadXLSX(path, "Missing")
	assert.Error(t, err)
}

func TestLoadControls_DispatchesByExtension(t *testing.T) {
	jsonPath := writeFile(t, "controls.json", `[{"id":"AC-1"}]`)
	csvPath := writeFile(t, "controls.csv", "id\nAC-1\n")
	xlsxPath := createTestXLSX(t, "Sheet1", [][]string{{"id"}, {"AC-1"}})

	for _, p := range []string{jsonPath, csvPath, xlsxPath} {
		got, err := LoadControls(p)
		require.NoError(t, err, p)
		require.Len(t, got, 1, p)
		assert.Equal(t, "AC-1", got[0].ID, p)
	}

	_, err := LoadControls(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadExisting_SkipsControlsWithoutImplementation(t *testing.T) {
	path := writeFile(t, "existing.json", `[
		{"id":"AC-2","implementation":"Accounts are managed centrally."},
		{"id":"AC-3","implementation":"   "},
		{"id":"AC-4"}
	]`)

	got, err := LoadExisting(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AC-2", got[0].ID)
}
