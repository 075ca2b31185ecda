package loader

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/control-assist/internal/model"
)

// Column headers recognized in tabular files. Matching ignores case and
// treats spaces and dashes as underscores.
const (
	ColID               = "id"
	ColTitle            = "title"
	ColFamily           = "family"
	ColDescription      = "description"
	ColGuidance         = "guidance"
	ColStatus           = "status"
	ColImplementation   = "implementation"
	ColResponsibleParty = "responsible_party"
	ColControlType      = "control_type"
	ColTestingMethod    = "testing_method"
	ColTestingFrequency = "testing_frequency"
	ColRiskRating       = "risk_rating"
)

var headerAliases = map[string]string{
	"control_id": ColID,
	"control":    ColID,
	"name":       ColTitle,
	"statement":  ColDescription,
}

// ReadCSV reads controls from CSV with a header row.
func ReadCSV(r io.Reader) ([]model.Control, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "loader: read csv")
	}
	return fromRows(rows)
}

// ReadXLSX reads controls from a worksheet with a header row. An empty
// sheet name selects the first sheet.
func ReadXLSX(path, sheetName string) ([]model.Control, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "loader: open xlsx")
	}

	var sheet *xlsx.Sheet
	switch {
	case sheetName != "":
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("loader: sheet %q not found", sheetName)
		}
		sheet = s
	case len(f.Sheets) == 0:
		return nil, eris.New("loader: workbook has no sheets")
	default:
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]model.Control, error) {
	if len(rows) == 0 {
		return nil, eris.New("loader: no header row")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		key := headerKey(h)
		if alias, ok := headerAliases[key]; ok {
			key = alias
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	if _, ok := cols[ColID]; !ok {
		return nil, eris.Errorf("loader: missing %q column", ColID)
	}

	var out []model.Control
	for n, row := range rows[1:] {
		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		c := model.Control{
			ID:               get(ColID),
			Title:            get(ColTitle),
			Family:           get(ColFamily),
			Status:           get(ColStatus),
			Implementation:   get(ColImplementation),
			ResponsibleParty: get(ColResponsibleParty),
			ControlType:      get(ColControlType),
			TestingMethod:    get(ColTestingMethod),
			TestingFrequency: get(ColTestingFrequency),
			RiskRating:       get(ColRiskRating),
		}
		if c.ID == "" {
			if blank(row) {
				continue
			}
			return nil, eris.Errorf("loader: row %d has no id", n+2)
		}
		if d := get(ColDescription); d != "" {
			c.Parts = append(c.Parts, model.DescriptionPart{Name: "statement", Prose: d})
		}
		if g := get(ColGuidance); g != "" {
			c.Parts = append(c.Parts, model.DescriptionPart{Name: "guidance", Prose: g})
		}
		out = append(out, c)
	}
	return out, nil
}

func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
