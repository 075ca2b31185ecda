// Package loader reads control lists from JSON, CSV and XLSX files.
package loader

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/control-assist/internal/model"
)

// Format is a control file format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("loader: unsupported file type %q", filepath.Ext(path))
	}
}

// LoadControls reads every control in path.
func LoadControls(path string) ([]model.Control, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	if format == FormatXLSX {
		return ReadXLSX(path, "")
	}

	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	if format == FormatCSV {
		return ReadCSV(f)
	}
	return ReadJSON(f)
}

// LoadExisting reads reference controls from path. Controls without an
// implementation text are skipped.
func LoadExisting(path string) ([]model.ExistingControl, error) {
	controls, err := LoadControls(path)
	if err != nil {
		return nil, err
	}
	return ToExisting(controls), nil
}

// ToExisting keeps the controls that carry an implementation text.
func ToExisting(controls []model.Control) []model.ExistingControl {
	out := make([]model.ExistingControl, 0, len(controls))
	for _, c := range controls {
		if strings.TrimSpace(c.Implementation) == "" {
			continue
		}
		out = append(out, model.ExistingControl{Control: c})
	}
	return out
}

// ReadJSON decodes either a bare array of controls or an object with a
// "controls" array.
func ReadJSON(r io.Reader) ([]model.Control, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "loader: read json")
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []model.Control
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, eris.Wrap(err, "loader: decode control array")
		}
		return validate(list)
	}

	var doc struct {
		Controls []model.Control `json:"controls"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "loader: decode control document")
	}
	return validate(doc.Controls)
}

func validate(controls []model.Control) ([]model.Control, error) {
	for i, c := range controls {
		if strings.TrimSpace(c.ID) == "" {
			return nil, eris.Errorf("loader: control %d has no id", i+1)
		}
	}
	return controls, nil
}
