package suggest

import (
	_ "embed"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/control-assist/internal/model"
)

// MaxTemplateChars bounds every implementation text in the catalog.
const MaxTemplateChars = 250

//go:embed templates.yaml
var defaultCatalogYAML []byte

// Catalog holds the static strategy tables. Slice order is match order.
type Catalog struct {
	Families []FamilySet    `yaml:"families"`
	Keywords []KeywordSet   `yaml:"keywords"`
	Generic  []GenericSet   `yaml:"generic"`
	Default  model.FieldSet `yaml:"default"`
}

// FamilySet is the ordered template list registered for one control family.
type FamilySet struct {
	Family    string     `yaml:"family"`
	Templates []Template `yaml:"templates"`
}

// Template maps a search-text key to a field set.
type Template struct {
	Key    string         `yaml:"key"`
	Fields model.FieldSet `yaml:"fields"`
}

// KeywordSet is one category of the keyword table.
type KeywordSet struct {
	Category string         `yaml:"category"`
	Keywords []string       `yaml:"keywords"`
	Fields   model.FieldSet `yaml:"fields"`
}

// GenericSet is a canned field set chosen by title keywords.
type GenericSet struct {
	Name          string         `yaml:"name"`
	TitleKeywords []string       `yaml:"title_keywords"`
	Fields        model.FieldSet `yaml:"fields"`
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
})

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return loadDefault()
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "suggest: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML. Keys and keywords are
// lower-cased so they match against Control.SearchText.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "suggest: parse catalog")
	}

	for i := range c.Families {
		f := &c.Families[i]
		f.Family = strings.ToUpper(strings.TrimSpace(f.Family))
		if f.Family == "" {
			return nil, eris.Errorf("suggest: family set %d has no family code", i)
		}
		for j := range f.Templates {
			t := &f.Templates[j]
			t.Key = strings.ToLower(strings.TrimSpace(t.Key))
			if t.Key == "" {
				return nil, eris.Errorf("suggest: %s template %d has no key", f.Family, j)
			}
			if err := checkText(f.Family+"/"+t.Key, t.Fields.Implementation); err != nil {
				return nil, err
			}
		}
	}
	for i := range c.Keywords {
		k := &c.Keywords[i]
		k.Keywords = lowerAll(k.Keywords)
		if err := checkText("keyword/"+k.Category, k.Fields.Implementation); err != nil {
			return nil, err
		}
	}
	for i := range c.Generic {
		g := &c.Generic[i]
		g.TitleKeywords = lowerAll(g.TitleKeywords)
		if err := checkText("generic/"+g.Name, g.Fields.Implementation); err != nil {
			return nil, err
		}
	}
	return &c, checkText("default", c.Default.Implementation)
}

// Family returns the template set registered for a family code.
func (c *Catalog) Family(code string) (FamilySet, bool) {
	for _, f := range c.Families {
		if f.Family == code {
			return f, true
		}
	}
	return FamilySet{}, false
}

func checkText(name, text string) error {
	if n := utf8.RuneCountInString(text); n > MaxTemplateChars {
		return eris.Errorf("suggest: %s implementation is %d characters, limit %d", name, n, MaxTemplateChars)
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
