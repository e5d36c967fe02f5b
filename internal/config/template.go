// Package config loads dialect templates and the validator schema, and
// derives from them the tables the import pipeline consumes: header aliases,
// unit-measurement groups, date columns, and controlled-key sets. Templates
// for the SESAR and ENIGMA dialects are embedded; external template files
// can be supplied for other formats.
package config

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/fieldgroups"
	"github.com/strataworks/sampleflow/pkg/normalize"
)

//go:embed templates/*.yaml
var templatesFS embed.FS

// Transformation is one column transformation rule from a dialect template.
// The first parameter names the target metadata key; the meaning of the rest
// depends on the transform.
type Transformation struct {
	Transform  string   `yaml:"transform"`
	Parameters []string `yaml:"parameters"`
}

// ColumnRule is one column's template entry: alternate header spellings plus
// optional transformations.
type ColumnRule struct {
	Aliases         []string         `yaml:"aliases"`
	Transformations []Transformation `yaml:"transformations"`
}

// Template is a parsed dialect template.
type Template struct {
	// Dialect names the input format ("sesar", "enigma").
	Dialect string `yaml:"dialect"`
	// Columns maps the dialect's original header text to its rule.
	Columns map[string]ColumnRule `yaml:"columns"`
	// UnitRules are regex patterns capturing units from unrecognized column
	// headers.
	UnitRules []string `yaml:"unit_rules"`
}

// ParseTemplate parses and validates a dialect template.
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.NewConfigError("template", "parsing dialect template", err)
	}
	if t.Dialect == "" {
		return nil, errors.NewConfigError("template", "template has no dialect name", nil)
	}
	if len(t.Columns) == 0 {
		return nil, errors.NewConfigError("template", fmt.Sprintf("template %q has no columns", t.Dialect), nil)
	}
	return &t, nil
}

// LoadTemplate loads an embedded dialect template by name.
func LoadTemplate(dialect string) (*Template, error) {
	data, err := templatesFS.ReadFile("templates/" + strings.ToLower(dialect) + ".yaml")
	if err != nil {
		return nil, errors.NewConfigError("template", fmt.Sprintf("no built-in template for dialect %q", dialect), err)
	}
	return ParseTemplate(data)
}

// LoadTemplateFile loads a dialect template from an external file.
func LoadTemplateFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return ParseTemplate(data)
}

// target returns the canonical metadata key a template column maps to: the
// first transformation's first parameter when present, the canonicalized
// header otherwise.
func (r ColumnRule) target(header string) string {
	if len(r.Transformations) > 0 && len(r.Transformations[0].Parameters) > 0 {
		return r.Transformations[0].Parameters[0]
	}
	return normalize.Key(header)
}

// headers returns the template's column headers in sorted order, for
// deterministic derived tables.
func (t *Template) headers() []string {
	out := make([]string, 0, len(t.Columns))
	for h := range t.Columns {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Aliases derives the header alias table: every alternate spelling, plus the
// column header itself, canonicalized and mapped to the column's target key.
func (t *Template) Aliases() map[string]string {
	out := make(map[string]string)
	for _, header := range t.headers() {
		rule := t.Columns[header]
		target := rule.target(header)
		out[normalize.Key(header)] = target
		for _, alias := range rule.Aliases {
			out[normalize.Key(alias)] = target
		}
	}
	return out
}

// Groups derives the unit-measurement groups. A unit_measurement
// transformation pairs a value key with a units column; every spelling of
// the units column becomes a candidate group, resolved against the actual
// table at import time. A unit_measurement_fixed transformation carries its
// literal unit inline.
func (t *Template) Groups() []fieldgroups.Group {
	var out []fieldgroups.Group
	for _, header := range t.headers() {
		rule := t.Columns[header]
		if len(rule.Transformations) == 0 {
			continue
		}
		tr := rule.Transformations[0]
		if len(tr.Parameters) < 2 {
			continue
		}
		switch tr.Transform {
		case "unit_measurement":
			for _, unitKey := range t.unitCandidates(tr.Parameters[1]) {
				out = append(out, fieldgroups.Group{Value: tr.Parameters[0], Units: unitKey})
			}
		case "unit_measurement_fixed":
			out = append(out, fieldgroups.Group{
				Value: tr.Parameters[0],
				Units: fieldgroups.LiteralPrefix + tr.Parameters[1],
			})
		}
	}
	return out
}

// unitCandidates expands a units column reference into its canonical key
// spellings. When the units column has its own template entry, its aliases
// contribute candidates too.
func (t *Template) unitCandidates(unitHeader string) []string {
	rule, ok := t.Columns[unitHeader]
	if !ok {
		return []string{normalize.Key(unitHeader)}
	}
	if len(rule.Transformations) > 0 && len(rule.Transformations[0].Parameters) > 0 {
		return []string{normalize.Key(rule.Transformations[0].Parameters[0])}
	}

	seen := map[string]bool{}
	var out []string
	for _, spelling := range append([]string{unitHeader}, rule.Aliases...) {
		key := normalize.Key(spelling)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// DateColumns derives the canonical keys holding calendar dates: columns
// whose target key mentions "date" but not "precision".
func (t *Template) DateColumns() map[string]bool {
	out := make(map[string]bool)
	for _, header := range t.headers() {
		target := t.Columns[header].target(header)
		if strings.Contains(target, "date") && !strings.Contains(target, "precision") {
			out[target] = true
		}
	}
	return out
}
