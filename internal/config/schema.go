package config

import (
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/ontology"
)

// Schema is the validator key schema shared by all dialects: the full set of
// controlled metadata keys, dialect-prefixed where a field means different
// things in different formats.
type Schema struct {
	Validators []string `yaml:"validators"`
}

// ParseSchema parses the validator schema.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.NewConfigError("schema", "parsing validator schema", err)
	}
	if len(s.Validators) == 0 {
		return nil, errors.NewConfigError("schema", "validator schema is empty", nil)
	}
	return &s, nil
}

// LoadSchema loads the embedded validator schema.
func LoadSchema() (*Schema, error) {
	data, err := templatesFS.ReadFile("templates/validators.yaml")
	if err != nil {
		return nil, errors.NewConfigError("schema", "missing embedded validator schema", err)
	}
	return ParseSchema(data)
}

// Controlled returns the full controlled-key set, lowercased.
func (s *Schema) Controlled() map[string]bool {
	out := make(map[string]bool, len(s.Validators))
	for _, v := range s.Validators {
		out[strings.ToLower(v)] = true
	}
	return out
}

// CoreFields returns the unprefixed validator keys: fields shared across
// dialects that are never namespaced.
func (s *Schema) CoreFields() map[string]bool {
	out := make(map[string]bool)
	for _, v := range s.Validators {
		if !strings.Contains(v, ":") {
			out[strings.ToLower(v)] = true
		}
	}
	return out
}

// PrefixFields returns the unprefixed spellings of dialect-namespaced
// validator keys. A raw header normalizing to one of these must be prefixed
// with its dialect.
func (s *Schema) PrefixFields() map[string]bool {
	out := make(map[string]bool)
	for _, v := range s.Validators {
		if i := strings.Index(v, ":"); i >= 0 {
			out[strings.ToLower(v[i+1:])] = true
		}
	}
	return out
}

// ontologyBindings is the on-disk shape of the ontology field config.
type ontologyBindings struct {
	Fields map[string]struct {
		Namespace string `yaml:"namespace"`
		IDPrefix  string `yaml:"id_prefix"`
	} `yaml:"fields"`
}

// LoadOntologyFields loads the embedded ontology field bindings: which
// controlled keys are ontology-resolved, against which namespace, and the
// well-formed term ID prefix.
func LoadOntologyFields() (map[string]ontology.FieldConfig, error) {
	data, err := templatesFS.ReadFile("templates/ontology.yaml")
	if err != nil {
		return nil, errors.NewConfigError("ontology", "missing embedded ontology bindings", err)
	}

	var b ontologyBindings
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, errors.NewConfigError("ontology", "parsing ontology bindings", err)
	}

	out := make(map[string]ontology.FieldConfig, len(b.Fields))
	for key, f := range b.Fields {
		out[strings.ToLower(key)] = ontology.FieldConfig{
			Namespace: f.Namespace,
			IDPrefix:  f.IDPrefix,
		}
	}
	return out, nil
}
