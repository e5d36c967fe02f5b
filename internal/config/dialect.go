package config

import (
	"github.com/strataworks/sampleflow/pkg/classify"
	"github.com/strataworks/sampleflow/pkg/fieldgroups"
	"github.com/strataworks/sampleflow/pkg/importer"
	"github.com/strataworks/sampleflow/pkg/normalize"
	"github.com/strataworks/sampleflow/pkg/ontology"
	"github.com/strataworks/sampleflow/pkg/reconcile"
)

// Dialect bundles the derived per-format tables the import pipeline
// consumes.
type Dialect struct {
	Name       string
	Normalize  normalize.Config
	Groups     *fieldgroups.Resolver
	UnitRules  []classify.UnitRule
	Controlled map[string]bool
	DateKeys   map[string]bool
	Ontology   map[string]ontology.FieldConfig
}

// LoadDialect assembles a Dialect from its template plus the shared
// validator schema and ontology bindings. templatePath, when non-empty,
// overrides the built-in template for the named dialect.
func LoadDialect(name, templatePath string) (*Dialect, error) {
	var (
		tpl *Template
		err error
	)
	if templatePath != "" {
		tpl, err = LoadTemplateFile(templatePath)
	} else {
		tpl, err = LoadTemplate(name)
	}
	if err != nil {
		return nil, err
	}

	schema, err := LoadSchema()
	if err != nil {
		return nil, err
	}
	ontoFields, err := LoadOntologyFields()
	if err != nil {
		return nil, err
	}
	rules, err := classify.CompileUnitRules(tpl.UnitRules)
	if err != nil {
		return nil, err
	}

	return &Dialect{
		Name: tpl.Dialect,
		Normalize: normalize.Config{
			Dialect:      tpl.Dialect,
			Aliases:      tpl.Aliases(),
			PrefixFields: schema.PrefixFields(),
			CoreFields:   schema.CoreFields(),
		},
		Groups:     fieldgroups.NewResolver(tpl.Groups()),
		UnitRules:  rules,
		Controlled: schema.Controlled(),
		DateKeys:   tpl.DateColumns(),
		Ontology:   ontoFields,
	}, nil
}

// ImporterParams seeds the pipeline parameters for one run. The caller fills
// in Prior from the previously persisted set. svc may be nil when no
// ontology service is reachable; ontology fields then import unresolved.
func (d *Dialect) ImporterParams(ic ImportConfig, svc ontology.Service) importer.Params {
	var resolver *ontology.Resolver
	if svc != nil && len(d.Ontology) > 0 {
		resolver = ontology.NewResolver(svc, d.Ontology)
	}

	rename := reconcile.RenameReject
	if ic.AcceptRenames {
		rename = reconcile.RenameAccept
	}

	return importer.Params{
		Path:           ic.File,
		HeaderRow:      ic.HeaderRow,
		IDField:        ic.IDField,
		KeepExisting:   ic.KeepExisting,
		IgnoreWarnings: ic.IgnoreWarnings,
		Prevalidate:    ic.Prevalidate,
		Description:    ic.Description,
		RenamePolicy:   rename,
		NullValues:     ic.NullValues,
		Normalize:      d.Normalize,
		Groups:         d.Groups,
		UnitRules:      d.UnitRules,
		Ontology:       resolver,
		Controlled:     d.Controlled,
		DateKeys:       d.DateKeys,
	}
}
