// Package classify splits a normalized table row into controlled and user
// metadata and assembles the resulting sample record. Controlled metadata is
// schema-backed: grouped fields from the dialect template, standalone fields
// from the validator schema, and ontology-controlled fields resolved to term
// IDs. Everything left over is user metadata, stored opaquely with
// best-effort typing.
package classify

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/strataworks/sampleflow/pkg/diagnostics"
	"github.com/strataworks/sampleflow/pkg/fieldgroups"
	"github.com/strataworks/sampleflow/pkg/normalize"
	"github.com/strataworks/sampleflow/pkg/ontology"
	"github.com/strataworks/sampleflow/pkg/samples"
	"github.com/strataworks/sampleflow/pkg/tables"
)

// Structural field keys reserved from metadata extraction.
const (
	// KeyName is the canonical sample name column.
	KeyName = "name"
	// KeySampleID is the explicit prior-record reference column.
	KeySampleID = "kbase_sample_id"
	// KeyParentID is the parent node reference column.
	KeyParentID = "parent_id"
)

// UnitRule captures units from a user-metadata column header. Rules are an
// ordered list; the first pattern whose first capture group matches the
// original header wins.
type UnitRule struct {
	Pattern *regexp.Regexp
}

// CompileUnitRules compiles template regex strings into unit rules.
func CompileUnitRules(patterns []string) ([]UnitRule, error) {
	rules := make([]UnitRule, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling unit regex %q: %w", p, err)
		}
		rules = append(rules, UnitRule{Pattern: re})
	}
	return rules, nil
}

// units applies the rule to a header, returning the captured units.
func (r UnitRule) units(header string) (string, bool) {
	m := r.Pattern.FindStringSubmatch(header)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Params configures a Classifier for one import run.
type Params struct {
	// Columns are the normalized table columns.
	Columns []normalize.Column
	// Groups resolves grouped value/units fields.
	Groups *fieldgroups.Resolver
	// UnitRules capture units from unrecognized column headers.
	UnitRules []UnitRule
	// Ontology resolves ontology-controlled fields; may be nil.
	Ontology *ontology.Resolver
	// Controlled is the validator schema key set; present columns in it
	// become standalone controlled metadata.
	Controlled map[string]bool
	// DateKeys are canonical keys whose values are calendar dates,
	// reformatted to ISO 8601 before storage.
	DateKeys map[string]bool
	// IDField optionally overrides which canonical key supplies the sample
	// name. Defaults to "name".
	IDField string
}

// Result is the classification of one row.
type Result struct {
	// Name is the sample name, the reconciliation key.
	Name string
	// SampleID is the explicit prior-record ID, when the upload carries one.
	SampleID string
	// ParentID is the parent node reference, when present.
	ParentID string
	// Controlled holds schema-validated metadata.
	Controlled map[string]samples.MetaValue
	// User holds opaque user-defined metadata.
	User map[string]samples.MetaValue
	// SourceMeta maps each controlled key to its original header and value.
	SourceMeta []samples.SourceMeta
	// Row is the zero-based datafile row index.
	Row int
}

// Classifier classifies rows of one normalized table.
type Classifier struct {
	p       Params
	byKey   map[string]normalize.Column
	keys    map[string]bool
	active  []fieldgroups.Group
	nameKey string

	// warnedUser tracks user-metadata columns already reported, one
	// warning per column per run.
	warnedUser map[string]bool
}

// New creates a Classifier for the given table shape.
func New(p Params) *Classifier {
	byKey := make(map[string]normalize.Column, len(p.Columns))
	for _, c := range p.Columns {
		if _, ok := byKey[c.Key]; !ok {
			byKey[c.Key] = c
		}
	}
	keys := normalize.Keys(p.Columns)

	nameKey := p.IDField
	if nameKey == "" {
		nameKey = KeyName
	}

	var active []fieldgroups.Group
	if p.Groups != nil {
		active = p.Groups.Active(keys)
	}

	return &Classifier{
		p:          p,
		byKey:      byKey,
		keys:       keys,
		active:     active,
		nameKey:    nameKey,
		warnedUser: make(map[string]bool),
	}
}

// ActiveGroups returns the field groups active for this table.
func (c *Classifier) ActiveGroups() []fieldgroups.Group {
	return c.active
}

// NameKey returns the canonical key used as the sample name column.
func (c *Classifier) NameKey() string {
	return c.nameKey
}

// rowView adapts one table row to keyed cell lookup, applying ontology
// value overrides without mutating the underlying row.
type rowView struct {
	row       tables.Row
	byKey     map[string]normalize.Column
	overrides map[string]string
}

func (v *rowView) Cell(key string) (tables.Cell, bool) {
	if override, ok := v.overrides[key]; ok {
		return tables.NewCell(override), true
	}
	col, ok := v.byKey[key]
	if !ok {
		return tables.NullCell(), false
	}
	return v.row.Cell(col.Index), true
}

// Classify classifies one row. Row-scoped failures (missing name,
// unresolvable ontology terms) are appended to the collector as error
// diagnostics and reported through the boolean result; they never abort the
// run.
func (c *Classifier) Classify(ctx context.Context, row tables.Row, col *diagnostics.Collector) (*Result, bool) {
	res := &Result{
		Controlled: make(map[string]samples.MetaValue),
		User:       make(map[string]samples.MetaValue),
		Row:        row.Index,
	}

	view := &rowView{row: row, byKey: c.byKey, overrides: make(map[string]string)}

	// Structural fields come out first; they are not metadata.
	if cell, ok := view.Cell(c.nameKey); ok && !cell.IsNull() {
		res.Name = cell.String()
	}
	if res.Name == "" {
		col.Error(diagnostics.Diagnostic{
			Message: fmt.Sprintf("missing required %q field", c.nameKey),
			Key:     c.nameKey,
			Row:     diagnostics.IntPtr(row.Index),
		})
		return res, false
	}
	if cell, ok := view.Cell(KeySampleID); ok && !cell.IsNull() {
		res.SampleID = cell.String()
	}
	if cell, ok := view.Cell(KeyParentID); ok && !cell.IsNull() {
		res.ParentID = cell.String()
	}
	reserved := map[string]bool{
		c.nameKey:   true,
		KeyName:     true,
		KeySampleID: true,
		KeyParentID: true,
	}

	ok := c.resolveOntologyFields(ctx, view, res, col)
	if !c.resolveDateFields(view, res, col) {
		ok = false
	}

	used := c.extractGroups(view, res)

	// Everything not consumed by a structural field or a group splits into
	// standalone controlled metadata or user metadata. Iterate columns in
	// file order for deterministic source metadata.
	for _, column := range c.p.Columns {
		key := column.Key
		if reserved[key] || used[key] {
			continue
		}
		cell, _ := view.Cell(key)
		if cell.IsNull() {
			continue
		}

		if c.p.Controlled[key] || (c.p.Ontology != nil && c.p.Ontology.IsControlled(key)) {
			res.Controlled[key] = samples.MetaValue{Value: cell.Value()}
			continue
		}

		entry := samples.MetaValue{Value: cell.Value()}
		for _, rule := range c.p.UnitRules {
			if units, matched := rule.units(column.Header); matched {
				entry.Units = units
				break
			}
		}
		res.User[key] = entry
		c.warnUserColumn(column, col)
	}

	c.buildSourceMeta(row, res)

	return res, ok
}

// resolveOntologyFields rewrites ontology-controlled cells to canonical term
// IDs via row-view overrides. Failures become located error diagnostics.
func (c *Classifier) resolveOntologyFields(ctx context.Context, view *rowView, res *Result, col *diagnostics.Collector) bool {
	if c.p.Ontology == nil {
		return true
	}

	ok := true
	// Deterministic order over the present ontology columns.
	var ontoKeys []string
	for key := range c.keys {
		if c.p.Ontology.IsControlled(key) {
			ontoKeys = append(ontoKeys, key)
		}
	}
	sort.Strings(ontoKeys)

	for _, key := range ontoKeys {
		cell, present := view.Cell(key)
		if !present || cell.IsNull() {
			continue
		}
		id, err := c.p.Ontology.Resolve(ctx, key, cell.String())
		if err != nil {
			col.Error(diagnostics.Diagnostic{
				Message:    err.Error(),
				SampleName: res.Name,
				Key:        key,
				Row:        diagnostics.IntPtr(res.Row),
			})
			ok = false
			continue
		}
		if id != "" {
			view.overrides[key] = id
		}
	}
	return ok
}

// dateLayouts are the accepted input spellings for date columns, tried in
// order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"January 2, 2006",
}

// resolveDateFields rewrites date-column cells to ISO 8601 via row-view
// overrides. Unparseable dates become located error diagnostics.
func (c *Classifier) resolveDateFields(view *rowView, res *Result, col *diagnostics.Collector) bool {
	ok := true
	var dateKeys []string
	for key := range c.keys {
		if c.p.DateKeys[key] {
			dateKeys = append(dateKeys, key)
		}
	}
	sort.Strings(dateKeys)

	for _, key := range dateKeys {
		cell, present := view.Cell(key)
		if !present || cell.IsNull() {
			continue
		}
		raw := cell.String()
		parsed, err := parseDate(raw)
		if err != nil {
			col.Error(diagnostics.Diagnostic{
				Message:    fmt.Sprintf("cannot parse %q as a date", raw),
				SampleName: res.Name,
				Key:        key,
				Row:        diagnostics.IntPtr(res.Row),
			})
			ok = false
			continue
		}
		view.overrides[key] = parsed
	}
	return ok
}

func parseDate(raw string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date format %q", raw)
}

// extractGroups pulls grouped metadata and returns the consumed column keys.
// Unit columns of active groups are consumed even when a particular row has
// no value, so they never leak into user metadata.
func (c *Classifier) extractGroups(view *rowView, res *Result) map[string]bool {
	used := make(map[string]bool)
	for _, g := range c.active {
		entry, groupUsed, ok := fieldgroups.Extract(view, g)
		for k := range groupUsed {
			used[k] = true
		}
		if _, lit := g.LiteralUnits(); !lit && c.keys[g.Units] {
			used[g.Units] = true
		}
		if ok {
			res.Controlled[g.Value] = entry
		}
	}
	return used
}

// warnUserColumn reports an unrecognized column once per run.
func (c *Classifier) warnUserColumn(column normalize.Column, col *diagnostics.Collector) {
	if c.warnedUser[column.Key] {
		return
	}
	c.warnedUser[column.Key] = true
	col.Warning(diagnostics.Diagnostic{
		Message: fmt.Sprintf("unrecognized column %q imported as user metadata with unvalidated type", column.Header),
		Key:     column.Key,
		Column:  diagnostics.IntPtr(column.Index),
	})
}

// buildSourceMeta records, for every controlled key, the original header
// text and raw (pre-transform) cell value.
func (c *Classifier) buildSourceMeta(row tables.Row, res *Result) {
	for _, column := range c.p.Columns {
		if _, ok := res.Controlled[column.Key]; !ok {
			continue
		}
		cell := row.Cell(column.Index)
		res.SourceMeta = append(res.SourceMeta, samples.SourceMeta{
			Key:         column.Key,
			SourceKey:   column.Header,
			SourceValue: cell.String(),
		})
	}
}

// Sample assembles the sample record for one classified row: a single-node
// tree in the flat-upload shape.
func (r *Result) Sample() *samples.Sample {
	var parent *string
	if r.ParentID != "" {
		p := r.ParentID
		parent = &p
	}
	return &samples.Sample{
		Name: r.Name,
		NodeTree: []samples.Node{{
			ID:             r.Name,
			Parent:         parent,
			Type:           samples.DefaultNodeType,
			MetaControlled: r.Controlled,
			MetaUser:       r.User,
			SourceMeta:     r.SourceMeta,
		}},
	}
}
