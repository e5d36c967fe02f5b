// Package fieldgroups resolves grouped logical fields: a value column paired
// with a units column, or with a fixed literal unit. Groups come from the
// dialect template; a group participates in an import only when its value
// column is present in the uploaded table.
package fieldgroups

import (
	"strings"

	"github.com/strataworks/sampleflow/pkg/samples"
	"github.com/strataworks/sampleflow/pkg/tables"
)

// LiteralPrefix marks a units entry as a literal string constant rather than
// a column key, e.g. "str:degrees" for latitude.
const LiteralPrefix = "str:"

// Group pairs a value column key with a units source.
type Group struct {
	// Value is the canonical key of the value column. It also names the
	// resulting controlled metadata field.
	Value string `yaml:"value"`
	// Units is either a canonical column key or a literal prefixed with
	// "str:".
	Units string `yaml:"units"`
}

// LiteralUnits returns the literal unit string and true when the group
// carries a fixed unit rather than a units column.
func (g Group) LiteralUnits() (string, bool) {
	if strings.HasPrefix(g.Units, LiteralPrefix) {
		return strings.TrimPrefix(g.Units, LiteralPrefix), true
	}
	return "", false
}

// RowView is the row access the resolver needs: cell lookup by canonical
// column key, reporting presence of the column in the table.
type RowView interface {
	Cell(key string) (tables.Cell, bool)
}

// Resolver determines which configured groups are active for a table and
// extracts grouped metadata entries from rows.
type Resolver struct {
	groups []Group
}

// NewResolver creates a Resolver over the dialect's group definitions.
func NewResolver(groups []Group) *Resolver {
	return &Resolver{groups: groups}
}

// Active returns the groups whose value column is present in the table,
// deduplicated by value key. Templates may define several candidate unit
// columns for one value (unit header aliases); the first candidate whose
// units column is actually in the table wins, falling back to the first
// candidate otherwise.
func (r *Resolver) Active(columnKeys map[string]bool) []Group {
	chosen := make(map[string]int)
	var out []Group
	for _, g := range r.groups {
		if !columnKeys[g.Value] {
			continue
		}
		if idx, ok := chosen[g.Value]; ok {
			// Upgrade to a candidate whose units column exists.
			if _, lit := out[idx].LiteralUnits(); !lit && !columnKeys[out[idx].Units] && columnKeys[g.Units] {
				out[idx] = g
			}
			continue
		}
		chosen[g.Value] = len(out)
		out = append(out, g)
	}
	return out
}

// Groups returns all configured group definitions.
func (r *Resolver) Groups() []Group {
	return r.groups
}

// UnitKeys maps each non-literal group's value key to its units column key.
// Diagnostics resolution uses this to locate grouped subfield errors.
func UnitKeys(groups []Group) map[string]string {
	out := make(map[string]string)
	for _, g := range groups {
		if _, lit := g.LiteralUnits(); !lit {
			out[g.Value] = g.Units
		}
	}
	return out
}

// Extract pulls one grouped metadata entry from a row. The boolean result is
// false when the value cell is null or absent, in which case the group
// contributes nothing for this row. The returned set names the column keys
// consumed by the group so the classifier can exclude them from user
// metadata.
func Extract(row RowView, g Group) (samples.MetaValue, map[string]bool, bool) {
	used := make(map[string]bool)

	cell, ok := row.Cell(g.Value)
	if !ok || cell.IsNull() {
		return samples.MetaValue{}, used, false
	}
	used[g.Value] = true

	// Numeric coercion falls back to the raw text.
	entry := samples.MetaValue{Value: cell.Value()}

	if literal, ok := g.LiteralUnits(); ok {
		entry.Units = literal
		return entry, used, true
	}

	if unitCell, ok := row.Cell(g.Units); ok && !unitCell.IsNull() {
		entry.Units = unitCell.String()
		used[g.Units] = true
	}

	return entry, used, true
}
