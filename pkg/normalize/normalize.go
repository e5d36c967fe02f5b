// Package normalize canonicalizes raw spreadsheet headers into the column
// keys the rest of the import pipeline works with. Normalization is a pure
// function over the header list: canonical key derivation, duplicate
// detection, alias resolution from the dialect template, and dialect
// prefixing of ambiguous shared fields.
package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/strataworks/sampleflow/pkg/diagnostics"
	"github.com/strataworks/sampleflow/pkg/errors"
)

// folder lower-cases with full Unicode case folding, so dialect templates
// written with non-ASCII headers normalize consistently.
var folder = cases.Fold()

// Key derives the canonical column key for a raw header: trim, case-fold,
// strip parentheses, turn slashes into underscores, and collapse internal
// whitespace runs to single underscores.
//
//	"Depth in Core (max)" -> "depth_in_core_max"
//	"City/Township"       -> "city_township"
func Key(raw string) string {
	s := folder.String(strings.TrimSpace(raw))
	s = strings.NewReplacer("(", "", ")", "", "/", "_").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}

// Column is one resolved table column: the canonical key, the exact original
// header text, and the zero-based column index. The original header is
// retained for source metadata and export round-trips.
type Column struct {
	Key    string
	Header string
	Index  int
}

// Config holds the dialect-specific normalization tables.
type Config struct {
	// Dialect is the input format name ("sesar", "enigma"), used to
	// namespace ambiguous fields.
	Dialect string
	// Aliases maps canonical-formatted alternate spellings to the canonical
	// key ("sample_id" -> "name"). A raw header that itself normalizes to a
	// canonical key always beats an alias claiming the same key.
	Aliases map[string]string
	// PrefixFields are keys that exist in more than one dialect and must be
	// namespaced as "<dialect>:<key>".
	PrefixFields map[string]bool
	// CoreFields are keys shared across dialects that are never prefixed,
	// overriding PrefixFields.
	CoreFields map[string]bool
}

// Normalizer resolves raw header lists against one dialect's tables.
type Normalizer struct {
	cfg Config
}

// New creates a Normalizer for the given dialect config.
func New(cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize canonicalizes the header list. It returns the resolved columns
// in file order (first occurrence wins on collisions) and one error
// diagnostic per duplicate, located at the later column index. The only
// error return is a structurally unusable header list.
func (n *Normalizer) Normalize(headers []string) ([]Column, []diagnostics.Diagnostic, error) {
	if len(headers) == 0 {
		return nil, nil, errors.NewStructuralError("", "empty header list")
	}

	rawKeys := make([]string, len(headers))
	claimed := make(map[string]bool, len(headers))
	for i, h := range headers {
		rawKeys[i] = Key(h)
		claimed[rawKeys[i]] = true
	}

	var columns []Column
	var diags []diagnostics.Diagnostic
	seen := make(map[string]int)

	for i, h := range headers {
		key := rawKeys[i]

		// Canonical beats alias: only rewrite through the alias table when
		// no other column normalizes directly to the target key.
		if target, ok := n.cfg.Aliases[key]; ok && target != key && !claimed[target] {
			key = target
		}

		if n.cfg.PrefixFields[key] && !n.cfg.CoreFields[key] && n.cfg.Dialect != "" {
			key = n.cfg.Dialect + ":" + key
		}

		if first, dup := seen[key]; dup {
			diags = append(diags, diagnostics.Diagnostic{
				Message: fmt.Sprintf("duplicate column %q: %q collides with column %d",
					key, h, first),
				Severity: diagnostics.SeverityError,
				Key:      key,
				Column:   diagnostics.IntPtr(i),
			})
			continue
		}
		seen[key] = i
		columns = append(columns, Column{Key: key, Header: h, Index: i})
	}

	return columns, diags, nil
}

// Keys returns the canonical key set of a resolved column list.
func Keys(columns []Column) map[string]bool {
	out := make(map[string]bool, len(columns))
	for _, c := range columns {
		out[c.Key] = true
	}
	return out
}
