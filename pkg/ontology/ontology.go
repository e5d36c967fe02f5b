// Package ontology resolves free-text values in ontology-controlled columns
// (material, biome, feature) to canonical term identifiers, querying an
// external ontology lookup service by term name.
package ontology

import (
	"context"
	"fmt"
	"strings"
)

// Term is one ontology term returned by a lookup.
type Term struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Service is the external ontology lookup collaborator.
type Service interface {
	// LookupByName finds terms whose name equals the query within the given
	// namespace.
	LookupByName(ctx context.Context, namespace, name string) ([]Term, error)
}

// FieldConfig binds one column key to an ontology namespace.
type FieldConfig struct {
	// Namespace is the ontology to query ("envo_ontology").
	Namespace string
	// IDPrefix is the well-formed term-id prefix for the namespace
	// ("ENVO:"). Values already carrying it pass through unresolved.
	IDPrefix string
}

// Resolver resolves values for the ontology-controlled columns of a dialect.
type Resolver struct {
	svc    Service
	fields map[string]FieldConfig
}

// NewResolver creates a Resolver over the configured field bindings.
func NewResolver(svc Service, fields map[string]FieldConfig) *Resolver {
	if fields == nil {
		fields = make(map[string]FieldConfig)
	}
	return &Resolver{svc: svc, fields: fields}
}

// IsControlled reports whether the column key is ontology-controlled.
func (r *Resolver) IsControlled(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Resolve maps a raw cell value for an ontology-controlled column to its
// canonical term ID.
//
//   - Empty input is a no-op and returns ("", nil); callers skip it.
//   - Input already carrying the namespace's ID prefix passes through.
//   - Otherwise the value is case/whitespace-normalized and looked up by
//     name; exactly one match whose name case-insensitively equals the query
//     is required.
func (r *Resolver) Resolve(ctx context.Context, key, raw string) (string, error) {
	cfg, ok := r.fields[key]
	if !ok {
		return "", fmt.Errorf("column %q is not ontology-controlled", key)
	}
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	if cfg.IDPrefix != "" && strings.HasPrefix(raw, cfg.IDPrefix) {
		return raw, nil
	}

	query := strings.ToLower(strings.TrimSpace(raw))
	terms, err := r.svc.LookupByName(ctx, cfg.Namespace, query)
	if err != nil {
		return "", fmt.Errorf("ontology lookup for %q in %s: %w", query, cfg.Namespace, err)
	}
	if len(terms) != 1 {
		return "", fmt.Errorf("couldn't resolve ontology term: received %d results for %q in %s, expected 1",
			len(terms), query, cfg.Namespace)
	}

	term := terms[0]
	// The service may return stemmed or fuzzy matches; only an exact name
	// echo counts as resolved.
	if strings.ToLower(strings.TrimSpace(term.Name)) != query {
		return "", fmt.Errorf("name %q in ontology %s does not match provided %q",
			term.Name, cfg.Namespace, query)
	}
	if cfg.IDPrefix != "" && !strings.HasPrefix(term.ID, cfg.IDPrefix) {
		return "", fmt.Errorf("%s is not a well-formed id for ontology %s: must start with %s",
			term.ID, cfg.Namespace, cfg.IDPrefix)
	}

	return term.ID, nil
}
