// Package samples defines the sample record model shared across the import
// pipeline and the record store: a named sample owning a tree of nodes, each
// node carrying controlled metadata (schema-validated), user metadata
// (opaque), and source metadata mapping canonical keys back to the original
// upload headers.
package samples

import "reflect"

// DefaultNodeType is the node type assigned to samples built from a flat
// tabular upload, where every row is a single root node.
const DefaultNodeType = "BioReplicate"

// MetaValue is one metadata entry: a value plus optional units.
type MetaValue struct {
	Value any    `json:"value"`
	Units string `json:"units,omitempty"`
}

// SourceMeta maps one controlled metadata key back to the original upload
// header text and raw cell value, for traceability and export round-trips.
type SourceMeta struct {
	Key         string `json:"key"`
	SourceKey   string `json:"skey"`
	SourceValue any    `json:"svalue"`
}

// Node is one node of a sample's node tree.
type Node struct {
	ID             string               `json:"id"`
	Parent         *string              `json:"parent"`
	Type           string               `json:"type"`
	MetaControlled map[string]MetaValue `json:"meta_controlled"`
	MetaUser       map[string]MetaValue `json:"meta_user"`
	SourceMeta     []SourceMeta         `json:"source_meta,omitempty"`
}

// Sample is one sample record. Name is the reconciliation key: within one
// import run, two samples with the same name refer to the same record.
type Sample struct {
	Name     string `json:"name"`
	NodeTree []Node `json:"node_tree"`
}

// Ref points at a persisted version of a sample in the record store.
type Ref struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// Set is an ordered collection of sample refs, the unit the importer
// reconciles against and produces.
type Set struct {
	Description string `json:"description,omitempty"`
	Samples     []Ref  `json:"samples"`
}

// Equal reports whether two samples are structurally identical for
// reconciliation purposes. Source metadata is ignored: re-uploading the same
// file through a different dialect's header spellings must not count as a
// content change.
func (s *Sample) Equal(other *Sample) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Name != other.Name || len(s.NodeTree) != len(other.NodeTree) {
		return false
	}
	for i := range s.NodeTree {
		if !s.NodeTree[i].equal(&other.NodeTree[i]) {
			return false
		}
	}
	return true
}

func (n *Node) equal(other *Node) bool {
	if n.ID != other.ID || n.Type != other.Type {
		return false
	}
	if (n.Parent == nil) != (other.Parent == nil) {
		return false
	}
	if n.Parent != nil && *n.Parent != *other.Parent {
		return false
	}
	return metaEqual(n.MetaControlled, other.MetaControlled) &&
		metaEqual(n.MetaUser, other.MetaUser)
}

func metaEqual(a, b map[string]MetaValue) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av.Units != bv.Units {
			return false
		}
		if !reflect.DeepEqual(av.Value, bv.Value) {
			return false
		}
	}
	return true
}

// NamesByRef indexes a prior sample set by sample name.
func NamesByRef(refs []Ref) map[string]Ref {
	out := make(map[string]Ref, len(refs))
	for _, r := range refs {
		out[r.Name] = r
	}
	return out
}
