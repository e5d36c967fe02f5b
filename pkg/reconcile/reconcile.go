// Package reconcile compares newly parsed samples against the previously
// persisted version of the same collection and decides, per sample, whether
// to do nothing, create a first version, or save a new version. Prior
// records are fetched lazily: only a name or explicit-ID match triggers a
// store read.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/strataworks/sampleflow/pkg/diagnostics"
	"github.com/strataworks/sampleflow/pkg/samples"
)

// Action is the reconciliation outcome for one sample.
type Action string

// Reconciliation outcomes.
const (
	// ActionNoop means the incoming sample equals its prior version; no
	// version bump.
	ActionNoop Action = "noop"
	// ActionCreate means the sample has no prior record; save version 1.
	ActionCreate Action = "create"
	// ActionNewVersion means the sample differs from its prior record;
	// save against the prior's version.
	ActionNewVersion Action = "new_version"
)

// RenamePolicy controls what happens when an upload keeps a prior record's
// explicit ID but changes its name.
type RenamePolicy string

// Rename policies.
const (
	// RenameReject treats a rename as a row error. This is the default: an
	// unintended name edit silently forking a record's identity is worse
	// than making the user re-upload.
	RenameReject RenamePolicy = "reject"
	// RenameAccept saves the renamed sample as a new version of the prior
	// record.
	RenameAccept RenamePolicy = "accept"
)

// Store is the prior-record access the reconciler needs.
type Store interface {
	// Get fetches a sample by record ID. A nil version fetches the latest.
	Get(ctx context.Context, id string, version *int) (*samples.Sample, samples.Ref, error)
}

// Decision is the reconciliation result for one sample.
type Decision struct {
	Action Action
	// Prior is set for noop and new-version decisions.
	Prior *samples.Ref
}

// Reconciler reconciles samples against a prior collection.
type Reconciler struct {
	store  Store
	rename RenamePolicy
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRenamePolicy sets the rename policy.
func WithRenamePolicy(p RenamePolicy) Option {
	return func(r *Reconciler) {
		r.rename = p
	}
}

// New creates a Reconciler backed by the given store.
func New(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		rename: RenameReject,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile decides the action for one sample. priorByName indexes the prior
// collection by sample name. explicitID, when non-empty, is a prior record
// reference carried in the upload itself. Failures are row-scoped: they are
// appended to the collector and reported through the boolean result.
func (r *Reconciler) Reconcile(ctx context.Context, sample *samples.Sample, explicitID string,
	priorByName map[string]samples.Ref, col *diagnostics.Collector, row int) (Decision, bool) {

	if explicitID != "" {
		return r.reconcileExplicit(ctx, sample, explicitID, priorByName, col, row)
	}

	if ref, ok := priorByName[sample.Name]; ok {
		prior, fullRef, err := r.store.Get(ctx, ref.ID, nil)
		if err != nil {
			r.fetchError(col, sample.Name, ref.ID, row, err)
			return Decision{}, false
		}
		return r.diff(sample, prior, fullRef), true
	}

	return Decision{Action: ActionCreate}, true
}

// reconcileExplicit handles uploads that carry a prior record ID.
func (r *Reconciler) reconcileExplicit(ctx context.Context, sample *samples.Sample, explicitID string,
	priorByName map[string]samples.Ref, col *diagnostics.Collector, row int) (Decision, bool) {

	prior, ref, err := r.store.Get(ctx, explicitID, nil)
	if err != nil {
		r.fetchError(col, sample.Name, explicitID, row, err)
		return Decision{}, false
	}

	if prior.Name != sample.Name {
		if other, ok := priorByName[sample.Name]; ok && other.ID != explicitID {
			col.Error(diagnostics.Diagnostic{
				Message: fmt.Sprintf(
					"cannot rename existing sample %q to %q: that name belongs to a different record (ids %s and %s)",
					prior.Name, sample.Name, explicitID, other.ID),
				SampleName: sample.Name,
				Row:        diagnostics.IntPtr(row),
			})
			return Decision{}, false
		}
		if r.rename == RenameReject {
			col.Error(diagnostics.Diagnostic{
				Message: fmt.Sprintf(
					"renaming existing sample %q to %q is not permitted; re-upload without the record id to create a new sample",
					prior.Name, sample.Name),
				SampleName: sample.Name,
				Row:        diagnostics.IntPtr(row),
			})
			return Decision{}, false
		}
		// Accepted rename is by definition a content change.
		return Decision{Action: ActionNewVersion, Prior: &ref}, true
	}

	return r.diff(sample, prior, ref), true
}

// diff compares an incoming sample with its fetched prior version.
func (r *Reconciler) diff(sample, prior *samples.Sample, ref samples.Ref) Decision {
	if sample.Equal(prior) {
		return Decision{Action: ActionNoop, Prior: &ref}
	}
	return Decision{Action: ActionNewVersion, Prior: &ref}
}

func (r *Reconciler) fetchError(col *diagnostics.Collector, name, id string, row int, err error) {
	col.Error(diagnostics.Diagnostic{
		Message:    fmt.Sprintf("fetching prior sample %s: %v", id, err),
		SampleName: name,
		Row:        diagnostics.IntPtr(row),
	})
}

// CarryOver returns the prior refs not superseded by the new upload. With
// keepExisting false the import is a full replace and nothing carries over;
// with keepExisting true every prior sample absent from the input table
// passes through unchanged, sorted by name for deterministic output.
func CarryOver(priorByName map[string]samples.Ref, imported map[string]bool, keepExisting bool) []samples.Ref {
	if !keepExisting {
		return nil
	}
	var out []samples.Ref
	for name, ref := range priorByName {
		if !imported[name] {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
