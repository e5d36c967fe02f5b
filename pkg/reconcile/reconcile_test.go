package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataworks/sampleflow/pkg/diagnostics"
	"github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/reconcile"
	"github.com/strataworks/sampleflow/pkg/samples"
)

// fakeStore serves fixed samples by record ID.
type fakeStore struct {
	byID  map[string]*samples.Sample
	refs  map[string]samples.Ref
	calls int
}

func (f *fakeStore) Get(_ context.Context, id string, _ *int) (*samples.Sample, samples.Ref, error) {
	f.calls++
	s, ok := f.byID[id]
	if !ok {
		return nil, samples.Ref{}, errors.NewNotFoundError("sample", id)
	}
	return s, f.refs[id], nil
}

func sampleWith(name string, meta map[string]samples.MetaValue) *samples.Sample {
	return &samples.Sample{
		Name: name,
		NodeTree: []samples.Node{{
			ID:             name,
			Type:           samples.DefaultNodeType,
			MetaControlled: meta,
			MetaUser:       map[string]samples.MetaValue{},
		}},
	}
}

func priorStore() (*fakeStore, map[string]samples.Ref) {
	store := &fakeStore{
		byID: map[string]*samples.Sample{
			"id-1": sampleWith("Sample 1", map[string]samples.MetaValue{
				"latitude": {Value: 32.5, Units: "degrees"},
			}),
			"id-2": sampleWith("Sample 2", nil),
		},
		refs: map[string]samples.Ref{
			"id-1": {ID: "id-1", Name: "Sample 1", Version: 3},
			"id-2": {ID: "id-2", Name: "Sample 2", Version: 1},
		},
	}
	priorByName := map[string]samples.Ref{
		"Sample 1": store.refs["id-1"],
		"Sample 2": store.refs["id-2"],
	}
	return store, priorByName
}

func TestReconcileByName(t *testing.T) {
	store, priorByName := priorStore()
	r := reconcile.New(store)

	t.Run("unchanged sample is a noop", func(t *testing.T) {
		col := diagnostics.NewCollector()
		same := sampleWith("Sample 1", map[string]samples.MetaValue{
			"latitude": {Value: 32.5, Units: "degrees"},
		})
		dec, ok := r.Reconcile(context.Background(), same, "", priorByName, col, 1)
		require.True(t, ok)
		assert.Equal(t, reconcile.ActionNoop, dec.Action)
		require.NotNil(t, dec.Prior)
		assert.Equal(t, 3, dec.Prior.Version)
	})

	t.Run("changed metadata is a new version", func(t *testing.T) {
		col := diagnostics.NewCollector()
		changed := sampleWith("Sample 1", map[string]samples.MetaValue{
			"latitude": {Value: 33.0, Units: "degrees"},
		})
		dec, ok := r.Reconcile(context.Background(), changed, "", priorByName, col, 1)
		require.True(t, ok)
		assert.Equal(t, reconcile.ActionNewVersion, dec.Action)
		require.NotNil(t, dec.Prior)
		assert.Equal(t, "id-1", dec.Prior.ID)
	})

	t.Run("unknown name is a create", func(t *testing.T) {
		col := diagnostics.NewCollector()
		dec, ok := r.Reconcile(context.Background(), sampleWith("Sample 99", nil), "", priorByName, col, 5)
		require.True(t, ok)
		assert.Equal(t, reconcile.ActionCreate, dec.Action)
		assert.Nil(t, dec.Prior)
	})

	t.Run("create never touches the store", func(t *testing.T) {
		before := store.calls
		col := diagnostics.NewCollector()
		_, ok := r.Reconcile(context.Background(), sampleWith("Sample 100", nil), "", priorByName, col, 6)
		require.True(t, ok)
		assert.Equal(t, before, store.calls)
	})
}

func TestReconcileIdempotent(t *testing.T) {
	// Re-importing the same content must keep deciding noop.
	store, priorByName := priorStore()
	r := reconcile.New(store)
	same := sampleWith("Sample 2", nil)

	for range 3 {
		col := diagnostics.NewCollector()
		dec, ok := r.Reconcile(context.Background(), same, "", priorByName, col, 2)
		require.True(t, ok)
		assert.Equal(t, reconcile.ActionNoop, dec.Action)
		assert.Equal(t, 0, col.Len())
	}
}

func TestReconcileExplicitID(t *testing.T) {
	t.Run("same name diffs against the referenced record", func(t *testing.T) {
		store, priorByName := priorStore()
		r := reconcile.New(store)
		col := diagnostics.NewCollector()

		changed := sampleWith("Sample 2", map[string]samples.MetaValue{
			"depth": {Value: 10.0, Units: "m"},
		})
		dec, ok := r.Reconcile(context.Background(), changed, "id-2", priorByName, col, 3)
		require.True(t, ok)
		assert.Equal(t, reconcile.ActionNewVersion, dec.Action)
		require.NotNil(t, dec.Prior)
		assert.Equal(t, "id-2", dec.Prior.ID)
	})

	t.Run("rename rejected by default", func(t *testing.T) {
		store, priorByName := priorStore()
		r := reconcile.New(store)
		col := diagnostics.NewCollector()

		renamed := sampleWith("Sample 2 Revised", nil)
		_, ok := r.Reconcile(context.Background(), renamed, "id-2", priorByName, col, 3)
		assert.False(t, ok)

		errs := col.Filter(diagnostics.SeverityError)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Message, "renaming existing sample")
		require.NotNil(t, errs[0].Row)
		assert.Equal(t, 3, *errs[0].Row)
	})

	t.Run("rename accepted when configured", func(t *testing.T) {
		store, priorByName := priorStore()
		r := reconcile.New(store, reconcile.WithRenamePolicy(reconcile.RenameAccept))
		col := diagnostics.NewCollector()

		renamed := sampleWith("Sample 2 Revised", nil)
		dec, ok := r.Reconcile(context.Background(), renamed, "id-2", priorByName, col, 3)
		require.True(t, ok)
		assert.Equal(t, reconcile.ActionNewVersion, dec.Action)
		require.NotNil(t, dec.Prior)
		assert.Equal(t, "id-2", dec.Prior.ID)
	})

	t.Run("rename onto another record's name is always an error", func(t *testing.T) {
		store, priorByName := priorStore()
		r := reconcile.New(store, reconcile.WithRenamePolicy(reconcile.RenameAccept))
		col := diagnostics.NewCollector()

		stolen := sampleWith("Sample 1", nil)
		_, ok := r.Reconcile(context.Background(), stolen, "id-2", priorByName, col, 4)
		assert.False(t, ok)

		errs := col.Filter(diagnostics.SeverityError)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Message, "cannot rename existing sample")
		assert.Contains(t, errs[0].Message, "id-1")
		assert.Contains(t, errs[0].Message, "id-2")
	})

	t.Run("missing record is a row error", func(t *testing.T) {
		store, priorByName := priorStore()
		r := reconcile.New(store)
		col := diagnostics.NewCollector()

		_, ok := r.Reconcile(context.Background(), sampleWith("Sample 9", nil), "id-gone", priorByName, col, 7)
		assert.False(t, ok)
		require.Len(t, col.Filter(diagnostics.SeverityError), 1)
	})
}

func TestCarryOver(t *testing.T) {
	priorByName := map[string]samples.Ref{
		"Sample 1": {ID: "id-1", Name: "Sample 1", Version: 3},
		"Sample 2": {ID: "id-2", Name: "Sample 2", Version: 1},
		"Sample 3": {ID: "id-3", Name: "Sample 3", Version: 2},
	}
	imported := map[string]bool{"Sample 2": true}

	t.Run("dropped by default", func(t *testing.T) {
		assert.Nil(t, reconcile.CarryOver(priorByName, imported, false))
	})

	t.Run("kept when requested, sorted by name", func(t *testing.T) {
		kept := reconcile.CarryOver(priorByName, imported, true)
		require.Len(t, kept, 2)
		assert.Equal(t, "Sample 1", kept[0].Name)
		assert.Equal(t, "Sample 3", kept[1].Name)
	})
}
