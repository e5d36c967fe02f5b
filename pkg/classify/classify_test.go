package classify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataworks/sampleflow/pkg/classify"
	"github.com/strataworks/sampleflow/pkg/diagnostics"
	"github.com/strataworks/sampleflow/pkg/fieldgroups"
	"github.com/strataworks/sampleflow/pkg/normalize"
	"github.com/strataworks/sampleflow/pkg/ontology"
	"github.com/strataworks/sampleflow/pkg/tables"
)

// fakeOntology resolves a fixed name->id table.
type fakeOntology struct {
	terms map[string][]ontology.Term
}

func (f *fakeOntology) LookupByName(_ context.Context, _, name string) ([]ontology.Term, error) {
	return f.terms[name], nil
}

func testColumns(t *testing.T, headers []string) []normalize.Column {
	t.Helper()
	n := normalize.New(normalize.Config{
		Dialect: "sesar",
		Aliases: map[string]string{"sample_name": "name"},
	})
	cols, diags, err := n.Normalize(headers)
	require.NoError(t, err)
	require.Empty(t, diags)
	return cols
}

func row(index int, values ...string) tables.Row {
	cells := make([]tables.Cell, len(values))
	for i, v := range values {
		if v == "" {
			cells[i] = tables.NullCell()
		} else {
			cells[i] = tables.NewCell(v)
		}
	}
	return tables.Row{Index: index, Cells: cells}
}

func TestClassifyUnitGroups(t *testing.T) {
	cols := testColumns(t, []string{"Sample Name", "Elevation start", "Elevation unit", "Latitude"})
	c := classify.New(classify.Params{
		Columns: cols,
		Groups: fieldgroups.NewResolver([]fieldgroups.Group{
			{Value: "elevation_start", Units: "elevation_unit"},
			{Value: "latitude", Units: "str:degrees"},
		}),
	})

	collector := diagnostics.NewCollector()
	res, ok := c.Classify(context.Background(), row(2, "Sample 1", "120", "m", "32.5"), collector)
	require.True(t, ok)
	assert.Equal(t, "Sample 1", res.Name)

	t.Run("group round trip", func(t *testing.T) {
		entry := res.Controlled["elevation_start"]
		assert.Equal(t, 120.0, entry.Value)
		assert.Equal(t, "m", entry.Units)
	})

	t.Run("units column never appears standalone", func(t *testing.T) {
		_, inControlled := res.Controlled["elevation_unit"]
		_, inUser := res.User["elevation_unit"]
		assert.False(t, inControlled)
		assert.False(t, inUser)
	})

	t.Run("literal unit group", func(t *testing.T) {
		entry := res.Controlled["latitude"]
		assert.Equal(t, 32.5, entry.Value)
		assert.Equal(t, "degrees", entry.Units)
	})

	t.Run("source meta retains original headers", func(t *testing.T) {
		byKey := map[string]string{}
		for _, sm := range res.SourceMeta {
			byKey[sm.Key] = sm.SourceKey
		}
		assert.Equal(t, "Elevation start", byKey["elevation_start"])
		assert.Equal(t, "Latitude", byKey["latitude"])
	})
}

func TestClassifyUserMetadata(t *testing.T) {
	cols := testColumns(t, []string{"Sample Name", "Jamboree", "Weight (g)"})
	rules, err := classify.CompileUnitRules([]string{`\(([^)]+)\)\s*$`})
	require.NoError(t, err)

	c := classify.New(classify.Params{Columns: cols, UnitRules: rules})

	collector := diagnostics.NewCollector()
	res, ok := c.Classify(context.Background(), row(1, "Sample 1", "fun", "12.5"), collector)
	require.True(t, ok)

	t.Run("plain user column", func(t *testing.T) {
		assert.Equal(t, "fun", res.User["jamboree"].Value)
		assert.Empty(t, res.User["jamboree"].Units)
	})

	t.Run("unit regex captures units", func(t *testing.T) {
		entry := res.User["weight_g"]
		assert.Equal(t, 12.5, entry.Value)
		assert.Equal(t, "g", entry.Units)
	})

	t.Run("warns once per column", func(t *testing.T) {
		warnings := collector.Filter(diagnostics.SeverityWarning)
		assert.Len(t, warnings, 2)

		// second row does not re-warn
		_, _ = c.Classify(context.Background(), row(2, "Sample 2", "more fun", "9"), collector)
		assert.Len(t, collector.Filter(diagnostics.SeverityWarning), 2)
	})
}

func TestClassifyStructuralFields(t *testing.T) {
	cols := testColumns(t, []string{"Sample Name", "kbase_sample_id", "parent_id", "Purpose"})
	c := classify.New(classify.Params{Columns: cols})

	collector := diagnostics.NewCollector()
	res, ok := c.Classify(context.Background(), row(1, "Sample 1", "uuid-1", "Parent 1", "testing"), collector)
	require.True(t, ok)

	assert.Equal(t, "uuid-1", res.SampleID)
	assert.Equal(t, "Parent 1", res.ParentID)

	t.Run("structural fields are not metadata", func(t *testing.T) {
		for _, key := range []string{"name", "kbase_sample_id", "parent_id"} {
			_, inControlled := res.Controlled[key]
			_, inUser := res.User[key]
			assert.False(t, inControlled, key)
			assert.False(t, inUser, key)
		}
	})

	t.Run("sample node tree", func(t *testing.T) {
		s := res.Sample()
		require.Len(t, s.NodeTree, 1)
		node := s.NodeTree[0]
		assert.Equal(t, "Sample 1", node.ID)
		require.NotNil(t, node.Parent)
		assert.Equal(t, "Parent 1", *node.Parent)
		assert.Equal(t, "BioReplicate", node.Type)
	})
}

func TestClassifyMissingName(t *testing.T) {
	cols := testColumns(t, []string{"Sample Name", "Purpose"})
	c := classify.New(classify.Params{Columns: cols})

	collector := diagnostics.NewCollector()
	_, ok := c.Classify(context.Background(), row(2, "", "testing"), collector)
	assert.False(t, ok)

	errs := collector.Filter(diagnostics.SeverityError)
	require.Len(t, errs, 1)
	require.NotNil(t, errs[0].Row)
	assert.Equal(t, 2, *errs[0].Row)
}

func TestClassifyOntologyFields(t *testing.T) {
	cols := testColumns(t, []string{"Sample Name", "Material"})
	svc := &fakeOntology{terms: map[string][]ontology.Term{
		"soil": {{ID: "ENVO:00001998", Name: "soil"}},
	}}
	resolver := ontology.NewResolver(svc, map[string]ontology.FieldConfig{
		"material": {Namespace: "envo_ontology", IDPrefix: "ENVO:"},
	})
	c := classify.New(classify.Params{Columns: cols, Ontology: resolver})

	t.Run("resolves to term id as controlled metadata", func(t *testing.T) {
		collector := diagnostics.NewCollector()
		res, ok := c.Classify(context.Background(), row(1, "Sample 1", "Soil"), collector)
		require.True(t, ok)
		assert.Equal(t, "ENVO:00001998", res.Controlled["material"].Value)

		// source meta keeps the pre-transform value
		require.Len(t, res.SourceMeta, 1)
		assert.Equal(t, "Soil", res.SourceMeta[0].SourceValue)
	})

	t.Run("unresolvable term is a row error", func(t *testing.T) {
		collector := diagnostics.NewCollector()
		_, ok := c.Classify(context.Background(), row(3, "Sample 2", "kryptonite"), collector)
		assert.False(t, ok)

		errs := collector.Filter(diagnostics.SeverityError)
		require.Len(t, errs, 1)
		assert.Equal(t, "material", errs[0].Key)
		assert.Equal(t, "Sample 2", errs[0].SampleName)
	})

	t.Run("null ontology cell is skipped", func(t *testing.T) {
		collector := diagnostics.NewCollector()
		res, ok := c.Classify(context.Background(), row(4, "Sample 3", ""), collector)
		require.True(t, ok)
		assert.Empty(t, res.Controlled)
		assert.Equal(t, 0, collector.Len())
	})
}

func TestClassifyDateFields(t *testing.T) {
	cols := testColumns(t, []string{"Sample Name", "Collection date"})
	c := classify.New(classify.Params{
		Columns:    cols,
		Controlled: map[string]bool{"collection_date": true},
		DateKeys:   map[string]bool{"collection_date": true},
	})

	t.Run("reformats to iso 8601", func(t *testing.T) {
		collector := diagnostics.NewCollector()
		res, ok := c.Classify(context.Background(), row(1, "Sample 1", "07/28/2019"), collector)
		require.True(t, ok)
		assert.Equal(t, "2019-07-28", res.Controlled["collection_date"].Value)

		// source meta keeps the original spelling
		require.Len(t, res.SourceMeta, 1)
		assert.Equal(t, "07/28/2019", res.SourceMeta[0].SourceValue)
	})

	t.Run("iso input passes through", func(t *testing.T) {
		collector := diagnostics.NewCollector()
		res, ok := c.Classify(context.Background(), row(2, "Sample 2", "2019-07-28"), collector)
		require.True(t, ok)
		assert.Equal(t, "2019-07-28", res.Controlled["collection_date"].Value)
	})

	t.Run("unparseable date is a row error", func(t *testing.T) {
		collector := diagnostics.NewCollector()
		_, ok := c.Classify(context.Background(), row(3, "Sample 3", "yesterday-ish"), collector)
		assert.False(t, ok)

		errs := collector.Filter(diagnostics.SeverityError)
		require.Len(t, errs, 1)
		assert.Equal(t, "collection_date", errs[0].Key)
	})
}

func TestClassifyNullOmission(t *testing.T) {
	cols := testColumns(t, []string{"Sample Name", "Purpose", "Latitude"})
	c := classify.New(classify.Params{
		Columns:    cols,
		Controlled: map[string]bool{"latitude": true},
	})

	collector := diagnostics.NewCollector()
	res, ok := c.Classify(context.Background(), row(1, "Sample 1", "", ""), collector)
	require.True(t, ok)
	assert.Empty(t, res.Controlled)
	assert.Empty(t, res.User)
	assert.Empty(t, res.SourceMeta)
}

func TestClassifyIDField(t *testing.T) {
	n := normalize.New(normalize.Config{})
	cols, _, err := n.Normalize([]string{"IGSN", "Purpose"})
	require.NoError(t, err)

	c := classify.New(classify.Params{Columns: cols, IDField: "igsn"})
	collector := diagnostics.NewCollector()
	res, ok := c.Classify(context.Background(), row(1, "IEAWH0001", "survey"), collector)
	require.True(t, ok)
	assert.Equal(t, "IEAWH0001", res.Name)
	assert.Equal(t, "igsn", c.NameKey())
}
