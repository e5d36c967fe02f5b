package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/normalize"
)

func TestKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Sample Name", "sample_name"},
		{"Depth in Core (max)", "depth_in_core_max"},
		{"City/Township", "city_township"},
		{"  Latitude  ", "latitude"},
		{"Elevation    start", "elevation_start"},
		{"IGSN", "igsn"},
		{"Coordinate Precision?", "coordinate_precision?"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Key(tt.raw))
		})
	}
}

func TestNormalize(t *testing.T) {
	n := normalize.New(normalize.Config{
		Dialect: "sesar",
		Aliases: map[string]string{
			"sample_name": "name",
			"sample_id":   "name",
		},
		PrefixFields: map[string]bool{"material": true},
		CoreFields:   map[string]bool{"name": true},
	})

	t.Run("basic resolution", func(t *testing.T) {
		cols, diags, err := n.Normalize([]string{"Sample Name", "Latitude", "Material"})
		require.NoError(t, err)
		assert.Empty(t, diags)
		require.Len(t, cols, 3)

		assert.Equal(t, "name", cols[0].Key)
		assert.Equal(t, "Sample Name", cols[0].Header)
		assert.Equal(t, 0, cols[0].Index)
		assert.Equal(t, "latitude", cols[1].Key)
		assert.Equal(t, "sesar:material", cols[2].Key)
	})

	t.Run("duplicate header is an error at the second column", func(t *testing.T) {
		cols, diags, err := n.Normalize([]string{"Name", "name"})
		require.NoError(t, err)
		require.Len(t, diags, 1)

		d := diags[0]
		assert.Equal(t, "error", string(d.Severity))
		require.NotNil(t, d.Column)
		assert.Equal(t, 1, *d.Column)

		// first occurrence wins
		require.Len(t, cols, 1)
		assert.Equal(t, 0, cols[0].Index)
	})

	t.Run("canonical beats alias", func(t *testing.T) {
		// "Sample ID" aliases to name, but an explicit Name column claims it.
		cols, diags, err := n.Normalize([]string{"Sample ID", "Name"})
		require.NoError(t, err)
		assert.Empty(t, diags)
		require.Len(t, cols, 2)
		assert.Equal(t, "sample_id", cols[0].Key)
		assert.Equal(t, "name", cols[1].Key)
	})

	t.Run("alias collision is a duplicate", func(t *testing.T) {
		_, diags, err := n.Normalize([]string{"Sample Name", "Sample ID"})
		require.NoError(t, err)
		require.Len(t, diags, 1)
		assert.Equal(t, 1, *diags[0].Column)
	})

	t.Run("core field is never prefixed", func(t *testing.T) {
		n := normalize.New(normalize.Config{
			Dialect:      "enigma",
			PrefixFields: map[string]bool{"material": true, "name": true},
			CoreFields:   map[string]bool{"name": true},
		})
		cols, _, err := n.Normalize([]string{"Material", "Name"})
		require.NoError(t, err)
		assert.Equal(t, "enigma:material", cols[0].Key)
		assert.Equal(t, "name", cols[1].Key)
	})

	t.Run("empty header list is structural", func(t *testing.T) {
		_, _, err := n.Normalize(nil)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsStructural(err))
	})
}

func TestKeys(t *testing.T) {
	cols := []normalize.Column{
		{Key: "name", Index: 0},
		{Key: "latitude", Index: 1},
	}
	keys := normalize.Keys(cols)
	assert.True(t, keys["name"])
	assert.True(t, keys["latitude"])
	assert.False(t, keys["longitude"])
}
