package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataworks/sampleflow/internal/config"
	"github.com/strataworks/sampleflow/pkg/fieldgroups"
)

func TestLoadTemplateSESAR(t *testing.T) {
	tpl, err := config.LoadTemplate("sesar")
	require.NoError(t, err)
	assert.Equal(t, "sesar", tpl.Dialect)

	t.Run("aliases map spellings to targets", func(t *testing.T) {
		aliases := tpl.Aliases()
		assert.Equal(t, "name", aliases["sample_name"])
		assert.Equal(t, "sesar:depth_in_core_max", aliases["depth_max"])
		assert.Equal(t, "sesar:depth_in_core_max", aliases["depth_in_core_max"])
		assert.Equal(t, "latitude", aliases["latitude_start"])
		assert.Equal(t, "latitude", aliases["latitude_coordinate_system:_wgs_84"])
		assert.Equal(t, "city_township", aliases["city"])
	})

	t.Run("fixed unit groups", func(t *testing.T) {
		groups := tpl.Groups()
		assert.Contains(t, groups, fieldgroups.Group{Value: "latitude", Units: "str:degrees"})
		assert.Contains(t, groups, fieldgroups.Group{Value: "longitude_end", Units: "str:degrees"})
	})

	t.Run("measured unit groups expand unit column spellings", func(t *testing.T) {
		groups := tpl.Groups()
		assert.Contains(t, groups, fieldgroups.Group{Value: "sesar:elevation_start", Units: "elevation_unit"})
		assert.Contains(t, groups, fieldgroups.Group{Value: "sesar:depth_in_core_max", Units: "sesar:depth_scale"})
		assert.Contains(t, groups, fieldgroups.Group{Value: "sesar:age_max", Units: "age_unit"})
		assert.Contains(t, groups, fieldgroups.Group{Value: "sesar:age_max", Units: "age_unit_e.g._million_years_ma"})
	})

	t.Run("date columns", func(t *testing.T) {
		dates := tpl.DateColumns()
		assert.True(t, dates["sesar:collection_date"])
		assert.True(t, dates["sesar:release_date"])
		assert.False(t, dates["sesar:collection_date_precision"])
	})
}

func TestLoadTemplateENIGMA(t *testing.T) {
	tpl, err := config.LoadTemplate("enigma")
	require.NoError(t, err)

	aliases := tpl.Aliases()
	assert.Equal(t, "name", aliases["sampleid"])
	assert.Equal(t, "name", aliases["sample_name"])
	assert.Equal(t, "enigma:environmental_package", aliases["env_package"])

	groups := tpl.Groups()
	assert.Contains(t, groups, fieldgroups.Group{Value: "enigma:depth", Units: "str:cm_bgs"})
	assert.Contains(t, groups, fieldgroups.Group{Value: "enigma:moisture", Units: "str:percent"})
}

func TestLoadTemplateUnknown(t *testing.T) {
	_, err := config.LoadTemplate("unknown")
	require.Error(t, err)
}

func TestParseTemplateValidation(t *testing.T) {
	t.Run("missing dialect", func(t *testing.T) {
		_, err := config.ParseTemplate([]byte("columns:\n  A: {}\n"))
		require.Error(t, err)
	})
	t.Run("missing columns", func(t *testing.T) {
		_, err := config.ParseTemplate([]byte("dialect: x\n"))
		require.Error(t, err)
	})
}

func TestSchema(t *testing.T) {
	schema, err := config.LoadSchema()
	require.NoError(t, err)

	t.Run("controlled keys", func(t *testing.T) {
		controlled := schema.Controlled()
		assert.True(t, controlled["latitude"])
		assert.True(t, controlled["sesar:material"])
		assert.True(t, controlled["enigma:well_name"])
		assert.False(t, controlled["jamboree"])
	})

	t.Run("core fields are the unprefixed keys", func(t *testing.T) {
		core := schema.CoreFields()
		assert.True(t, core["latitude"])
		assert.False(t, core["material"])
	})

	t.Run("prefix fields are the unprefixed spellings of namespaced keys", func(t *testing.T) {
		prefix := schema.PrefixFields()
		assert.True(t, prefix["material"])
		assert.True(t, prefix["depth"])
		assert.False(t, prefix["latitude"])
	})
}

func TestLoadOntologyFields(t *testing.T) {
	fields, err := config.LoadOntologyFields()
	require.NoError(t, err)

	f, ok := fields["sesar:material"]
	require.True(t, ok)
	assert.Equal(t, "envo_ontology", f.Namespace)
	assert.Equal(t, "ENVO:", f.IDPrefix)
}

func TestLoadDialect(t *testing.T) {
	d, err := config.LoadDialect("sesar", "")
	require.NoError(t, err)

	assert.Equal(t, "sesar", d.Name)
	assert.Equal(t, "sesar", d.Normalize.Dialect)
	assert.True(t, d.Controlled["sesar:material"])
	assert.True(t, d.DateKeys["sesar:collection_date"])
	assert.NotEmpty(t, d.UnitRules)
	assert.NotEmpty(t, d.Groups.Groups())

	t.Run("importer params carry the run config through", func(t *testing.T) {
		ic := config.ImportConfig{
			File:           "samples.csv",
			Dialect:        "sesar",
			HeaderRow:      1,
			KeepExisting:   true,
			IgnoreWarnings: true,
		}
		p := d.ImporterParams(ic, nil)
		assert.Equal(t, "samples.csv", p.Path)
		assert.Equal(t, 1, p.HeaderRow)
		assert.True(t, p.KeepExisting)
		assert.Nil(t, p.Ontology)
	})
}

func TestImportConfigValidate(t *testing.T) {
	valid := config.ImportConfig{File: "a.csv", Dialect: "sesar"}
	require.NoError(t, valid.Validate())

	t.Run("requires a file", func(t *testing.T) {
		c := valid
		c.File = ""
		assert.Error(t, c.Validate())
	})
	t.Run("requires a dialect or template", func(t *testing.T) {
		c := valid
		c.Dialect = ""
		assert.Error(t, c.Validate())
		c.TemplateFile = "custom.yaml"
		assert.NoError(t, c.Validate())
	})
	t.Run("rejects negative header row", func(t *testing.T) {
		c := valid
		c.HeaderRow = -1
		assert.Error(t, c.Validate())
	})
}

func TestServiceConfigValidate(t *testing.T) {
	assert.Error(t, config.ServiceConfig{}.Validate())
	assert.NoError(t, config.ServiceConfig{LocalStorePath: "x.db"}.Validate())
	assert.NoError(t, config.ServiceConfig{SampleServiceURL: "http://x"}.Validate())
}
