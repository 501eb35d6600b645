package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/rules"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := rules.Default()
	require.NoError(t, err)

	t.Run("label expansion", func(t *testing.T) {
		assert.Equal(t, "Supports labelled arrays", c.Label("labels"))
		assert.Equal(t, "Custom parameters are provided via the `options` parameter", c.Label("options"))
		assert.Equal(t, "not a key", c.Label("not a key"))
	})

	t.Run("key references expand", func(t *testing.T) {
		assert.Equal(t, []string{"Supports labelled arrays"}, c.Lines("array_apply"))
		assert.Equal(t, []rules.Ref{rules.KeyRef("options")}, c.Refs("sar_backscatter"))
	})

	t.Run("literal lines keep order and trailing spaces", func(t *testing.T) {
		assert.Equal(t, []string{
			"Supports loading from STAC API - Features. Requirements: ",
			"Supports loading from STAC API - Item Search. Requirements: ",
			"Supports loading from static STAC. Requirements: ",
			"Parameter `temporal_extent`: All temporal formats are supported (date-time and date)",
			"Parameter `bands`: Supports filtering by band name and common name",
		}, c.Lines("load_stac"))
	})

	t.Run("unknown process", func(t *testing.T) {
		assert.Empty(t, c.Lines("absolute"))
		assert.Empty(t, c.Refs("absolute"))
	})

	t.Run("migrations", func(t *testing.T) {
		m := c.Migrations()
		assert.Len(t, m, 4)
		to, ok := m.Target("load_result")
		assert.True(t, ok)
		assert.Equal(t, "load_stac", to)
		assert.True(t, m.IsSource("debug"))
		assert.False(t, m.IsSource("inspect"))
		assert.Equal(t, []string{"create_raster_cube", "debug", "load_result", "text_merge"}, m.Sources())
	})

	t.Run("process ids sorted", func(t *testing.T) {
		ids := c.ProcessIDs()
		assert.Contains(t, ids, "ndvi")
		assert.IsNonDecreasing(t, ids)
	})
}

func TestCatalogIsReadOnly(t *testing.T) {
	c, err := rules.Default()
	require.NoError(t, err)

	c.Labels()["labels"] = "changed"
	c.Migrations()["debug"] = "changed"
	refs := c.Refs("ndvi")
	refs[0] = rules.LiteralRef("changed")

	assert.Equal(t, "Supports labelled arrays", c.Label("labels"))
	to, _ := c.Migrations().Target("debug")
	assert.Equal(t, "inspect", to)
	assert.Equal(t, []string{"Supports common names as band names"}, c.Lines("ndvi"))
}

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c, err := rules.Parse([]byte(`
labels:
  short: "Long text"
processes:
  foo:
    - short
    - "Literal line"
`))
		require.NoError(t, err)
		assert.Equal(t, []rules.Ref{rules.KeyRef("short"), rules.LiteralRef("Literal line")}, c.Refs("foo"))
		assert.Equal(t, []string{"Long text", "Literal line"}, c.Lines("foo"))
		assert.Empty(t, c.Migrations())
	})

	invalid := map[string]string{
		"malformed":         "labels: [",
		"empty label":       "labels:\n  k: \"\"\n",
		"self migration":    "migrations:\n  a: a\n",
		"shared target":     "migrations:\n  a: c\n  b: c\n",
		"empty rule string": "processes:\n  foo:\n    - \"\"\n",
	}
	for name, doc := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := rules.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("processes:\n  ndvi:\n    - \"Custom line\"\n"), 0o644))

		c, err := rules.Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Custom line"}, c.Lines("ndvi"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := rules.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		var ioErr *errors.IOError
		assert.ErrorAs(t, err, &ioErr)
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("migrations:\n  a: a\n"), 0o644))

		_, err := rules.Load(path)
		var cfgErr *errors.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "literal", rules.Literal.String())
	assert.Equal(t, "key", rules.Key.String())
}
