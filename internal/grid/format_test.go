package grid_test

import (
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/cellgrid/internal/grid"
	"github.com/MeKo-Tech/cellgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestToCSV(t *testing.T) {
	tbl := buildFirst(t, testutil.TwoByTwoMerged())

	out, err := grid.ToCSV(tbl)
	require.NoError(t, err)
	assert.Equal(t, "Sensor Value,\nTemp,42\n", out)

	_, err = grid.ToCSV(nil)
	assert.Error(t, err)
}

func TestToPlainText(t *testing.T) {
	tbl := buildFirst(t, testutil.TwoByTwoMerged())

	out := grid.ToPlainText([]*grid.Table{tbl})
	assert.Contains(t, out, "Table t1 (2x2)")
	assert.Contains(t, out, "| Sensor Value | < |")
	assert.Contains(t, out, "| Temp | 42 |")
}

func TestToJSON(t *testing.T) {
	tbl := buildFirst(t, testutil.TwoByTwoMerged())

	out, err := grid.ToJSON([]*grid.Table{tbl})
	require.NoError(t, err)

	var decoded []grid.Table
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, grid.Spanned, decoded[0].Rows[0][1].Kind)
	assert.Equal(t, "m1", decoded[0].Rows[0][0].Cell.ID)
	assert.Contains(t, out, `"kind": "anchor"`)
}

func TestToYAML(t *testing.T) {
	tbl := buildFirst(t, testutil.TwoByTwoMerged())

	out, err := grid.ToYAML([]*grid.Table{tbl})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "t1", decoded[0]["id"])
	assert.Len(t, decoded[0]["cells"], 3)
}

func TestKind_UnmarshalText(t *testing.T) {
	var k grid.Kind
	require.NoError(t, k.UnmarshalText([]byte("spanned")))
	assert.Equal(t, grid.Spanned, k)
	assert.Error(t, k.UnmarshalText([]byte("bogus")))
}
