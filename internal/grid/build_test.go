package grid_test

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/grid"
	"github.com/MeKo-Tech/cellgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFirst(t *testing.T, g *testutil.Graph) *grid.Table {
	t.Helper()

	ix := blocks.Build(g.Blocks())
	tables := ix.OfType(blocks.TypeTable)
	require.NotEmpty(t, tables)
	return grid.Build(tables[0], ix)
}

func TestBuild_TwoByTwoWithoutMerges(t *testing.T) {
	tbl := buildFirst(t, testutil.TwoByTwo())
	require.NotNil(t, tbl)

	rows, cols := tbl.Size()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 4, tbl.Count(grid.Anchor))
	assert.Equal(t, 0, tbl.Count(grid.Spanned))
	assert.Equal(t, "t1", tbl.ID)

	expected := [][]string{{"c1", "c2"}, {"c3", "c4"}}
	for r, row := range expected {
		for c, id := range row {
			pos := tbl.At(r, c)
			require.Equal(t, grid.Anchor, pos.Kind)
			assert.Equal(t, id, pos.Cell.ID)
		}
	}

	c4, ok := tbl.Find("c4")
	require.True(t, ok)
	assert.Equal(t, "42", c4.Text)
	assert.False(t, c4.IsHeader)

	c2, _ := tbl.Find("c2")
	assert.True(t, c2.IsHeader)
	c3, _ := tbl.Find("c3")
	assert.True(t, c3.IsHeader)
}

func TestBuild_MergedCellAbsorbsChildren(t *testing.T) {
	tbl := buildFirst(t, testutil.TwoByTwoMerged())
	require.NotNil(t, tbl)

	first := tbl.At(0, 0)
	require.Equal(t, grid.Anchor, first.Kind)
	assert.Equal(t, "m1", first.Cell.ID)
	assert.Equal(t, 2, first.Cell.ColSpan)
	assert.Equal(t, 1, first.Cell.RowSpan)
	assert.Equal(t, "Sensor Value", first.Cell.Text)
	assert.True(t, first.Cell.Merged)
	assert.Equal(t, []string{"c1", "c2"}, first.Cell.Absorbed)

	assert.Equal(t, grid.Spanned, tbl.At(0, 1).Kind)
	assert.Equal(t, "c3", tbl.At(1, 0).Cell.ID)
	assert.Equal(t, "c4", tbl.At(1, 1).Cell.ID)

	for _, id := range []string{"c1", "c2"} {
		_, found := tbl.Find(id)
		assert.False(t, found, "absorbed cell %s must not be anchored", id)
	}
}

func TestBuild_MergedPlaceholderWhenChildrenBlank(t *testing.T) {
	g := testutil.NewGraph()
	g.Cell("c1", 1, 1)
	g.Cell("c2", 1, 2)
	g.Merged("m1", 1, 1, 1, 2, "c1", "c2")
	g.Table("t", "c1", "c2")

	tbl := buildFirst(t, g)
	require.NotNil(t, tbl)
	assert.Equal(t, " ", tbl.At(0, 0).Cell.Text)
}

func TestBuild_MergedTextSkipsBlankChildren(t *testing.T) {
	g := testutil.NewGraph()
	g.Line("l1", "left", 0.1)
	g.Line("l3", "right", 0.1)
	g.Cell("c1", 1, 1, "l1")
	g.Cell("c2", 1, 2)
	g.Cell("c3", 1, 3, "l3")
	g.Merged("m1", 1, 1, 1, 3, "c1", "c2", "c3")
	g.Table("t", "c1", "c2", "c3")

	tbl := buildFirst(t, g)
	require.NotNil(t, tbl)
	assert.Equal(t, "left right", tbl.At(0, 0).Cell.Text)
	assert.Equal(t, 1, tbl.Count(grid.Anchor))
	assert.Equal(t, 2, tbl.Count(grid.Spanned))
}

func TestBuild_NilCases(t *testing.T) {
	t.Run("table without children", func(t *testing.T) {
		g := testutil.NewGraph()
		g.Table("t")
		assert.Nil(t, buildFirst(t, g))
	})

	t.Run("children are not cells", func(t *testing.T) {
		g := testutil.NewGraph()
		g.Line("l1", "loose", 0.1)
		g.Table("t", "l1")
		assert.Nil(t, buildFirst(t, g))
	})

	t.Run("all cells invalid", func(t *testing.T) {
		g := testutil.NewGraph()
		g.Cell("c0", 0, 1)
		g.Table("t", "c0")
		assert.Nil(t, buildFirst(t, g))
	})

	t.Run("nil inputs", func(t *testing.T) {
		assert.Nil(t, grid.Build(nil, nil))
	})
}

func TestBuild_SpansAndExtents(t *testing.T) {
	g := testutil.NewGraph()
	g.SpanCell("tall", 1, 1, 3, 1)
	g.SpanCell("wide", 1, 2, 1, 2)
	g.Cell("c22", 2, 2)
	g.Table("t", "tall", "wide", "c22")

	tbl := buildFirst(t, g)
	require.NotNil(t, tbl)

	rows, cols := tbl.Size()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, grid.Spanned, tbl.At(1, 0).Kind)
	assert.Equal(t, grid.Spanned, tbl.At(2, 0).Kind)
	assert.Equal(t, grid.Spanned, tbl.At(0, 2).Kind)
	assert.Equal(t, grid.Empty, tbl.At(2, 2).Kind)
	assert.Equal(t, grid.Empty, tbl.At(1, 2).Kind)
}

func TestBuild_FirstWriterWins(t *testing.T) {
	g := testutil.NewGraph()
	g.Line("l1", "first", 0.1)
	g.Line("l2", "second", 0.1)
	g.Cell("a", 1, 1, "l1")
	g.Cell("b", 1, 1, "l2")
	g.Table("t", "a", "b")

	tbl := buildFirst(t, g)
	require.NotNil(t, tbl)
	assert.Equal(t, 1, tbl.Count(grid.Anchor))
	assert.Equal(t, "a", tbl.At(0, 0).Cell.ID)
}

func TestBuild_MalformedInputIsRecovered(t *testing.T) {
	tests := []struct {
		name  string
		graph func(g *testutil.Graph)
		rows  int
		cols  int
		check func(t *testing.T, tbl *grid.Table)
	}{
		{
			name: "non-positive spans and indices",
			graph: func(g *testutil.Graph) {
				g.SpanCell("zero-span", 1, 1, 0, -2)
				g.Cell("neg-row", -1, 2)
				g.Cell("ok", 2, 2)
				g.Table("t", "zero-span", "neg-row", "ok", "missing")
			},
			rows: 2,
			cols: 2,
			check: func(t *testing.T, tbl *grid.Table) {
				assert.Equal(t, 1, tbl.At(0, 0).Cell.RowSpan)
				assert.Equal(t, 1, tbl.At(0, 0).Cell.ColSpan)
				_, found := tbl.Find("neg-row")
				assert.False(t, found)
			},
		},
		{
			name: "huge row span is clipped",
			graph: func(g *testutil.Graph) {
				g.Cell("c1", 1, 1)
				g.SpanCell("c2", 1, 2, 1<<40, 1)
				g.Table("t", "c1", "c2")
			},
			rows: 64,
			cols: 2,
			check: func(t *testing.T, tbl *grid.Table) {
				c2, found := tbl.Find("c2")
				require.True(t, found)
				assert.Equal(t, 64, c2.RowSpan)
			},
		},
		{
			name: "column span at the integer limit does not overflow",
			graph: func(g *testutil.Graph) {
				g.SpanCell("wide", 1, 2, 1, math.MaxInt)
				g.Cell("c1", 1, 1)
				g.Table("t", "c1", "wide")
			},
			rows: 1,
			cols: 64,
			check: func(t *testing.T, tbl *grid.Table) {
				wide, found := tbl.Find("wide")
				require.True(t, found)
				assert.Equal(t, 63, wide.ColSpan)
			},
		},
		{
			name: "anchor beyond the extent is skipped",
			graph: func(g *testutil.Graph) {
				g.Cell("c1", 1, 1)
				g.Cell("far", 1<<40, 1)
				g.Cell("wide", 1, math.MaxInt)
				g.Table("t", "c1", "far", "wide")
			},
			rows: 1,
			cols: 1,
			check: func(t *testing.T, tbl *grid.Table) {
				_, found := tbl.Find("far")
				assert.False(t, found)
				_, found = tbl.Find("wide")
				assert.False(t, found)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testutil.NewGraph()
			tt.graph(g)

			var tbl *grid.Table
			require.NotPanics(t, func() { tbl = buildFirst(t, g) })
			require.NotNil(t, tbl)

			rows, cols := tbl.Size()
			assert.Equal(t, tt.rows, rows)
			assert.Equal(t, tt.cols, cols)
			assertSpanExclusivity(t, tbl)
			tt.check(t, tbl)
		})
	}
}

func TestBuild_BlankRawCellReadsPlaceholder(t *testing.T) {
	g := testutil.NewGraph()
	g.Line("l1", "Temp", 0.1)
	g.Cell("c1", 1, 1, "l1")
	g.Cell("c2", 1, 2)
	g.Table("t", "c1", "c2")

	tbl := buildFirst(t, g)
	require.NotNil(t, tbl)
	assert.Equal(t, "Temp", tbl.At(0, 0).Cell.Text)
	assert.Equal(t, " ", tbl.At(0, 1).Cell.Text)

	csv, err := grid.ToCSV(tbl)
	require.NoError(t, err)
	assert.Equal(t, "Temp,\n", csv)
}

func TestBuild_OverlappingSpansStayDisjoint(t *testing.T) {
	g := testutil.NewGraph()
	g.SpanCell("big", 1, 1, 2, 2)
	g.Cell("inside", 2, 2)
	g.SpanCell("overlap", 1, 2, 2, 2)
	g.Table("t", "big", "inside", "overlap")

	tbl := buildFirst(t, g)
	require.NotNil(t, tbl)

	_, found := tbl.Find("inside")
	assert.False(t, found)
	_, found = tbl.Find("overlap")
	assert.False(t, found)
	assertSpanExclusivity(t, tbl)
}

func TestBuild_TextractFixture(t *testing.T) {
	ix := blocks.Build(testutil.LoadResponse(t, "merged_table.json"))
	tables := grid.BuildAll(ix)
	require.Len(t, tables, 1)

	tbl := tables[0]
	rows, cols := tbl.Size()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)

	merged := tbl.At(2, 1)
	require.Equal(t, grid.Anchor, merged.Kind)
	assert.Equal(t, "merged-1", merged.Cell.ID)
	assert.Equal(t, "bar 1.2", merged.Cell.Text)
	assert.Equal(t, grid.Spanned, tbl.At(2, 2).Kind)
	assert.Equal(t, "Reading", tbl.At(0, 2).Cell.Text)

	assertSpanExclusivity(t, tbl)
	assertAbsorption(t, ix, tbl)
}

func TestBuildAll_ScopedToResponse(t *testing.T) {
	g := testutil.TwoByTwo()
	g.Line("x1", "other", 0.5)
	g.Cell("x-c1", 1, 1, "x1")
	g.Table("t2", "x-c1")
	ix := blocks.Build(g.Blocks())

	tables := grid.BuildAll(ix)
	require.Len(t, tables, 2)
	assert.Equal(t, "t1", tables[0].ID)
	assert.Equal(t, "t2", tables[1].ID)

	_, found := tables[0].Find("x-c1")
	assert.False(t, found)
	for _, c := range tables[1].Anchors() {
		assert.Equal(t, "x-c1", c.ID)
	}
}

func assertSpanExclusivity(t *testing.T, tbl *grid.Table) {
	t.Helper()

	rows, cols := tbl.Size()
	for _, c := range tbl.Anchors() {
		assert.LessOrEqual(t, c.Row+c.RowSpan-1, rows, c.ID)
		assert.LessOrEqual(t, c.Col+c.ColSpan-1, cols, c.ID)
	}
	for r := range rows {
		for c := range cols {
			pos := tbl.At(r, c)
			if pos.Kind == grid.Spanned {
				assert.Nil(t, pos.Cell)
			}
			if pos.Kind == grid.Anchor {
				assert.NotNil(t, pos.Cell)
			}
		}
	}
}

func assertAbsorption(t *testing.T, ix *blocks.Index, tbl *grid.Table) {
	t.Helper()

	for _, m := range ix.OfType(blocks.TypeMergedCell) {
		for _, child := range m.ChildIDs() {
			assert.Equal(t, m.ID, ix.Root(child))
			_, found := tbl.Find(child)
			assert.False(t, found, child)
		}
	}
}
