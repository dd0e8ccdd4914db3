package testutil

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/stretchr/testify/require"
)

// Graph accumulates blocks of a synthetic analysis response. Cell geometry is
// laid out on a 10x10 lattice so overlay tests get distinct boxes.
type Graph struct {
	blocks []blocks.Block
}

// NewGraph returns an empty response builder.
func NewGraph() *Graph {
	return &Graph{}
}

// Line adds a LINE block and returns its id.
func (g *Graph) Line(id, text string, top float64) string {
	g.blocks = append(g.blocks, blocks.Block{
		ID:        id,
		BlockType: blocks.TypeLine,
		Text:      text,
		Geometry:  blocks.Geometry{BoundingBox: blocks.BoundingBox{Left: 0.05, Top: top, Width: 0.1, Height: 0.02}},
	})
	return id
}

// Word adds a WORD block and returns its id.
func (g *Graph) Word(id, text string, left float64) string {
	g.blocks = append(g.blocks, blocks.Block{
		ID:        id,
		BlockType: blocks.TypeWord,
		Text:      text,
		Geometry:  blocks.Geometry{BoundingBox: blocks.BoundingBox{Left: left, Top: 0.05, Width: 0.05, Height: 0.02}},
	})
	return id
}

// Cell adds a single-span CELL at the 1-based row and column.
func (g *Graph) Cell(id string, row, col int, children ...string) string {
	return g.SpanCell(id, row, col, 1, 1, children...)
}

// SpanCell adds a CELL with explicit spans.
func (g *Graph) SpanCell(id string, row, col, rowSpan, colSpan int, children ...string) string {
	g.blocks = append(g.blocks, g.region(id, blocks.TypeCell, row, col, rowSpan, colSpan, children))
	return id
}

// Merged adds a MERGED_CELL absorbing the given cells.
func (g *Graph) Merged(id string, row, col, rowSpan, colSpan int, cells ...string) string {
	g.blocks = append(g.blocks, g.region(id, blocks.TypeMergedCell, row, col, rowSpan, colSpan, cells))
	return id
}

// Table adds a TABLE whose children are the given cell ids.
func (g *Graph) Table(id string, cells ...string) string {
	b := blocks.Block{
		ID:        id,
		BlockType: blocks.TypeTable,
		Geometry:  blocks.Geometry{BoundingBox: blocks.BoundingBox{Width: 1, Height: 1}},
	}
	if len(cells) > 0 {
		b.Relationships = []blocks.Relationship{{Type: blocks.RelationshipChild, IDs: cells}}
	}
	g.blocks = append(g.blocks, b)
	return id
}

// Add appends arbitrary blocks.
func (g *Graph) Add(list ...blocks.Block) *Graph {
	g.blocks = append(g.blocks, list...)
	return g
}

// Blocks returns a copy of the accumulated blocks.
func (g *Graph) Blocks() []blocks.Block {
	out := make([]blocks.Block, len(g.blocks))
	copy(out, g.blocks)
	return out
}

// JSON encodes the blocks as an analysis response body.
func (g *Graph) JSON(t *testing.T) []byte {
	t.Helper()

	data, err := json.Marshal(blocks.Response{Blocks: g.blocks})
	require.NoError(t, err)
	return data
}

func (g *Graph) region(id string, typ blocks.Type, row, col, rowSpan, colSpan int, children []string) blocks.Block {
	b := blocks.Block{
		ID:          id,
		BlockType:   typ,
		RowIndex:    row,
		ColumnIndex: col,
		RowSpan:     rowSpan,
		ColumnSpan:  colSpan,
		Geometry: blocks.Geometry{BoundingBox: blocks.BoundingBox{
			Left:   float64(col-1) * 0.1,
			Top:    float64(row-1) * 0.1,
			Width:  float64(colSpan) * 0.1,
			Height: float64(rowSpan) * 0.1,
		}},
	}
	if len(children) > 0 {
		b.Relationships = []blocks.Relationship{{Type: blocks.RelationshipChild, IDs: children}}
	}
	return b
}

// TwoByTwo builds a 2x2 table without merges: c1 c2 / c3 c4.
func TwoByTwo() *Graph {
	g := NewGraph()
	g.Line("l1", "Sensor", 0.01)
	g.Line("l2", "Value", 0.01)
	g.Line("l3", "Temp", 0.11)
	g.Line("l4", "42", 0.11)
	g.Cell("c1", 1, 1, "l1")
	g.Cell("c2", 1, 2, "l2")
	g.Cell("c3", 2, 1, "l3")
	g.Cell("c4", 2, 2, "l4")
	g.Table("t1", "c1", "c2", "c3", "c4")
	return g
}

// TwoByTwoMerged is TwoByTwo with c1 and c2 absorbed by merged cell m1.
func TwoByTwoMerged() *Graph {
	g := TwoByTwo()
	g.Merged("m1", 1, 1, 1, 2, "c1", "c2")
	return g
}

// LoadResponse reads a stored analysis response from testdata/responses.
func LoadResponse(t *testing.T, name string) []blocks.Block {
	t.Helper()

	data, err := os.ReadFile(TestdataPath(t, "responses", name)) //nolint:gosec // G304: Reading test fixture files with controlled paths
	require.NoError(t, err)

	list, err := blocks.ParseResponse(data)
	require.NoError(t, err)
	return list
}
