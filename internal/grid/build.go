package grid

import (
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
)

// blankPlaceholder is the text of a cell, raw or merged, that has no text.
const blankPlaceholder = " "

// Grid extents are capped so a corrupt index or span cannot size the grid.
// A table may reach minExtent rows and columns, or extentPerCell times its
// number of children when that is larger.
const (
	minExtent     = 64
	extentPerCell = 10
)

// Build reconstructs the grid of one TABLE block from the response it came
// from. It returns nil when the table has no renderable cells. Build never
// fails: cells with non-positive indices are skipped, spans below one are
// treated as one and cells reaching past the extent cap are clipped or
// skipped.
func Build(table *blocks.Block, ix *blocks.Index) *Table {
	if table == nil || ix == nil {
		return nil
	}

	childIDs := table.ChildIDs()
	if len(childIDs) == 0 {
		return nil
	}

	inTable := make(map[string]struct{}, len(childIDs))
	for _, id := range childIDs {
		inTable[id] = struct{}{}
	}

	limit := max(minExtent, extentPerCell*len(childIDs))
	cells := mergedCells(ix, inTable, limit)
	cells = append(cells, rawCells(ix, childIDs, limit)...)
	if len(cells) == 0 {
		return nil
	}

	maxRow, maxCol := 0, 0
	for _, c := range cells {
		maxRow = max(maxRow, c.Row+c.RowSpan-1)
		maxCol = max(maxCol, c.Col+c.ColSpan-1)
	}

	rows := make([][]Position, maxRow)
	for r := range rows {
		rows[r] = make([]Position, maxCol)
	}

	for i := range cells {
		place(rows, &cells[i], table.ID)
	}

	return &Table{ID: table.ID, Rows: rows}
}

// BuildAll reconstructs every table of a response in response order.
func BuildAll(ix *blocks.Index) []*Table {
	var out []*Table
	for _, tb := range ix.OfType(blocks.TypeTable) {
		if t := Build(tb, ix); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// mergedCells synthesizes one virtual cell per MERGED_CELL that absorbs at
// least one of the table's cells.
func mergedCells(ix *blocks.Index, inTable map[string]struct{}, limit int) []Cell {
	var out []Cell
	for _, m := range ix.OfType(blocks.TypeMergedCell) {
		children := m.ChildIDs()
		if !intersects(children, inTable) {
			continue
		}

		var parts []string
		for _, id := range children {
			child, ok := ix.Block(id)
			if !ok {
				continue
			}
			if text := blocks.ResolveText(child, ix); strings.TrimSpace(text) != "" {
				parts = append(parts, text)
			}
		}
		text := strings.Join(parts, " ")
		if text == "" {
			text = blankPlaceholder
		}

		c, ok := newCell(m, text, limit)
		if !ok {
			continue
		}
		c.Merged = true
		c.Absorbed = append([]string(nil), children...)
		out = append(out, c)
	}
	return out
}

// rawCells synthesizes one cell per table child that is a CELL and not
// absorbed by any merged cell. Cells without text read as the blank
// placeholder.
func rawCells(ix *blocks.Index, childIDs []string, limit int) []Cell {
	var out []Cell
	for _, id := range childIDs {
		b, ok := ix.Block(id)
		if !ok || b.BlockType != blocks.TypeCell || ix.Absorbed(id) {
			continue
		}
		text := blocks.ResolveText(b, ix)
		if text == "" {
			text = blankPlaceholder
		}
		if c, ok := newCell(b, text, limit); ok {
			out = append(out, c)
		}
	}
	return out
}

// newCell positions b, skipping it when its anchor is invalid or beyond
// limit and clipping its spans to end at limit.
func newCell(b *blocks.Block, text string, limit int) (Cell, bool) {
	if b.RowIndex < 1 || b.ColumnIndex < 1 {
		slog.Debug("Skipping cell with invalid position", "id", b.ID, "row", b.RowIndex, "col", b.ColumnIndex)
		return Cell{}, false
	}
	if b.RowIndex > limit || b.ColumnIndex > limit {
		slog.Debug("Skipping cell beyond grid extent", "id", b.ID, "row", b.RowIndex, "col", b.ColumnIndex, "limit", limit)
		return Cell{}, false
	}
	rowSpan, colSpan := b.Spans()
	// Compared against the room left so the sum never overflows.
	if room := limit - b.RowIndex + 1; rowSpan > room {
		slog.Debug("Clipping row span to grid extent", "id", b.ID, "span", rowSpan, "limit", limit)
		rowSpan = room
	}
	if room := limit - b.ColumnIndex + 1; colSpan > room {
		slog.Debug("Clipping column span to grid extent", "id", b.ID, "span", colSpan, "limit", limit)
		colSpan = room
	}
	return Cell{
		ID:      b.ID,
		Text:    text,
		Row:     b.RowIndex,
		Col:     b.ColumnIndex,
		RowSpan: rowSpan,
		ColSpan: colSpan,
	}, true
}

// place anchors c at its top-left position if that slot is still empty and
// marks the rest of its span. Slots already taken keep their content.
func place(rows [][]Position, c *Cell, tableID string) {
	r0, c0 := c.Row-1, c.Col-1
	if rows[r0][c0].Kind != Empty {
		slog.Debug("Anchor position already occupied", "table", tableID, "id", c.ID, "row", c.Row, "col", c.Col)
		return
	}

	c.IsHeader = c.Row == 1 || c.Col == 1
	rows[r0][c0] = Position{Kind: Anchor, Cell: c}

	for r := r0; r < r0+c.RowSpan && r < len(rows); r++ {
		for col := c0; col < c0+c.ColSpan && col < len(rows[r]); col++ {
			if (r == r0 && col == c0) || rows[r][col].Kind != Empty {
				continue
			}
			rows[r][col] = Position{Kind: Spanned}
		}
	}
}

func intersects(ids []string, set map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
