// Package grid reconstructs row/column table grids from a block graph.
package grid

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a grid position.
type Kind uint8

const (
	Empty Kind = iota
	Anchor
	Spanned
)

func (k Kind) String() string {
	switch k {
	case Anchor:
		return "anchor"
	case Spanned:
		return "spanned"
	default:
		return "empty"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "anchor":
		*k = Anchor
	case "spanned":
		*k = Spanned
	case "empty", "":
		*k = Empty
	default:
		return fmt.Errorf("unknown grid position kind %q", text)
	}
	return nil
}

// Cell is the content anchored at the top-left position of a cell's span.
type Cell struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Row      int      `json:"row"`
	Col      int      `json:"col"`
	RowSpan  int      `json:"rowSpan"`
	ColSpan  int      `json:"colSpan"`
	IsHeader bool     `json:"isHeader"`
	Merged   bool     `json:"merged,omitempty"`
	Absorbed []string `json:"absorbed,omitempty"`
}

// Position is one slot of the dense grid.
type Position struct {
	Kind Kind  `json:"kind"`
	Cell *Cell `json:"cell,omitempty"`
}

// Table is the reconstructed grid of one TABLE block. Rows are 0-based.
type Table struct {
	ID   string       `json:"id"`
	Rows [][]Position `json:"rows"`
}

// Size returns the number of rows and columns.
func (t *Table) Size() (rows, cols int) {
	if len(t.Rows) == 0 {
		return 0, 0
	}
	return len(t.Rows), len(t.Rows[0])
}

// At returns the position at 0-based row and column.
func (t *Table) At(row, col int) Position {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return Position{}
	}
	return t.Rows[row][col]
}

// Anchors returns every anchored cell in row-major order.
func (t *Table) Anchors() []*Cell {
	var out []*Cell
	for _, row := range t.Rows {
		for _, pos := range row {
			if pos.Kind == Anchor {
				out = append(out, pos.Cell)
			}
		}
	}
	return out
}

// Find returns the anchored cell with the given id.
func (t *Table) Find(id string) (*Cell, bool) {
	for _, c := range t.Anchors() {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Count returns the number of positions of kind k.
func (t *Table) Count(k Kind) int {
	n := 0
	for _, row := range t.Rows {
		for _, pos := range row {
			if pos.Kind == k {
				n++
			}
		}
	}
	return n
}

// String renders the table for debugging.
func (t *Table) String() string {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Sprintf("grid.Table{%s}", t.ID)
	}
	return string(data)
}
