// Package headers infers the row and column header of table cells from an
// external model and normalizes the shapes such models answer with.
package headers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Headers is the inferred row and column header of one cell.
type Headers struct {
	Row string `json:"row"`
	Col string `json:"col"`
}

// UnmarshalJSON accepts both {row,col} and {rowHeader,colHeader}.
func (h *Headers) UnmarshalJSON(data []byte) error {
	var raw struct {
		Row       *string `json:"row"`
		Col       *string `json:"col"`
		RowHeader *string `json:"rowHeader"`
		ColHeader *string `json:"colHeader"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Row == nil && raw.Col == nil && raw.RowHeader == nil && raw.ColHeader == nil {
		return fmt.Errorf("%w: header object without row or col", ErrUnrecognizedShape)
	}
	h.Row = firstNonNil(raw.Row, raw.RowHeader)
	h.Col = firstNonNil(raw.Col, raw.ColHeader)
	return nil
}

func firstNonNil(values ...*string) string {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return ""
}

// Cell is one grid cell offered for inference.
type Cell struct {
	CellID string `json:"cellId"`
	Text   string `json:"text"`
}

// Request carries the source image and the cells of one document.
type Request struct {
	Image []byte
	MIME  string
	Cells []Cell
}

// Inferrer asks a header-inference backend about a request.
type Inferrer interface {
	Infer(ctx context.Context, req Request) (Result, error)
}

// NormalizeText trims and NFC-normalizes text sent to or received from a
// model.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// normalizeCells prepares request cells, dropping cells without an id.
func normalizeCells(cells []Cell) []Cell {
	out := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if c.CellID == "" {
			continue
		}
		out = append(out, Cell{CellID: c.CellID, Text: NormalizeText(c.Text)})
	}
	return out
}
