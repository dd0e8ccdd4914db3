// Package workspace accumulates the documents, grids and user annotations of
// one editing session. A Workspace is not safe for concurrent use; the
// session loop is its only writer.
package workspace

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/geometry"
	"github.com/MeKo-Tech/cellgrid/internal/grid"
	"github.com/MeKo-Tech/cellgrid/internal/overlay"
)

// MainDocumentID is the id of the originally uploaded document.
const MainDocumentID = "main"

// DocumentKind tells the uploaded document from cropped sub-regions.
type DocumentKind string

const (
	KindMain DocumentKind = "main"
	KindCrop DocumentKind = "crop"
)

// CellRef addresses a block through the document whose response produced it.
type CellRef struct {
	Document string `json:"documentId"`
	Block    string `json:"blockId"`
}

func (r CellRef) String() string {
	return r.Document + "/" + r.Block
}

// Document is one analyzed image and its own block namespace.
type Document struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Kind   DocumentKind        `json:"kind"`
	Parent string              `json:"parent,omitempty"`
	Crop   *geometry.PixelRect `json:"crop,omitempty"`
	MIME   string              `json:"mime"`
	Width  int                 `json:"width"`
	Height int                 `json:"height"`

	Image  []byte          `json:"-"`
	Index  *blocks.Index   `json:"-"`
	Tables []*grid.Table   `json:"-"`
	Mapper *overlay.Mapper `json:"-"`
}

// DocumentTable is a grid together with the document that produced it.
type DocumentTable struct {
	Document string      `json:"documentId"`
	Table    *grid.Table `json:"table"`
}

// AIContext is the inferred row and column header of a cell.
type AIContext struct {
	RowHeader string `json:"rowHeader"`
	ColHeader string `json:"colHeader"`
}

// ValueType is the declared type of a custom field.
type ValueType string

const (
	ValueString ValueType = "string"
	ValueInt    ValueType = "int"
)

// ParseValueType validates a custom field type. Empty means string.
func ParseValueType(s string) (ValueType, error) {
	switch ValueType(strings.ToLower(strings.TrimSpace(s))) {
	case ValueString, "":
		return ValueString, nil
	case ValueInt:
		return ValueInt, nil
	default:
		return "", apperr.Input(apperr.CodeInvalidRequest, fmt.Sprintf("Invalid value type %q: must be string or int", s))
	}
}

// CustomField is a user-declared field without a backing block.
type CustomField struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	ValueType ValueType `json:"valueType"`
	SensorTag string    `json:"sensorTag"`
}

// HeaderCell is one cell offered to header inference.
type HeaderCell struct {
	CellID string `json:"cellId"`
	Text   string `json:"text"`
}

// Entry is one record of the save payload.
type Entry struct {
	BlockID    string     `json:"blockId"`
	DocumentID string     `json:"documentId,omitempty"`
	CellText   string     `json:"cellText"`
	SensorTag  string     `json:"sensorTag"`
	IsCustom   bool       `json:"isCustom"`
	AIContext  *AIContext `json:"aiContext"`
}
