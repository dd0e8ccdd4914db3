// Package blocks models the flat block graph returned by the OCR backend and
// the lookup structures built over it.
package blocks

import (
	"encoding/json"
	"fmt"
)

// Type is the block variant as emitted by the OCR backend.
type Type string

const (
	TypePage        Type = "PAGE"
	TypeTable       Type = "TABLE"
	TypeCell        Type = "CELL"
	TypeMergedCell  Type = "MERGED_CELL"
	TypeLine        Type = "LINE"
	TypeWord        Type = "WORD"
	TypeKeyValueSet Type = "KEY_VALUE_SET"
)

// RelationshipType distinguishes containment from form-field pairing.
type RelationshipType string

const (
	RelationshipChild RelationshipType = "CHILD"
	RelationshipValue RelationshipType = "VALUE"
)

// BoundingBox is expressed in fractions of the source image dimensions.
type BoundingBox struct {
	Left   float64 `json:"Left"`
	Top    float64 `json:"Top"`
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
}

// Point is a polygon vertex in fractions of the source image dimensions.
type Point struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

// Geometry holds the block's location on the page.
type Geometry struct {
	BoundingBox BoundingBox `json:"BoundingBox"`
	Polygon     []Point     `json:"Polygon,omitempty"`
}

// Relationship links a block to other blocks of the same response.
type Relationship struct {
	Type RelationshipType `json:"Type"`
	IDs  []string         `json:"Ids"`
}

// Block is one detected region. Field names follow the Textract wire format so
// responses can be decoded without an intermediate type.
type Block struct {
	ID              string         `json:"Id"`
	BlockType       Type           `json:"BlockType"`
	Text            string         `json:"Text,omitempty"`
	Confidence      float64        `json:"Confidence,omitempty"`
	Geometry        Geometry       `json:"Geometry"`
	RowIndex        int            `json:"RowIndex,omitempty"`
	ColumnIndex     int            `json:"ColumnIndex,omitempty"`
	RowSpan         int            `json:"RowSpan,omitempty"`
	ColumnSpan      int            `json:"ColumnSpan,omitempty"`
	EntityTypes     []string       `json:"EntityTypes,omitempty"`
	SelectionStatus string         `json:"SelectionStatus,omitempty"`
	Page            int            `json:"Page,omitempty"`
	Relationships   []Relationship `json:"Relationships,omitempty"`
}

// ChildIDs returns the ids of every CHILD relationship in declaration order.
func (b *Block) ChildIDs() []string {
	return b.related(RelationshipChild)
}

// ValueIDs returns the ids of every VALUE relationship in declaration order.
func (b *Block) ValueIDs() []string {
	return b.related(RelationshipValue)
}

func (b *Block) related(t RelationshipType) []string {
	var ids []string
	for _, rel := range b.Relationships {
		if rel.Type == t {
			ids = append(ids, rel.IDs...)
		}
	}
	return ids
}

// HasChildren reports whether the block declares at least one CHILD relationship.
func (b *Block) HasChildren() bool {
	for _, rel := range b.Relationships {
		if rel.Type == RelationshipChild {
			return true
		}
	}
	return false
}

// Spans returns the row and column span, treating missing or non-positive
// values as 1.
func (b *Block) Spans() (rows, cols int) {
	rows, cols = b.RowSpan, b.ColumnSpan
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return rows, cols
}

// Response is the success body of an analysis call.
type Response struct {
	Blocks           []Block           `json:"Blocks"`
	DocumentMetadata *DocumentMetadata `json:"DocumentMetadata,omitempty"`
}

// DocumentMetadata mirrors the page count reported by the backend.
type DocumentMetadata struct {
	Pages int `json:"Pages"`
}

// ParseResponse decodes a raw analysis response body.
func ParseResponse(data []byte) ([]Block, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode block response: %w", err)
	}
	if resp.Blocks == nil {
		return nil, fmt.Errorf("decode block response: missing Blocks array")
	}
	return resp.Blocks, nil
}
