// Package overlay projects table cells onto interactive regions of the
// source image and tracks which region is selected.
package overlay

import "github.com/MeKo-Tech/cellgrid/internal/blocks"

// Region is one clickable box per canonical cell.
type Region struct {
	Root     string             `json:"root"`
	ClickID  string             `json:"clickId"`
	Box      blocks.BoundingBox `json:"box"`
	Merged   bool               `json:"merged,omitempty"`
	Selected bool               `json:"selected,omitempty"`
	Tagged   bool               `json:"tagged,omitempty"`
}

// Mapper resolves cell ids of one response to their canonical roots.
type Mapper struct {
	ix *blocks.Index
}

// NewMapper returns a mapper over ix.
func NewMapper(ix *blocks.Index) *Mapper {
	return &Mapper{ix: ix}
}

// Root returns the merged cell that absorbed id, or id itself.
func (m *Mapper) Root(id string) string {
	return m.ix.Root(id)
}

// Regions returns one region per canonical root over every CELL and
// MERGED_CELL, in response order. ClickID is the first cell seen for the
// root and the box is the root block's own box.
func (m *Mapper) Regions() []Region {
	seen := make(map[string]struct{})
	var out []Region
	for _, b := range m.ix.Blocks() {
		if b.BlockType != blocks.TypeCell && b.BlockType != blocks.TypeMergedCell {
			continue
		}
		root := m.ix.Root(b.ID)
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}

		box := b.Geometry.BoundingBox
		merged := b.BlockType == blocks.TypeMergedCell
		if rb, ok := m.ix.Block(root); ok {
			box = rb.Geometry.BoundingBox
			merged = rb.BlockType == blocks.TypeMergedCell
		}
		out = append(out, Region{Root: root, ClickID: b.ID, Box: box, Merged: merged})
	}
	return out
}

// Mark sets the Selected and Tagged flags of each region.
func Mark(regions []Region, selected, tagged func(root string) bool) {
	for i := range regions {
		if selected != nil {
			regions[i].Selected = selected(regions[i].Root)
		}
		if tagged != nil {
			regions[i].Tagged = tagged(regions[i].Root)
		}
	}
}
