package blocks

import "log/slog"

// Index is the lookup structure over one OCR response: every block by id and
// the merge index mapping absorbed cell ids to their MERGED_CELL.
type Index struct {
	blocks []Block
	byID   map[string]*Block
	merge  map[string]string
}

// Build indexes a block list. The input slice is copied and never mutated.
// Duplicate ids resolve to the last occurrence, and a cell listed under two
// MERGED_CELL blocks belongs to the one seen last.
func Build(list []Block) *Index {
	ix := &Index{
		blocks: make([]Block, len(list)),
		byID:   make(map[string]*Block, len(list)),
		merge:  make(map[string]string),
	}
	copy(ix.blocks, list)

	for i := range ix.blocks {
		b := &ix.blocks[i]
		if _, dup := ix.byID[b.ID]; dup {
			slog.Debug("Duplicate block id in response", "id", b.ID)
		}
		ix.byID[b.ID] = b
	}

	for i := range ix.blocks {
		b := &ix.blocks[i]
		if b.BlockType != TypeMergedCell {
			continue
		}
		for _, child := range b.ChildIDs() {
			if prev, ok := ix.merge[child]; ok && prev != b.ID {
				slog.Debug("Cell absorbed by more than one merged cell", "cell", child, "previous", prev, "merged", b.ID)
			}
			ix.merge[child] = b.ID
		}
	}

	return ix
}

// Len returns the number of blocks in the response.
func (ix *Index) Len() int { return len(ix.blocks) }

// Block returns the block with the given id.
func (ix *Index) Block(id string) (*Block, bool) {
	b, ok := ix.byID[id]
	return b, ok
}

// Blocks returns the indexed blocks in response order.
func (ix *Index) Blocks() []Block { return ix.blocks }

// OfType returns every block of type t in response order.
func (ix *Index) OfType(t Type) []*Block {
	var out []*Block
	for i := range ix.blocks {
		if ix.blocks[i].BlockType == t {
			out = append(out, &ix.blocks[i])
		}
	}
	return out
}

// Children resolves a block's CHILD ids, skipping ids absent from the response.
func (ix *Index) Children(b *Block) []*Block {
	ids := b.ChildIDs()
	out := make([]*Block, 0, len(ids))
	for _, id := range ids {
		if c, ok := ix.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// MergedInto returns the MERGED_CELL id that absorbed cellID, if any.
func (ix *Index) MergedInto(cellID string) (string, bool) {
	id, ok := ix.merge[cellID]
	return id, ok
}

// Absorbed reports whether a MERGED_CELL claims cellID.
func (ix *Index) Absorbed(cellID string) bool {
	_, ok := ix.merge[cellID]
	return ok
}

// Root resolves a cell id to its canonical id: the merged cell that absorbed
// it, or the id itself.
func (ix *Index) Root(id string) string {
	if root, ok := ix.merge[id]; ok {
		return root
	}
	return id
}

// MergeIndex returns a copy of the absorbed-cell to merged-cell mapping.
func (ix *Index) MergeIndex() map[string]string {
	out := make(map[string]string, len(ix.merge))
	for k, v := range ix.merge {
		out[k] = v
	}
	return out
}
