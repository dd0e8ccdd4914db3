package blocks

import (
	"slices"
	"strings"
)

// Placeholder is shown for cells whose text resolves to nothing.
const Placeholder = "\u00a0"

// ResolveText derives the display text of a block from its children. LINE
// children are read top to bottom; without lines, WORD children are read left
// to right. Ties keep response order.
func ResolveText(b *Block, ix *Index) string {
	if b == nil || !b.HasChildren() {
		return ""
	}

	children := ix.Children(b)

	lines := filterType(children, TypeLine)
	if len(lines) > 0 {
		slices.SortStableFunc(lines, func(a, c *Block) int {
			return compareFloat(a.Geometry.BoundingBox.Top, c.Geometry.BoundingBox.Top)
		})
		return joinText(lines)
	}

	words := filterType(children, TypeWord)
	if len(words) > 0 {
		slices.SortStableFunc(words, func(a, c *Block) int {
			return compareFloat(a.Geometry.BoundingBox.Left, c.Geometry.BoundingBox.Left)
		})
		return joinText(words)
	}

	return ""
}

// DisplayText returns s, or Placeholder when s is blank.
func DisplayText(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func filterType(list []*Block, t Type) []*Block {
	var out []*Block
	for _, b := range list {
		if b.BlockType == t {
			out = append(out, b)
		}
	}
	return out
}

func joinText(list []*Block) string {
	parts := make([]string, len(list))
	for i, b := range list {
		parts[i] = b.Text
	}
	return strings.Join(parts, " ")
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
