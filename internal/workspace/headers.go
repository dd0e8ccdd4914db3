package workspace

import (
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
)

// HeaderCells lists every anchored grid cell of a document for header
// inference.
func (w *Workspace) HeaderCells(documentID string) []HeaderCell {
	doc, ok := w.byID[documentID]
	if !ok {
		return nil
	}
	var out []HeaderCell
	for _, t := range doc.Tables {
		for _, c := range t.Anchors() {
			out = append(out, HeaderCell{CellID: c.ID, Text: strings.TrimSpace(c.Text)})
		}
	}
	return out
}

// ApplyHeaders merges inferred headers of one document when gen is still the
// current generation. Existing entries for other cells are kept and tags are
// never touched. It reports whether the result was applied.
func (w *Workspace) ApplyHeaders(gen uint64, documentID string, byCell map[string]AIContext) bool {
	if gen != w.generation {
		slog.Debug("Discarding stale header inference", "generation", gen, "current", w.generation, "document", documentID)
		return false
	}
	doc, ok := w.byID[documentID]
	if !ok {
		return false
	}
	for id, ctx := range byCell {
		if _, known := doc.Index.Block(id); !known {
			slog.Debug("Header inference returned unknown cell", "document", documentID, "cell", id)
			continue
		}
		w.headers[CellRef{Document: documentID, Block: doc.Mapper.Root(id)}] = ctx
	}
	return true
}

// Headers returns the inferred headers of the canonical cell behind ref.
func (w *Workspace) Headers(ref CellRef) (AIContext, bool) {
	root, err := w.Root(ref)
	if err != nil {
		return AIContext{}, false
	}
	ctx, ok := w.headers[root]
	return ctx, ok
}

// cellText returns the trimmed grid text of a canonical cell, falling back to
// the text resolved from its block.
func (w *Workspace) cellText(ref CellRef) string {
	doc, ok := w.byID[ref.Document]
	if !ok {
		return ""
	}
	for _, t := range doc.Tables {
		if c, found := t.Find(ref.Block); found {
			return strings.TrimSpace(c.Text)
		}
	}
	if b, found := doc.Index.Block(ref.Block); found {
		return strings.TrimSpace(blocks.ResolveText(b, doc.Index))
	}
	return ""
}
