package workspace

import (
	"cmp"
	"slices"
	"strings"
)

// Entries builds the save payload: one entry per non-blank tag, ordered by
// document then block id, followed by custom fields carrying a tag.
func (w *Workspace) Entries() []Entry {
	order := w.documentOrder()

	refs := make([]CellRef, 0, len(w.tags))
	for ref, tag := range w.tags {
		if strings.TrimSpace(tag) != "" {
			refs = append(refs, ref)
		}
	}
	slices.SortFunc(refs, func(a, b CellRef) int {
		return compareRefs(order, a, b)
	})

	out := make([]Entry, 0, len(refs)+len(w.fields))
	for _, ref := range refs {
		e := Entry{
			BlockID:    ref.Block,
			DocumentID: ref.Document,
			CellText:   w.cellText(ref),
			SensorTag:  w.tags[ref],
		}
		if ctx, ok := w.headers[ref]; ok {
			e.AIContext = &ctx
		}
		out = append(out, e)
	}

	for _, f := range w.fields {
		if strings.TrimSpace(f.SensorTag) == "" {
			continue
		}
		out = append(out, Entry{
			BlockID:   f.ID,
			CellText:  f.Label,
			SensorTag: f.SensorTag,
			IsCustom:  true,
		})
	}
	return out
}

func (w *Workspace) documentOrder() map[string]int {
	order := make(map[string]int, len(w.documents))
	for i, d := range w.documents {
		order[d.ID] = i
	}
	return order
}

func compareRefs(order map[string]int, a, b CellRef) int {
	if c := cmp.Compare(order[a.Document], order[b.Document]); c != 0 {
		return c
	}
	return cmp.Compare(a.Block, b.Block)
}
