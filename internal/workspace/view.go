package workspace

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/overlay"
)

// TagView is one stored tag.
type TagView struct {
	CellRef
	SensorTag string `json:"sensorTag"`
}

// HeaderView is one inferred header pair.
type HeaderView struct {
	CellRef
	AIContext
}

// View is a read-only snapshot of the workspace.
type View struct {
	Generation uint64          `json:"generation"`
	Documents  []Document      `json:"documents"`
	Tables     []DocumentTable `json:"tables"`
	Tags       []TagView       `json:"tags"`
	Headers    []HeaderView    `json:"headers"`
	Fields     []CustomField   `json:"fields"`
	Selection  *CellRef        `json:"selection"`
}

// Snapshot copies the state needed to render the session.
func (w *Workspace) Snapshot() View {
	v := View{
		Generation: w.generation,
		Documents:  make([]Document, 0, len(w.documents)),
		Tables:     w.Tables(),
		Tags:       []TagView{},
		Headers:    []HeaderView{},
		Fields:     w.Fields(),
	}
	for _, d := range w.documents {
		v.Documents = append(v.Documents, *d)
	}
	for _, e := range w.Entries() {
		if !e.IsCustom {
			v.Tags = append(v.Tags, TagView{CellRef: CellRef{Document: e.DocumentID, Block: e.BlockID}, SensorTag: e.SensorTag})
		}
	}
	for ref, ctx := range w.headers {
		v.Headers = append(v.Headers, HeaderView{CellRef: ref, AIContext: ctx})
	}
	order := w.documentOrder()
	slices.SortFunc(v.Headers, func(a, b HeaderView) int {
		return compareRefs(order, a.CellRef, b.CellRef)
	})
	if sel, ok := w.selection.Current(); ok {
		v.Selection = &sel
	}
	return v
}

// Regions returns the overlay regions of a document with selection and tag
// state applied.
func (w *Workspace) Regions(documentID string) ([]overlay.Region, error) {
	doc, ok := w.byID[documentID]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeDocumentNotFound, fmt.Sprintf("Document %s not found", documentID))
	}
	regions := doc.Mapper.Regions()
	overlay.Mark(regions,
		func(root string) bool { return w.selection.Is(CellRef{Document: documentID, Block: root}) },
		func(root string) bool {
			return strings.TrimSpace(w.tags[CellRef{Document: documentID, Block: root}]) != ""
		},
	)
	return regions, nil
}
