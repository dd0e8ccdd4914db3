package workspace

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/grid"
	"github.com/MeKo-Tech/cellgrid/internal/overlay"
	"github.com/google/uuid"
)

// Workspace is the accumulating state of one session.
type Workspace struct {
	generation uint64

	documents       []*Document
	byID            map[string]*Document
	master          map[CellRef]*blocks.Block
	blockToDocument map[string]string
	tables          []DocumentTable

	tags      map[CellRef]string
	headers   map[CellRef]AIContext
	fields    []*CustomField
	selection overlay.Selection[CellRef]
}

// New returns an empty workspace.
func New() *Workspace {
	w := &Workspace{}
	w.Reset()
	return w
}

// Generation returns the current analysis generation.
func (w *Workspace) Generation() uint64 { return w.generation }

// BeginAnalysis starts a new generation. Results tagged with an older
// generation are ignored from now on.
func (w *Workspace) BeginAnalysis() uint64 {
	w.generation++
	return w.generation
}

// Reset drops all documents, grids and annotations and releases image data.
// The generation is kept so pending results stay stale.
func (w *Workspace) Reset() {
	for _, d := range w.documents {
		d.Image = nil
	}
	w.documents = nil
	w.byID = make(map[string]*Document)
	w.master = make(map[CellRef]*blocks.Block)
	w.blockToDocument = make(map[string]string)
	w.tables = nil
	w.tags = make(map[CellRef]string)
	w.headers = make(map[CellRef]AIContext)
	w.fields = nil
	w.selection.Clear()
}

// AddDocument indexes one analysis response as its own namespace, builds its
// grids from its blocks only and appends them to the running grid list.
func (w *Workspace) AddDocument(doc *Document, list []blocks.Block) ([]*grid.Table, error) {
	if doc == nil || doc.ID == "" {
		return nil, apperr.Internal(apperr.CodeInternal, "document id required", nil)
	}
	if _, exists := w.byID[doc.ID]; exists {
		return nil, apperr.Internal(apperr.CodeInternal, fmt.Sprintf("document %s already added", doc.ID), nil)
	}

	ix := blocks.Build(list)
	doc.Index = ix
	doc.Mapper = overlay.NewMapper(ix)
	doc.Tables = grid.BuildAll(ix)

	for _, b := range ix.Blocks() {
		stored, _ := ix.Block(b.ID)
		w.master[CellRef{Document: doc.ID, Block: b.ID}] = stored
		if prev, ok := w.blockToDocument[b.ID]; ok && prev != doc.ID {
			slog.Warn("Block id collision across documents", "block", b.ID, "previous", prev, "document", doc.ID)
		}
		w.blockToDocument[b.ID] = doc.ID
	}

	for _, t := range doc.Tables {
		w.tables = append(w.tables, DocumentTable{Document: doc.ID, Table: t})
	}

	w.documents = append(w.documents, doc)
	w.byID[doc.ID] = doc
	return doc.Tables, nil
}

// Document returns the document with the given id.
func (w *Workspace) Document(id string) (*Document, bool) {
	d, ok := w.byID[id]
	return d, ok
}

// Documents returns documents in the order they were added.
func (w *Workspace) Documents() []*Document {
	return slices.Clone(w.documents)
}

// Tables returns every grid built so far in build order.
func (w *Workspace) Tables() []DocumentTable {
	return slices.Clone(w.tables)
}

// Block looks a block up through its document.
func (w *Workspace) Block(ref CellRef) (*blocks.Block, bool) {
	b, ok := w.master[ref]
	return b, ok
}

// DocumentOf resolves a bare block id to the document that last registered
// it. Ids are only unique per document, so prefer CellRef lookups.
func (w *Workspace) DocumentOf(blockID string) (string, bool) {
	id, ok := w.blockToDocument[blockID]
	return id, ok
}

// Root resolves a reference to its canonical cell within its document.
func (w *Workspace) Root(ref CellRef) (CellRef, error) {
	doc, ok := w.byID[ref.Document]
	if !ok {
		return CellRef{}, apperr.NotFound(apperr.CodeDocumentNotFound, fmt.Sprintf("Document %s not found", ref.Document))
	}
	if _, ok := doc.Index.Block(ref.Block); !ok {
		return CellRef{}, apperr.NotFound(apperr.CodeCellNotFound, fmt.Sprintf("Cell %s not found in document %s", ref.Block, ref.Document))
	}
	return CellRef{Document: ref.Document, Block: doc.Mapper.Root(ref.Block)}, nil
}

// Select toggles the selection of the canonical cell behind ref.
func (w *Workspace) Select(ref CellRef) (CellRef, bool, error) {
	root, err := w.Root(ref)
	if err != nil {
		return CellRef{}, false, err
	}
	cur, ok := w.selection.Toggle(root)
	return cur, ok, nil
}

// Selection returns the selected canonical cell, if any.
func (w *Workspace) Selection() (CellRef, bool) {
	return w.selection.Current()
}

// SetTag stores a sensor tag on the canonical cell behind ref. A blank tag
// removes it. Only table cells carry tags.
func (w *Workspace) SetTag(ref CellRef, tag string) (CellRef, error) {
	root, err := w.Root(ref)
	if err != nil {
		return CellRef{}, err
	}
	if b, ok := w.Block(root); !ok || (b.BlockType != blocks.TypeCell && b.BlockType != blocks.TypeMergedCell) {
		return CellRef{}, apperr.Input(apperr.CodeNotTaggable, fmt.Sprintf("Block %s of document %s is not a table cell", root.Block, root.Document))
	}
	if strings.TrimSpace(tag) == "" {
		delete(w.tags, root)
		return root, nil
	}
	w.tags[root] = tag
	return root, nil
}

// DeleteTag removes the tag of the canonical cell behind ref.
func (w *Workspace) DeleteTag(ref CellRef) (CellRef, error) {
	root, err := w.Root(ref)
	if err != nil {
		return CellRef{}, err
	}
	delete(w.tags, root)
	return root, nil
}

// Tag returns the tag stored on the canonical cell behind ref.
func (w *Workspace) Tag(ref CellRef) (string, bool) {
	root, err := w.Root(ref)
	if err != nil {
		return "", false
	}
	tag, ok := w.tags[root]
	return tag, ok
}

// Tags returns a copy of all tags.
func (w *Workspace) Tags() map[CellRef]string {
	out := make(map[CellRef]string, len(w.tags))
	for k, v := range w.tags {
		out[k] = v
	}
	return out
}

// AddField declares a custom field.
func (w *Workspace) AddField(label, valueType, sensorTag string) (*CustomField, error) {
	vt, err := ParseValueType(valueType)
	if err != nil {
		return nil, err
	}
	f := &CustomField{ID: uuid.NewString(), Label: strings.TrimSpace(label), ValueType: vt, SensorTag: sensorTag}
	w.fields = append(w.fields, f)
	return f, nil
}

// UpdateField replaces the label, type and tag of a custom field.
func (w *Workspace) UpdateField(id, label, valueType, sensorTag string) (*CustomField, error) {
	i := w.fieldIndex(id)
	if i < 0 {
		return nil, apperr.NotFound(apperr.CodeFieldNotFound, fmt.Sprintf("Field %s not found", id))
	}
	vt, err := ParseValueType(valueType)
	if err != nil {
		return nil, err
	}
	f := w.fields[i]
	f.Label, f.ValueType, f.SensorTag = strings.TrimSpace(label), vt, sensorTag
	return f, nil
}

// DeleteField removes a custom field.
func (w *Workspace) DeleteField(id string) error {
	i := w.fieldIndex(id)
	if i < 0 {
		return apperr.NotFound(apperr.CodeFieldNotFound, fmt.Sprintf("Field %s not found", id))
	}
	w.fields = slices.Delete(w.fields, i, i+1)
	return nil
}

// Fields returns copies of the custom fields in declaration order.
func (w *Workspace) Fields() []CustomField {
	out := make([]CustomField, len(w.fields))
	for i, f := range w.fields {
		out[i] = *f
	}
	return out
}

func (w *Workspace) fieldIndex(id string) int {
	return slices.IndexFunc(w.fields, func(f *CustomField) bool { return f.ID == id })
}
