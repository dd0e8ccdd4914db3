// Package support holds the step definitions of the grid reconstruction
// feature suite. Steps run in process against the block, grid, overlay,
// geometry and workspace packages.
package support

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/geometry"
	"github.com/MeKo-Tech/cellgrid/internal/grid"
	"github.com/MeKo-Tech/cellgrid/internal/testutil"
	"github.com/MeKo-Tech/cellgrid/internal/workspace"
)

// errGridsNotBuilt reports a check that ran before the grids were built.
var errGridsNotBuilt = errors.New("grids have not been built")

// defaultDocument is used until a scenario names another document.
const defaultDocument = workspace.MainDocumentID

// TestContext holds the state of one scenario.
type TestContext struct {
	// Responses under construction, keyed by document id.
	graphs  map[string]*testutil.Graph
	order   []string
	current string

	// Build results
	Workspace *workspace.Workspace
	LastError error

	// Geometry state
	Natural   geometry.Size
	Display   geometry.Size
	LastRect  geometry.PixelRect
	Forwarded bool
}

// NewTestContext returns an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{
		graphs:  make(map[string]*testutil.Graph),
		current: defaultDocument,
	}
}

// Cleanup drops the state of the finished scenario.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.Workspace != nil {
		testCtx.Workspace.Reset()
	}
	testCtx.graphs = nil
	testCtx.order = nil
	testCtx.Workspace = nil
	testCtx.LastError = nil
	return nil
}

// graph returns the response builder of the current document.
func (testCtx *TestContext) graph() *testutil.Graph {
	return testCtx.graphOf(testCtx.current)
}

func (testCtx *TestContext) graphOf(doc string) *testutil.Graph {
	g, ok := testCtx.graphs[doc]
	if !ok {
		g = testutil.NewGraph()
		testCtx.graphs[doc] = g
		testCtx.order = append(testCtx.order, doc)
	}
	return g
}

// build adds every document to a fresh workspace in declaration order.
func (testCtx *TestContext) build() error {
	testCtx.Workspace = workspace.New()
	testCtx.Workspace.BeginAnalysis()
	for _, id := range testCtx.order {
		kind := workspace.KindCrop
		if id == workspace.MainDocumentID {
			kind = workspace.KindMain
		}
		doc := &workspace.Document{ID: id, Name: id, Kind: kind}
		if _, err := testCtx.Workspace.AddDocument(doc, testCtx.graphs[id].Blocks()); err != nil {
			return fmt.Errorf("failed to add document %s: %w", id, err)
		}
	}
	return nil
}

// document returns a built document.
func (testCtx *TestContext) document(id string) (*workspace.Document, error) {
	if testCtx.Workspace == nil {
		return nil, errGridsNotBuilt
	}
	doc, ok := testCtx.Workspace.Document(id)
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return doc, nil
}

// table returns the grid with the given id from the current document.
func (testCtx *TestContext) table(id string) (*grid.Table, error) {
	doc, err := testCtx.document(testCtx.current)
	if err != nil {
		return nil, err
	}
	for _, t := range doc.Tables {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("table %s not built for document %s", id, testCtx.current)
}

// index returns the block index of the current document.
func (testCtx *TestContext) index() (*blocks.Index, error) {
	doc, err := testCtx.document(testCtx.current)
	if err != nil {
		return nil, err
	}
	return doc.Index, nil
}
