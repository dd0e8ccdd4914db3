package support

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/grid"
)

// RegisterGridSteps registers block graph and grid reconstruction steps.
func (testCtx *TestContext) RegisterGridSteps(sc *godog.ScenarioContext) {
	sc.Step(`^document "([^"]*)"$`, testCtx.documentIs)
	sc.Step(`^a table "([^"]*)" with cells:$`, testCtx.aTableWithCells)
	sc.Step(`^a table "([^"]*)" without cells$`, testCtx.aTableWithoutCells)
	sc.Step(`^cell "([^"]*)" holds the words "([^"]*)"$`, testCtx.cellHoldsWords)
	sc.Step(`^a merged cell "([^"]*)" at row (\d+) column (\d+) spanning (\d+)x(\d+) absorbs "([^"]*)"$`, testCtx.aMergedCellAbsorbs)
	sc.Step(`^the grids are built$`, testCtx.theGridsAreBuilt)

	sc.Step(`^table "([^"]*)" is (\d+)x(\d+)$`, testCtx.tableIsSized)
	sc.Step(`^table "([^"]*)" has (\d+) anchors and (\d+) spanned positions$`, testCtx.tableHasCounts)
	sc.Step(`^table "([^"]*)" row (\d+) reads "([^"]*)"$`, testCtx.tableRowReads)
	sc.Step(`^cell "([^"]*)" of table "([^"]*)" reads "([^"]*)"$`, testCtx.cellReads)
	sc.Step(`^cell "([^"]*)" of table "([^"]*)" is a header$`, testCtx.cellIsHeader)
	sc.Step(`^cell "([^"]*)" of table "([^"]*)" is not a header$`, testCtx.cellIsNotHeader)
	sc.Step(`^no grid is built for document "([^"]*)"$`, testCtx.noGridIsBuilt)
	sc.Step(`^anchors and spanned positions are disjoint in every grid$`, testCtx.anchorsAndSpansAreDisjoint)
	sc.Step(`^every child of "([^"]*)" resolves to "([^"]*)"$`, testCtx.everyChildResolvesTo)
	sc.Step(`^no absorbed cell is an anchor$`, testCtx.noAbsorbedCellIsAnchor)
	sc.Step(`^the text of "([^"]*)" resolves to "([^"]*)" on every call$`, testCtx.textResolvesDeterministically)
}

func (testCtx *TestContext) documentIs(id string) error {
	testCtx.current = id
	testCtx.graphOf(id)
	return nil
}

// aTableWithCells reads rows of id, row, col and text. Optional rowSpan and
// colSpan columns set explicit spans.
func (testCtx *TestContext) aTableWithCells(tableID string, table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("table %s needs a header row and at least one cell", tableID)
	}

	columns := make(map[string]int)
	for i, c := range table.Rows[0].Cells {
		columns[strings.TrimSpace(c.Value)] = i
	}
	for _, name := range []string{"id", "row", "col"} {
		if _, ok := columns[name]; !ok {
			return fmt.Errorf("cell table is missing column %q", name)
		}
	}

	g := testCtx.graph()
	ids := make([]string, 0, len(table.Rows)-1)
	for _, r := range table.Rows[1:] {
		value := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(r.Cells) {
				return ""
			}
			return strings.TrimSpace(r.Cells[i].Value)
		}

		id := value("id")
		row, err := atoiDefault(value("row"), 0)
		if err != nil {
			return fmt.Errorf("cell %s: %w", id, err)
		}
		col, err := atoiDefault(value("col"), 0)
		if err != nil {
			return fmt.Errorf("cell %s: %w", id, err)
		}
		rowSpan, err := atoiDefault(value("rowSpan"), 1)
		if err != nil {
			return fmt.Errorf("cell %s: %w", id, err)
		}
		colSpan, err := atoiDefault(value("colSpan"), 1)
		if err != nil {
			return fmt.Errorf("cell %s: %w", id, err)
		}

		var children []string
		if text := value("text"); text != "" {
			children = append(children, g.Line(id+"-line", text, float64(row)*0.1))
		}
		ids = append(ids, g.SpanCell(id, row, col, rowSpan, colSpan, children...))
	}

	g.Table(tableID, ids...)
	return nil
}

func (testCtx *TestContext) aTableWithoutCells(tableID string) error {
	testCtx.graph().Table(tableID)
	return nil
}

// cellHoldsWords adds a cell whose only descendants are words, in the
// given left-to-right positions reversed so ordering is exercised.
func (testCtx *TestContext) cellHoldsWords(cellID, words string) error {
	g := testCtx.graph()
	list := strings.Fields(words)
	children := make([]string, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		children = append(children, g.Word(fmt.Sprintf("%s-w%d", cellID, i), list[i], float64(i)*0.1))
	}
	g.Cell(cellID, 1, 1, children...)
	return nil
}

func (testCtx *TestContext) aMergedCellAbsorbs(id string, row, col, rowSpan, colSpan int, cells string) error {
	testCtx.graph().Merged(id, row, col, rowSpan, colSpan, splitList(cells)...)
	return nil
}

func (testCtx *TestContext) theGridsAreBuilt() error {
	testCtx.LastError = testCtx.build()
	return testCtx.LastError
}

func (testCtx *TestContext) tableIsSized(tableID string, rows, cols int) error {
	t, err := testCtx.table(tableID)
	if err != nil {
		return err
	}
	r, c := t.Size()
	if r != rows || c != cols {
		return fmt.Errorf("table %s is %dx%d, expected %dx%d", tableID, r, c, rows, cols)
	}
	return nil
}

func (testCtx *TestContext) tableHasCounts(tableID string, anchors, spanned int) error {
	t, err := testCtx.table(tableID)
	if err != nil {
		return err
	}
	if got := t.Count(grid.Anchor); got != anchors {
		return fmt.Errorf("table %s has %d anchors, expected %d", tableID, got, anchors)
	}
	if got := t.Count(grid.Spanned); got != spanned {
		return fmt.Errorf("table %s has %d spanned positions, expected %d", tableID, got, spanned)
	}
	return nil
}

// tableRowReads compares a 1-based row against a space separated rendering:
// an anchor is its id with a RxC suffix when it spans, "~" is spanned and
// "." is empty.
func (testCtx *TestContext) tableRowReads(tableID string, row int, want string) error {
	t, err := testCtx.table(tableID)
	if err != nil {
		return err
	}
	if row < 1 || row > len(t.Rows) {
		return fmt.Errorf("table %s has no row %d", tableID, row)
	}

	tokens := make([]string, 0, len(t.Rows[row-1]))
	for _, pos := range t.Rows[row-1] {
		switch pos.Kind {
		case grid.Anchor:
			token := pos.Cell.ID
			if pos.Cell.RowSpan > 1 || pos.Cell.ColSpan > 1 {
				token += fmt.Sprintf("[%dx%d]", pos.Cell.RowSpan, pos.Cell.ColSpan)
			}
			tokens = append(tokens, token)
		case grid.Spanned:
			tokens = append(tokens, "~")
		default:
			tokens = append(tokens, ".")
		}
	}

	if got := strings.Join(tokens, " "); got != want {
		return fmt.Errorf("table %s row %d reads %q, expected %q", tableID, row, got, want)
	}
	return nil
}

func (testCtx *TestContext) anchoredCell(cellID, tableID string) (*grid.Cell, error) {
	t, err := testCtx.table(tableID)
	if err != nil {
		return nil, err
	}
	c, ok := t.Find(cellID)
	if !ok {
		return nil, fmt.Errorf("cell %s is not anchored in table %s", cellID, tableID)
	}
	return c, nil
}

func (testCtx *TestContext) cellReads(cellID, tableID, want string) error {
	c, err := testCtx.anchoredCell(cellID, tableID)
	if err != nil {
		return err
	}
	if got := c.Text; got != want {
		return fmt.Errorf("cell %s reads %q, expected %q", cellID, got, want)
	}
	return nil
}

func (testCtx *TestContext) cellIsHeader(cellID, tableID string) error {
	c, err := testCtx.anchoredCell(cellID, tableID)
	if err != nil {
		return err
	}
	if !c.IsHeader {
		return fmt.Errorf("cell %s is not a header", cellID)
	}
	return nil
}

func (testCtx *TestContext) cellIsNotHeader(cellID, tableID string) error {
	c, err := testCtx.anchoredCell(cellID, tableID)
	if err != nil {
		return err
	}
	if c.IsHeader {
		return fmt.Errorf("cell %s is a header", cellID)
	}
	return nil
}

func (testCtx *TestContext) noGridIsBuilt(docID string) error {
	doc, err := testCtx.document(docID)
	if err != nil {
		return err
	}
	if len(doc.Tables) != 0 {
		return fmt.Errorf("document %s produced %d grids, expected none", docID, len(doc.Tables))
	}
	return nil
}

// anchorsAndSpansAreDisjoint walks every span rectangle of every grid and
// checks it stays in bounds and covers only spanned positions.
func (testCtx *TestContext) anchorsAndSpansAreDisjoint() error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	for _, dt := range testCtx.Workspace.Tables() {
		t := dt.Table
		rows, cols := t.Size()
		for r, line := range t.Rows {
			for c, pos := range line {
				if pos.Kind != grid.Anchor {
					continue
				}
				for dr := 0; dr < pos.Cell.RowSpan; dr++ {
					for dc := 0; dc < pos.Cell.ColSpan; dc++ {
						rr, cc := r+dr, c+dc
						if rr >= rows || cc >= cols {
							return fmt.Errorf("table %s: span of %s leaves the grid at %d,%d", t.ID, pos.Cell.ID, rr, cc)
						}
						if (dr != 0 || dc != 0) && t.Rows[rr][cc].Kind != grid.Spanned {
							return fmt.Errorf("table %s: position %d,%d inside %s is %s", t.ID, rr, cc, pos.Cell.ID, t.Rows[rr][cc].Kind)
						}
					}
				}
			}
		}
	}
	return nil
}

func (testCtx *TestContext) everyChildResolvesTo(mergedID, root string) error {
	ix, err := testCtx.index()
	if err != nil {
		return err
	}
	b, ok := ix.Block(mergedID)
	if !ok {
		return fmt.Errorf("block %s not found", mergedID)
	}
	for _, child := range b.ChildIDs() {
		if got := ix.Root(child); got != root {
			return fmt.Errorf("cell %s resolves to %s, expected %s", child, got, root)
		}
	}
	return nil
}

func (testCtx *TestContext) noAbsorbedCellIsAnchor() error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	for _, dt := range testCtx.Workspace.Tables() {
		doc, err := testCtx.document(dt.Document)
		if err != nil {
			return err
		}
		for _, c := range dt.Table.Anchors() {
			if doc.Index.Absorbed(c.ID) {
				return fmt.Errorf("absorbed cell %s is anchored in table %s", c.ID, dt.Table.ID)
			}
		}
	}
	return nil
}

func (testCtx *TestContext) textResolvesDeterministically(blockID, want string) error {
	ix, err := testCtx.index()
	if err != nil {
		return err
	}
	b, ok := ix.Block(blockID)
	if !ok {
		return fmt.Errorf("block %s not found", blockID)
	}
	first := blocks.ResolveText(b, ix)
	second := blocks.ResolveText(b, ix)
	if first != second {
		return fmt.Errorf("text of %s changed between calls: %q then %q", blockID, first, second)
	}
	if first != want {
		return fmt.Errorf("text of %s is %q, expected %q", blockID, first, want)
	}
	return nil
}

func atoiDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
