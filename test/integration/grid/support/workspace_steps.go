package support

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/cellgrid/internal/workspace"
)

// RegisterWorkspaceSteps registers multi-document, overlay and tagging steps.
func (testCtx *TestContext) RegisterWorkspaceSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the grid list holds (\d+) tables?$`, testCtx.theGridListHolds)
	sc.Step(`^every grid contains only cells of its own document$`, testCtx.everyGridIsScopedToItsDocument)
	sc.Step(`^block "([^"]*)" is registered to document "([^"]*)"$`, testCtx.blockIsRegisteredTo)
	sc.Step(`^the overlay of document "([^"]*)" shows regions "([^"]*)"$`, testCtx.theOverlayShowsRegions)
	sc.Step(`^the user clicks "([^"]*)" in document "([^"]*)"$`, testCtx.theUserClicks)
	sc.Step(`^"([^"]*)" of document "([^"]*)" is selected$`, testCtx.isSelected)
	sc.Step(`^nothing is selected$`, testCtx.nothingIsSelected)
	sc.Step(`^the user tags "([^"]*)" of document "([^"]*)" with "([^"]*)"$`, testCtx.theUserTags)
	sc.Step(`^"([^"]*)" of document "([^"]*)" carries the tag "([^"]*)"$`, testCtx.carriesTheTag)
	sc.Step(`^the saved entries are "([^"]*)"$`, testCtx.theSavedEntriesAre)
}

func (testCtx *TestContext) theGridListHolds(n int) error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	if got := len(testCtx.Workspace.Tables()); got != n {
		return fmt.Errorf("grid list holds %d tables, expected %d", got, n)
	}
	return nil
}

// everyGridIsScopedToItsDocument checks that each anchored cell, and every
// cell a merged anchor absorbed, exists in the response of the grid's own
// document.
func (testCtx *TestContext) everyGridIsScopedToItsDocument() error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	for _, dt := range testCtx.Workspace.Tables() {
		for _, c := range dt.Table.Anchors() {
			ids := append([]string{c.ID}, c.Absorbed...)
			for _, id := range ids {
				ref := workspace.CellRef{Document: dt.Document, Block: id}
				if _, ok := testCtx.Workspace.Block(ref); !ok {
					return fmt.Errorf("table %s of document %s holds foreign cell %s", dt.Table.ID, dt.Document, id)
				}
			}
		}
	}
	return nil
}

func (testCtx *TestContext) blockIsRegisteredTo(blockID, docID string) error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	got, ok := testCtx.Workspace.DocumentOf(blockID)
	if !ok {
		return fmt.Errorf("block %s is not registered", blockID)
	}
	if got != docID {
		return fmt.Errorf("block %s is registered to %s, expected %s", blockID, got, docID)
	}
	return nil
}

func (testCtx *TestContext) theOverlayShowsRegions(docID, want string) error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	regions, err := testCtx.Workspace.Regions(docID)
	if err != nil {
		return err
	}
	roots := make([]string, 0, len(regions))
	for _, r := range regions {
		roots = append(roots, r.Root)
	}
	if got := strings.Join(roots, ","); got != strings.Join(splitList(want), ",") {
		return fmt.Errorf("overlay of %s shows %q, expected %q", docID, got, want)
	}
	return nil
}

func (testCtx *TestContext) theUserClicks(blockID, docID string) error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	_, _, err := testCtx.Workspace.Select(workspace.CellRef{Document: docID, Block: blockID})
	return err
}

func (testCtx *TestContext) isSelected(blockID, docID string) error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	cur, ok := testCtx.Workspace.Selection()
	want := workspace.CellRef{Document: docID, Block: blockID}
	if !ok || cur != want {
		return fmt.Errorf("selection is %v (set=%t), expected %s", cur, ok, want)
	}
	return nil
}

func (testCtx *TestContext) nothingIsSelected() error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	if cur, ok := testCtx.Workspace.Selection(); ok {
		return fmt.Errorf("%s is selected, expected no selection", cur)
	}
	return nil
}

func (testCtx *TestContext) theUserTags(blockID, docID, tag string) error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	_, err := testCtx.Workspace.SetTag(workspace.CellRef{Document: docID, Block: blockID}, tag)
	return err
}

func (testCtx *TestContext) carriesTheTag(blockID, docID, want string) error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	got, ok := testCtx.Workspace.Tag(workspace.CellRef{Document: docID, Block: blockID})
	if !ok || got != want {
		return fmt.Errorf("%s/%s carries tag %q (set=%t), expected %q", docID, blockID, got, ok, want)
	}
	return nil
}

// theSavedEntriesAre compares the save payload as a comma separated list of
// tag=documentId/blockId pairs.
func (testCtx *TestContext) theSavedEntriesAre(want string) error {
	if testCtx.Workspace == nil {
		return errGridsNotBuilt
	}
	entries := testCtx.Workspace.Entries()
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.SensorTag+"="+e.DocumentID+"/"+e.BlockID)
	}
	if strings.Join(got, ",") != strings.Join(splitList(want), ",") {
		return fmt.Errorf("saved entries are %q, expected %q", strings.Join(got, ","), want)
	}
	return nil
}
