package support

import (
	"errors"
	"fmt"
	"math"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/cellgrid/internal/geometry"
)

// RegisterGeometrySteps registers selection translation steps.
func (testCtx *TestContext) RegisterGeometrySteps(sc *godog.ScenarioContext) {
	sc.Step(`^an image of (\d+)x(\d+) pixels shown in a (\d+)x(\d+) container$`, testCtx.anImageShownInAContainer)
	sc.Step(`^the user draws over the visible image$`, testCtx.theUserDrawsOverTheVisibleImage)
	sc.Step(`^the user draws a rectangle at (\d+),(\d+) of size (\d+)x(\d+)$`, testCtx.theUserDrawsARectangle)
	sc.Step(`^the source rectangle is (\d+),(\d+) (\d+)x(\d+) within (\d+) pixels?$`, testCtx.theSourceRectangleIs)
	sc.Step(`^the selection is discarded$`, testCtx.theSelectionIsDiscarded)
}

func (testCtx *TestContext) anImageShownInAContainer(w, h, dw, dh int) error {
	testCtx.Natural = geometry.Size{Width: float64(w), Height: float64(h)}
	testCtx.Display = geometry.Size{Width: float64(dw), Height: float64(dh)}
	return nil
}

// theUserDrawsOverTheVisibleImage draws exactly over the letterboxed or
// pillarboxed image area.
func (testCtx *TestContext) theUserDrawsOverTheVisibleImage() error {
	naturalRatio := testCtx.Natural.Width / testCtx.Natural.Height
	displayRatio := testCtx.Display.Width / testCtx.Display.Height

	var visible geometry.Rect
	if naturalRatio > displayRatio {
		h := testCtx.Display.Width / naturalRatio
		visible = geometry.Rect{Y: (testCtx.Display.Height - h) / 2, Width: testCtx.Display.Width, Height: h}
	} else {
		w := testCtx.Display.Height * naturalRatio
		visible = geometry.Rect{X: (testCtx.Display.Width - w) / 2, Width: w, Height: testCtx.Display.Height}
	}
	testCtx.draw(visible)
	return nil
}

func (testCtx *TestContext) theUserDrawsARectangle(x, y, w, h int) error {
	testCtx.draw(geometry.Rect{X: float64(x), Y: float64(y), Width: float64(w), Height: float64(h)})
	return nil
}

// draw translates r and forwards the result only when it is kept.
func (testCtx *TestContext) draw(r geometry.Rect) {
	testCtx.Forwarded = false
	testCtx.LastRect, testCtx.LastError = geometry.Translate(r, testCtx.Display, testCtx.Natural)
	if testCtx.LastError == nil {
		testCtx.Forwarded = true
	}
}

func (testCtx *TestContext) theSourceRectangleIs(x, y, w, h, tolerance int) error {
	if testCtx.LastError != nil {
		return fmt.Errorf("selection was rejected: %w", testCtx.LastError)
	}
	got := testCtx.LastRect
	want := geometry.PixelRect{X: x, Y: y, Width: w, Height: h}
	if !within(got.X, want.X, tolerance) || !within(got.Y, want.Y, tolerance) ||
		!within(got.Width, want.Width, tolerance) || !within(got.Height, want.Height, tolerance) {
		return fmt.Errorf("source rectangle is %s, expected %s within %dpx", got, want, tolerance)
	}
	return nil
}

func (testCtx *TestContext) theSelectionIsDiscarded() error {
	if testCtx.Forwarded {
		return fmt.Errorf("selection %s was forwarded", testCtx.LastRect)
	}
	if !errors.Is(testCtx.LastError, geometry.ErrSelectionTooSmall) {
		return fmt.Errorf("expected a too-small selection, got %v", testCtx.LastError)
	}
	return nil
}

func within(got, want, tolerance int) bool {
	return math.Abs(float64(got-want)) <= float64(tolerance)
}
