// Package ocr submits uploaded documents to an OCR backend and returns the
// flat block graph it produces.
package ocr

import (
	"context"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
)

// Document is a validated upload ready for analysis.
type Document struct {
	Name   string
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// IsPDF reports whether the document is a PDF.
func (d Document) IsPDF() bool {
	return d.MIME == MIMEPDF
}

// Analyzer runs OCR with form and table detection on one document.
type Analyzer interface {
	Analyze(ctx context.Context, doc Document) ([]blocks.Block, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, doc Document) ([]blocks.Block, error)

// Analyze implements Analyzer.
func (f AnalyzerFunc) Analyze(ctx context.Context, doc Document) ([]blocks.Block, error) {
	return f(ctx, doc)
}
