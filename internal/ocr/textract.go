package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// TextractClient is the subset of the Textract API used here.
type TextractClient interface {
	AnalyzeDocument(ctx context.Context, in *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

// TextractAnalyzer calls the synchronous AnalyzeDocument API with form and
// table detection.
type TextractAnalyzer struct {
	client TextractClient
}

// NewTextractAnalyzer wraps an existing client.
func NewTextractAnalyzer(client TextractClient) *TextractAnalyzer {
	return &TextractAnalyzer{client: client}
}

// NewTextractAnalyzerFromEnv loads the default AWS configuration for region.
// A non-empty endpoint overrides the service URL.
func NewTextractAnalyzerFromEnv(ctx context.Context, region, endpoint string) (*TextractAnalyzer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	client := textract.NewFromConfig(cfg, func(o *textract.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewTextractAnalyzer(client), nil
}

// Analyze implements Analyzer.
func (a *TextractAnalyzer) Analyze(ctx context.Context, doc Document) ([]blocks.Block, error) {
	slog.Info("Starting Textract document analysis", "file", doc.Name, "bytes", len(doc.Data))

	out, err := a.client.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: doc.Data},
		FeatureTypes: []types.FeatureType{types.FeatureTypeForms, types.FeatureTypeTables},
	})
	if err != nil {
		return nil, mapTextractError(err)
	}

	list := make([]blocks.Block, 0, len(out.Blocks))
	for _, b := range out.Blocks {
		list = append(list, convertBlock(b))
	}
	slog.Info("Textract analysis completed", "file", doc.Name, "blocks", len(list))
	return list, nil
}

func mapTextractError(err error) error {
	var (
		invalidParam *types.InvalidParameterException
		tooLarge     *types.DocumentTooLargeException
		badDocument  *types.BadDocumentException
		unsupported  *types.UnsupportedDocumentException
	)
	switch {
	case errors.As(err, &invalidParam), errors.As(err, &badDocument), errors.As(err, &unsupported):
		return invalidDocument(err)
	case errors.As(err, &tooLarge):
		e := apperr.Input(apperr.CodeFileTooLarge, "Document size exceeds the maximum allowed limit")
		e.Cause = err
		return e
	default:
		return apperr.OCR(apperr.CodeOCRFailed, "Textract service error: "+err.Error(), err)
	}
}

func convertBlock(b types.Block) blocks.Block {
	out := blocks.Block{
		ID:              aws.ToString(b.Id),
		BlockType:       blocks.Type(b.BlockType),
		Text:            aws.ToString(b.Text),
		Confidence:      float64(aws.ToFloat32(b.Confidence)),
		RowIndex:        int(aws.ToInt32(b.RowIndex)),
		ColumnIndex:     int(aws.ToInt32(b.ColumnIndex)),
		RowSpan:         int(aws.ToInt32(b.RowSpan)),
		ColumnSpan:      int(aws.ToInt32(b.ColumnSpan)),
		SelectionStatus: string(b.SelectionStatus),
		Page:            int(aws.ToInt32(b.Page)),
	}
	for _, et := range b.EntityTypes {
		out.EntityTypes = append(out.EntityTypes, string(et))
	}
	if g := b.Geometry; g != nil {
		if bb := g.BoundingBox; bb != nil {
			out.Geometry.BoundingBox = blocks.BoundingBox{
				Left:   float64(bb.Left),
				Top:    float64(bb.Top),
				Width:  float64(bb.Width),
				Height: float64(bb.Height),
			}
		}
		for _, p := range g.Polygon {
			out.Geometry.Polygon = append(out.Geometry.Polygon, blocks.Point{X: float64(p.X), Y: float64(p.Y)})
		}
	}
	for _, r := range b.Relationships {
		out.Relationships = append(out.Relationships, blocks.Relationship{
			Type: blocks.RelationshipType(r.Type),
			IDs:  r.Ids,
		})
	}
	return out
}
