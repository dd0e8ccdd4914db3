package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTextract struct {
	in  *textract.AnalyzeDocumentInput
	out *textract.AnalyzeDocumentOutput
	err error
}

func (f *fakeTextract) AnalyzeDocument(_ context.Context, in *textract.AnalyzeDocumentInput, _ ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestTextractAnalyzer_ConvertsBlocks(t *testing.T) {
	fake := &fakeTextract{out: &textract.AnalyzeDocumentOutput{Blocks: []types.Block{
		{
			Id:          aws.String("cell-1"),
			BlockType:   types.BlockTypeCell,
			Confidence:  aws.Float32(98.5),
			RowIndex:    aws.Int32(1),
			ColumnIndex: aws.Int32(2),
			RowSpan:     aws.Int32(1),
			ColumnSpan:  aws.Int32(3),
			EntityTypes: []types.EntityType{types.EntityTypeColumnHeader},
			Geometry: &types.Geometry{
				BoundingBox: &types.BoundingBox{Left: 0.25, Top: 0.5, Width: 0.125, Height: 0.0625},
				Polygon:     []types.Point{{X: 0.25, Y: 0.5}},
			},
			Relationships: []types.Relationship{{Type: types.RelationshipTypeChild, Ids: []string{"w-1"}}},
		},
		{Id: aws.String("w-1"), BlockType: types.BlockTypeWord, Text: aws.String("Temp")},
	}}}

	list, err := NewTextractAnalyzer(fake).Analyze(context.Background(), Document{Name: "scan.png", Data: []byte("img"), MIME: MIMEPNG})
	require.NoError(t, err)

	assert.Equal(t, []byte("img"), fake.in.Document.Bytes)
	assert.ElementsMatch(t, []types.FeatureType{types.FeatureTypeForms, types.FeatureTypeTables}, fake.in.FeatureTypes)

	require.Len(t, list, 2)
	cell := list[0]
	assert.Equal(t, "cell-1", cell.ID)
	assert.Equal(t, blocks.TypeCell, cell.BlockType)
	assert.Equal(t, 2, cell.ColumnIndex)
	assert.Equal(t, 3, cell.ColumnSpan)
	assert.Equal(t, []string{"COLUMN_HEADER"}, cell.EntityTypes)
	assert.Equal(t, blocks.BoundingBox{Left: 0.25, Top: 0.5, Width: 0.125, Height: 0.0625}, cell.Geometry.BoundingBox)
	assert.Equal(t, []string{"w-1"}, cell.ChildIDs())
	assert.InDelta(t, 98.5, cell.Confidence, 1e-4)
	assert.Equal(t, "Temp", list[1].Text)
}

func TestTextractAnalyzer_MapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
		code apperr.Code
		msg  string
	}{
		{"invalid parameter", &types.InvalidParameterException{Message: aws.String("bad")}, apperr.KindInput, apperr.CodeInvalidDocument, "Invalid document format or corrupted file"},
		{"too large", &types.DocumentTooLargeException{Message: aws.String("big")}, apperr.KindInput, apperr.CodeFileTooLarge, "Document size exceeds the maximum allowed limit"},
		{"bad document", &types.BadDocumentException{Message: aws.String("bad")}, apperr.KindInput, apperr.CodeInvalidDocument, "Invalid document format or corrupted file"},
		{"other", errors.New("throttled"), apperr.KindOCR, apperr.CodeOCRFailed, "Textract service error: throttled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTextractAnalyzer(&fakeTextract{err: tt.err}).Analyze(context.Background(), Document{Name: "x.png"})
			ae, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, ae.Kind)
			assert.Equal(t, tt.code, ae.Code)
			assert.Equal(t, tt.msg, ae.Message)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
