package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		drawn   Rect
		display Size
		natural Size
		want    PixelRect
		wantErr error
	}{
		{
			name:    "letterboxed wide image",
			drawn:   Rect{X: 40, Y: 120, Width: 80, Height: 40},
			display: Size{Width: 400, Height: 400},
			natural: Size{Width: 1000, Height: 500},
			want:    PixelRect{X: 100, Y: 50, Width: 200, Height: 100},
		},
		{
			name:    "pillarboxed tall image",
			drawn:   Rect{X: 120, Y: 40, Width: 40, Height: 80},
			display: Size{Width: 400, Height: 400},
			natural: Size{Width: 500, Height: 1000},
			want:    PixelRect{X: 50, Y: 100, Width: 100, Height: 200},
		},
		{
			name:    "same aspect ratio",
			drawn:   Rect{X: 10, Y: 10, Width: 20, Height: 20},
			display: Size{Width: 100, Height: 50},
			natural: Size{Width: 1000, Height: 500},
			want:    PixelRect{X: 100, Y: 100, Width: 200, Height: 200},
		},
		{
			name:    "half pixel rounds up",
			drawn:   Rect{X: 0.25, Y: 0.25, Width: 10.25, Height: 10.25},
			display: Size{Width: 100, Height: 100},
			natural: Size{Width: 200, Height: 200},
			want:    PixelRect{X: 1, Y: 1, Width: 21, Height: 21},
		},
		{
			name:    "three pixel height is discarded",
			drawn:   Rect{X: 40, Y: 120, Width: 80, Height: 1.2},
			display: Size{Width: 400, Height: 400},
			natural: Size{Width: 1000, Height: 500},
			wantErr: ErrSelectionTooSmall,
		},
		{
			name:    "exactly five pixels is discarded",
			drawn:   Rect{X: 0, Y: 0, Width: 5, Height: 50},
			display: Size{Width: 100, Height: 100},
			natural: Size{Width: 100, Height: 100},
			wantErr: ErrSelectionTooSmall,
		},
		{
			name:    "six pixels is kept",
			drawn:   Rect{X: 0, Y: 0, Width: 6, Height: 6},
			display: Size{Width: 100, Height: 100},
			natural: Size{Width: 100, Height: 100},
			want:    PixelRect{Width: 6, Height: 6},
		},
		{
			name:    "zero display",
			drawn:   Rect{Width: 10, Height: 10},
			display: Size{},
			natural: Size{Width: 100, Height: 100},
			wantErr: ErrInvalidSize,
		},
		{
			name:    "zero natural",
			drawn:   Rect{Width: 10, Height: 10},
			display: Size{Width: 100, Height: 100},
			natural: Size{Width: 100},
			wantErr: ErrInvalidSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Translate(tt.drawn, tt.display, tt.natural)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslate_VisibleCornersRoundTrip(t *testing.T) {
	sizes := []struct{ natural, display Size }{
		{Size{4032, 3024}, Size{800, 800}},
		{Size{1240, 1754}, Size{1280, 720}},
		{Size{300, 300}, Size{640, 480}},
		{Size{1999, 37}, Size{333, 777}},
		{Size{17, 2000}, Size{1024, 768}},
	}

	for _, s := range sizes {
		got, err := Translate(visibleRect(s.display, s.natural), s.display, s.natural)
		require.NoError(t, err)
		assert.InDelta(t, 0, got.X, 1)
		assert.InDelta(t, 0, got.Y, 1)
		assert.InDelta(t, s.natural.Width, got.Width, 1)
		assert.InDelta(t, s.natural.Height, got.Height, 1)
	}
}

func TestTranslator_CustomThreshold(t *testing.T) {
	tr := Translator{MinPx: 20}
	_, err := tr.Translate(Rect{Width: 15, Height: 50}, Size{100, 100}, Size{100, 100})
	assert.ErrorIs(t, err, ErrSelectionTooSmall)

	got, err := tr.Translate(Rect{Width: 21, Height: 50}, Size{100, 100}, Size{100, 100})
	require.NoError(t, err)
	assert.Equal(t, 21, got.Width)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Rect{X: 10, Y: 5, Width: 30, Height: 15}, Normalize(40, 20, 10, 5))
	assert.Equal(t, Rect{X: 10, Y: 5, Width: 30, Height: 15}, Normalize(10, 5, 40, 20))
}

func TestTranslator_Clamp(t *testing.T) {
	tr := Translator{MinPx: MinSelectionPx}

	got, err := tr.Clamp(PixelRect{X: -10, Y: 90, Width: 50, Height: 50}, 100, 120)
	require.NoError(t, err)
	assert.Equal(t, PixelRect{X: 0, Y: 90, Width: 40, Height: 30}, got)

	_, err = tr.Clamp(PixelRect{X: 97, Y: 0, Width: 50, Height: 50}, 100, 100)
	assert.ErrorIs(t, err, ErrSelectionTooSmall)
}
