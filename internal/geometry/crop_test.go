package geometry

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrop(t *testing.T) {
	img := imaging.New(200, 100, color.White)

	out, err := Crop(img, PixelRect{X: 20, Y: 10, Width: 50, Height: 40})
	require.NoError(t, err)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 40, out.Bounds().Dy())

	_, err = Crop(img, PixelRect{X: 500, Y: 500, Width: 10, Height: 10})
	assert.Error(t, err)
}

func TestCrop_OffsetBounds(t *testing.T) {
	src := imaging.New(100, 100, color.Black)
	sub := src.SubImage(image.Rect(50, 50, 100, 100))

	out, err := Crop(sub, PixelRect{X: 0, Y: 0, Width: 20, Height: 20})
	require.NoError(t, err)
	assert.Equal(t, 20, out.Bounds().Dx())
}

func TestCropJPEG(t *testing.T) {
	img := imaging.New(120, 80, color.NRGBA{R: 200, G: 10, B: 10, A: 255})

	data, err := CropJPEG(img, PixelRect{X: 10, Y: 10, Width: 60, Height: 30})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 60, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}
