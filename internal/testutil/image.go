package testutil

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// CreateTestImage creates a solid color image for testing.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	return imaging.New(width, height, backgroundColor)
}

// EncodePNG returns the PNG encoding of a width x height white image.
func EncodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	err := imaging.Encode(&buf, CreateTestImage(width, height, color.White), imaging.PNG)
	require.NoError(t, err)
	return buf.Bytes()
}

// EncodeJPEG returns the JPEG encoding of a width x height white image.
func EncodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	err := imaging.Encode(&buf, CreateTestImage(width, height, color.White), imaging.JPEG)
	require.NoError(t, err)
	return buf.Bytes()
}
