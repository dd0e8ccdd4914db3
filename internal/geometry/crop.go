package geometry

import (
	"bytes"
	"fmt"
	"image"

	"github.com/MeKo-Tech/cellgrid/internal/utils"
	"github.com/disintegration/imaging"
)

// CropName is the file name given to cropped sub-regions.
const CropName = "cropped-image.jpeg"

// CropMIME is the content type of cropped sub-regions.
const CropMIME = "image/jpeg"

// Crop cuts p out of img.
func Crop(img image.Image, p PixelRect) (image.Image, error) {
	b := img.Bounds()
	r := p.Rectangle().Add(b.Min)
	out := utils.CropImageRect(img, r)
	if out.Bounds().Empty() {
		return nil, &utils.ImageProcessingError{Operation: "crop", Err: fmt.Errorf("region %s outside image", p)}
	}
	return out, nil
}

// CropJPEG cuts p out of img and encodes it as JPEG.
func CropJPEG(img image.Image, p PixelRect) ([]byte, error) {
	out, err := Crop(img, p)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(92)); err != nil {
		return nil, &utils.ImageProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
