package camera

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Process rotates img clockwise by rotation degrees (a multiple of 90) and then scales it to
// width x height. A zero width or height keeps the size after rotation
func Process(img image.Image, rotation, width, height int) image.Image {
	// imaging rotates counter-clockwise
	switch normalize(rotation) {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}

	if width <= 0 || height <= 0 {
		return img
	}

	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}

	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}

func normalize(rotation int) int {
	return ((rotation % 360) + 360) % 360
}

func quarterTurn(rotation int) bool {
	r := normalize(rotation)
	return r == 90 || r == 270
}
