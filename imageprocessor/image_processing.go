package imageprocessor

import (
	"fmt"

	"gocv.io/x/gocv"
)

// SameShape reports whether both rasters have the same height, width, channel count and depth
func SameShape(img1, img2 gocv.Mat) bool {
	return img1.Rows() == img2.Rows() &&
		img1.Cols() == img2.Cols() &&
		img1.Channels() == img2.Channels() &&
		img1.Type() == img2.Type()
}

// PixelsEqual checks whether two rasters are identical pixel for pixel.
// Rasters of different shape are never equal. Otherwise every channel of the
// absolute difference must have zero nonzero pixels.
func PixelsEqual(img1, img2 gocv.Mat) (bool, error) {
	if img1.Empty() || img2.Empty() {
		return false, fmt.Errorf("cannot compare empty image")
	}
	if !SameShape(img1, img2) {
		return false, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()

	gocv.AbsDiff(img1, img2, &diff)
	if diff.Empty() {
		return false, fmt.Errorf("absolute difference produced an empty matrix")
	}

	channels := gocv.Split(diff)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	for _, ch := range channels {
		if gocv.CountNonZero(ch) != 0 {
			return false, nil
		}
	}
	return true, nil
}
