package imageprocessor

import (
	"fmt"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register the webp decoder for the Go fallback
	"gocv.io/x/gocv"

	"imagedupes/logging"
)

// StandardImageLoader handles common image formats through OpenCV and falls
// back to the Go image decoders when OpenCV cannot read the file
type StandardImageLoader struct {
	BaseImageLoader
	fallback *GoImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatBMP,
				FormatTIFF,
				FormatWEBP,
			},
		},
		fallback: NewGoImageLoader(),
	}
}

// LoadImage loads a standard image format
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	img, err := l.DefaultLoadImage(path)
	if err == nil {
		return img, nil
	}

	logging.DebugLog("OpenCV could not decode %s, trying Go decoders", path)
	img, fallbackErr := l.fallback.LoadImage(path)
	if fallbackErr != nil {
		return img, fmt.Errorf("%v; fallback: %w", err, fallbackErr)
	}
	return img, nil
}

// GoImageLoader decodes with the Go image packages and converts to a BGR Mat.
// GIF has no OpenCV codec, so this is its primary loader.
type GoImageLoader struct {
	BaseImageLoader
}

// NewGoImageLoader creates a loader backed by github.com/disintegration/imaging
func NewGoImageLoader() *GoImageLoader {
	return &GoImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatBMP,
				FormatGIF,
				FormatTIFF,
				FormatWEBP,
			},
		},
	}
}

// LoadImage decodes the file, applying its EXIF orientation like OpenCV does
func (l *GoImageLoader) LoadImage(path string) (gocv.Mat, error) {
	decoded, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	mat, err := gocv.ImageToMatRGB(decoded)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image %s: %w", path, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), newImageLoadError("decoded image is empty", path)
	}
	return mat, nil
}
