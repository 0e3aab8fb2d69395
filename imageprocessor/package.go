// Package imageprocessor decodes images and turns them into comparable data:
// pixel equality, SIFT descriptor sets and nearest-neighbour matches.
package imageprocessor

import "gocv.io/x/gocv"

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// CanLoad checks if the loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads and returns the image
	LoadImage(path string) (gocv.Mat, error)
}
