package types

import (
	"fmt"

	"gocv.io/x/gocv"
)

// ImageEntry is one image of the run, identified by its title
type ImageEntry struct {
	Index  int
	Title  string   // path relative to the scanned root
	Path   string   // absolute path on disk
	Format string   // lowercase extension without the dot
	Image  gocv.Mat // decoded BGR raster, read-only once loaded
	Err    error    // set when the file could not be decoded
}

// Valid reports whether the entry can take part in comparisons
func (e *ImageEntry) Valid() bool {
	return e != nil && e.Err == nil && !e.Image.Empty()
}

// ImageSet is the ordered list of images of a run, in discovery order
type ImageSet []*ImageEntry

// ValidCount returns the number of entries that decoded successfully
func (s ImageSet) ValidCount() int {
	n := 0
	for _, e := range s {
		if e.Valid() {
			n++
		}
	}
	return n
}

// Close releases every decoded raster
func (s ImageSet) Close() {
	for _, e := range s {
		if e != nil && !e.Image.Empty() {
			e.Image.Close()
		}
	}
}

// DescriptorSet holds the keypoints and descriptor rows extracted from one image
type DescriptorSet struct {
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat // one CV_32F row per keypoint
}

// Len returns the number of keypoints
func (d *DescriptorSet) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Keypoints)
}

// Empty reports whether no descriptor can be matched
func (d *DescriptorSet) Empty() bool {
	return d == nil || len(d.Keypoints) == 0 || d.Descriptors.Empty()
}

// Close releases the descriptor matrix
func (d *DescriptorSet) Close() {
	if d != nil && !d.Descriptors.Empty() {
		d.Descriptors.Close()
	}
}

// MatchCandidate holds the nearest and second nearest distances found for one query descriptor
type MatchCandidate struct {
	Best       float64
	SecondBest float64
	HasSecond  bool
}

// PairResult is a reported pair. Absence of a result is a nil *PairResult.
type PairResult struct {
	Title1     string
	Title2     string
	Percentage int
	Exact      bool
}

func (r PairResult) String() string {
	return fmt.Sprintf("%s | %s : %d%%", r.Title1, r.Title2, r.Percentage)
}

// Remover deletes a reported duplicate. Declared for the autoremove option,
// no implementation is wired into a run.
type Remover interface {
	Remove(title string) error
}
