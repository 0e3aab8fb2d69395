// Package comparator decides, for one pair of images, whether they are exact
// duplicates or how similar their SIFT features are.
package comparator

import (
	"fmt"

	"gocv.io/x/gocv"

	"imagedupes/imageprocessor"
	"imagedupes/logging"
	"imagedupes/types"
)

// Matcher returns the two nearest train distances of each query descriptor
type Matcher interface {
	Match(query, train *types.DescriptorSet) ([]types.MatchCandidate, error)
}

// FeatureSource resolves the descriptor set of an image by its index in the ImageSet
type FeatureSource interface {
	Features(index int) (*types.DescriptorSet, error)
}

// Options are the tunables of the decision procedure
type Options struct {
	SimilarityRatio   float64 // ratio test factor in (0,1]; smaller is stricter
	MinimumSimilarity int     // lowest percentage that is reported
}

// Comparator compares image pairs. It owns its Matcher, so one Comparator
// belongs to one worker at a time.
type Comparator struct {
	opts     Options
	matcher  Matcher
	features FeatureSource
	equal    func(a, b gocv.Mat) (bool, error)
}

// New creates a comparator using matcher and the precomputed features
func New(opts Options, matcher Matcher, features FeatureSource) *Comparator {
	return &Comparator{
		opts:     opts,
		matcher:  matcher,
		features: features,
		equal:    imageprocessor.PixelsEqual,
	}
}

// Compare evaluates ref against other. A nil result with a nil error means
// the pair is not reported.
func (c *Comparator) Compare(ref, other *types.ImageEntry) (*types.PairResult, error) {
	if !ref.Valid() || !other.Valid() {
		return nil, fmt.Errorf("cannot compare %s with %s: image not loaded", ref.Title, other.Title)
	}
	logging.DebugLog("Checking %s vs %s", ref.Title, other.Title)

	equal, err := c.equal(ref.Image, other.Image)
	if err != nil {
		return nil, fmt.Errorf("pixel comparison failed: %w", err)
	}
	if equal {
		return &types.PairResult{Title1: ref.Title, Title2: other.Title, Percentage: 100, Exact: true}, nil
	}

	similarity, err := c.FeatureSimilarity(ref.Index, other.Index)
	if err != nil {
		return nil, err
	}
	if !MeetsThreshold(similarity, c.opts.MinimumSimilarity) {
		return nil, nil
	}
	return &types.PairResult{Title1: ref.Title, Title2: other.Title, Percentage: similarity}, nil
}

// FeatureSimilarity matches the descriptors of two images and returns the
// percentage of good points over the smaller keypoint count
func (c *Comparator) FeatureSimilarity(refIndex, otherIndex int) (int, error) {
	refSet, err := c.features.Features(refIndex)
	if err != nil {
		return 0, fmt.Errorf("features of image %d: %w", refIndex, err)
	}
	otherSet, err := c.features.Features(otherIndex)
	if err != nil {
		return 0, fmt.Errorf("features of image %d: %w", otherIndex, err)
	}
	if refSet.Empty() || otherSet.Empty() {
		return 0, nil
	}

	candidates, err := c.matcher.Match(refSet, otherSet)
	if err != nil {
		return 0, fmt.Errorf("descriptor matching failed: %w", err)
	}

	good := RatioTest(candidates, c.opts.SimilarityRatio)
	return Similarity(good, refSet.Len(), otherSet.Len()), nil
}
