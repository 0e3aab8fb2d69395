package comparator_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"imagedupes/comparator"
	"imagedupes/types"
)

type fakeMatcher struct {
	candidates []types.MatchCandidate
	err        error
	calls      int
}

func (m *fakeMatcher) Match(query, train *types.DescriptorSet) ([]types.MatchCandidate, error) {
	m.calls++
	return m.candidates, m.err
}

type fakeFeatures map[int]*types.DescriptorSet

func (f fakeFeatures) Features(index int) (*types.DescriptorSet, error) {
	set, ok := f[index]
	if !ok {
		return nil, errors.New("no features")
	}
	return set, nil
}

func solidEntry(t *testing.T, index int, title string, rows, cols int, value float64) *types.ImageEntry {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), rows, cols, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })
	return &types.ImageEntry{Index: index, Title: title, Image: img}
}

// descriptorSet builds a set with n keypoints; the matrix content is irrelevant to the fakes
func descriptorSet(t *testing.T, n int) *types.DescriptorSet {
	t.Helper()
	if n == 0 {
		return &types.DescriptorSet{Descriptors: gocv.NewMat()}
	}
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), n, 128, gocv.MatTypeCV32F)
	t.Cleanup(func() { mat.Close() })
	return &types.DescriptorSet{Keypoints: make([]gocv.KeyPoint, n), Descriptors: mat}
}

func goodCandidates(good, bad int) []types.MatchCandidate {
	candidates := make([]types.MatchCandidate, 0, good+bad)
	for i := 0; i < good; i++ {
		candidates = append(candidates, types.MatchCandidate{Best: 10, SecondBest: 100, HasSecond: true})
	}
	for i := 0; i < bad; i++ {
		candidates = append(candidates, types.MatchCandidate{Best: 90, SecondBest: 100, HasSecond: true})
	}
	return candidates
}

func defaultOptions() comparator.Options {
	return comparator.Options{SimilarityRatio: 0.6, MinimumSimilarity: 50}
}

func TestComparator_IdenticalPixelsAreExact(t *testing.T) {
	a := solidEntry(t, 0, "a.jpg", 100, 100, 42)
	b := solidEntry(t, 1, "b.jpg", 100, 100, 42)
	matcher := &fakeMatcher{}

	c := comparator.New(defaultOptions(), matcher, fakeFeatures{})
	result, err := c.Compare(a, b)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 100, result.Percentage)
	assert.True(t, result.Exact)
	assert.Equal(t, "a.jpg", result.Title1)
	assert.Equal(t, "b.jpg", result.Title2)
	assert.Zero(t, matcher.calls, "exact pairs must not reach feature matching")
}

func TestComparator_ExactPairIgnoresMinimum(t *testing.T) {
	a := solidEntry(t, 0, "a.jpg", 20, 20, 7)
	b := solidEntry(t, 1, "b.jpg", 20, 20, 7)

	c := comparator.New(comparator.Options{SimilarityRatio: 0.6, MinimumSimilarity: 100}, &fakeMatcher{}, fakeFeatures{})
	result, err := c.Compare(a, b)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 100, result.Percentage)
}

func TestComparator_DifferentDimensionsUseFeatures(t *testing.T) {
	a := solidEntry(t, 0, "a.jpg", 100, 100, 42)
	b := solidEntry(t, 1, "b.jpg", 50, 50, 42)
	matcher := &fakeMatcher{candidates: goodCandidates(80, 20)}
	features := fakeFeatures{0: descriptorSet(t, 100), 1: descriptorSet(t, 100)}

	c := comparator.New(defaultOptions(), matcher, features)
	result, err := c.Compare(a, b)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Exact)
	assert.Equal(t, 80, result.Percentage)
	assert.Equal(t, 1, matcher.calls)
}

func TestComparator_BelowMinimumIsAbsent(t *testing.T) {
	a := solidEntry(t, 0, "img0.png", 30, 30, 1)
	b := solidEntry(t, 1, "img1.png", 30, 30, 200)
	matcher := &fakeMatcher{candidates: goodCandidates(12, 88)}
	features := fakeFeatures{0: descriptorSet(t, 100), 1: descriptorSet(t, 100)}

	c := comparator.New(defaultOptions(), matcher, features)
	result, err := c.Compare(a, b)

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestComparator_ReportsAtExactlyMinimum(t *testing.T) {
	a := solidEntry(t, 0, "img0.png", 30, 30, 1)
	b := solidEntry(t, 1, "img2.png", 30, 30, 200)
	matcher := &fakeMatcher{candidates: goodCandidates(50, 50)}
	features := fakeFeatures{0: descriptorSet(t, 100), 1: descriptorSet(t, 100)}

	c := comparator.New(defaultOptions(), matcher, features)
	result, err := c.Compare(a, b)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "img0.png | img2.png : 50%", result.String())
}

func TestComparator_EmptyFeatureSetScoresZero(t *testing.T) {
	a := solidEntry(t, 0, "flat.png", 30, 30, 1)
	b := solidEntry(t, 1, "other.png", 30, 30, 2)
	matcher := &fakeMatcher{}
	features := fakeFeatures{0: descriptorSet(t, 0), 1: descriptorSet(t, 40)}

	c := comparator.New(comparator.Options{SimilarityRatio: 0.6, MinimumSimilarity: 0}, matcher, features)
	result, err := c.Compare(a, b)

	require.NoError(t, err)
	require.NotNil(t, result, "minimum 0 reports every pair")
	assert.Equal(t, 0, result.Percentage)
	assert.Zero(t, matcher.calls)
}

func TestComparator_MatcherErrorIsReturned(t *testing.T) {
	a := solidEntry(t, 0, "a.png", 30, 30, 1)
	b := solidEntry(t, 1, "b.png", 30, 30, 2)
	matcher := &fakeMatcher{err: errors.New("flann failed")}
	features := fakeFeatures{0: descriptorSet(t, 10), 1: descriptorSet(t, 10)}

	c := comparator.New(defaultOptions(), matcher, features)
	result, err := c.Compare(a, b)

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestComparator_InvalidEntryIsAnError(t *testing.T) {
	a := solidEntry(t, 0, "a.png", 30, 30, 1)
	broken := &types.ImageEntry{Index: 1, Title: "broken.jpg", Image: gocv.NewMat(), Err: errors.New("decode failed")}

	c := comparator.New(defaultOptions(), &fakeMatcher{}, fakeFeatures{})
	result, err := c.Compare(a, broken)

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestComparator_SmallerRatioNeverIncreasesScore(t *testing.T) {
	candidates := make([]types.MatchCandidate, 0, 100)
	for i := 0; i < 100; i++ {
		candidates = append(candidates, types.MatchCandidate{Best: float64(i), SecondBest: 100, HasSecond: true})
	}
	features := fakeFeatures{0: descriptorSet(t, 100), 1: descriptorSet(t, 100)}

	previous := 100
	for _, ratio := range []float64{0.9, 0.7, 0.5, 0.3} {
		c := comparator.New(comparator.Options{SimilarityRatio: ratio}, &fakeMatcher{candidates: candidates}, features)
		score, err := c.FeatureSimilarity(0, 1)
		require.NoError(t, err)
		assert.LessOrEqual(t, score, previous, "ratio %.1f", ratio)
		previous = score
	}
}
