package imageprocessor

import (
	"fmt"

	"gocv.io/x/gocv"

	"imagedupes/types"
)

// knnNeighbours is the number of neighbours requested per query descriptor
const knnNeighbours = 2

// FlannMatcher finds the two nearest train descriptors of every query descriptor.
// It uses a FLANN KD-tree index over the train set and falls back to brute
// force when the train set is too small to hold two neighbours.
// A FlannMatcher must not be shared between goroutines.
type FlannMatcher struct {
	flann gocv.FlannBasedMatcher
	bf    gocv.BFMatcher
}

// NewFlannMatcher creates a matcher owning its OpenCV handles
func NewFlannMatcher() *FlannMatcher {
	return &FlannMatcher{
		flann: gocv.NewFlannBasedMatcher(),
		bf:    gocv.NewBFMatcher(),
	}
}

// Match returns one candidate per query descriptor. Empty sets on either side
// produce no candidates.
func (m *FlannMatcher) Match(query, train *types.DescriptorSet) ([]types.MatchCandidate, error) {
	if query.Empty() || train.Empty() {
		return nil, nil
	}
	if query.Descriptors.Cols() != train.Descriptors.Cols() {
		return nil, fmt.Errorf("descriptor length mismatch: %d vs %d", query.Descriptors.Cols(), train.Descriptors.Cols())
	}

	var matches [][]gocv.DMatch
	if train.Descriptors.Rows() < knnNeighbours {
		matches = m.bf.KnnMatch(query.Descriptors, train.Descriptors, knnNeighbours)
	} else {
		matches = m.flann.KnnMatch(query.Descriptors, train.Descriptors, knnNeighbours)
	}

	candidates := make([]types.MatchCandidate, 0, len(matches))
	for _, neighbours := range matches {
		if len(neighbours) == 0 {
			continue
		}
		c := types.MatchCandidate{Best: neighbours[0].Distance}
		if len(neighbours) > 1 {
			c.SecondBest = neighbours[1].Distance
			c.HasSecond = true
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Close releases the OpenCV matchers
func (m *FlannMatcher) Close() error {
	if err := m.flann.Close(); err != nil {
		return err
	}
	return m.bf.Close()
}
