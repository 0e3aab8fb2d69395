package comparator

import "imagedupes/types"

// RatioTest counts the candidates whose best distance is below ratio times
// the second best. Candidates without a second neighbour are not counted.
func RatioTest(candidates []types.MatchCandidate, ratio float64) int {
	good := 0
	for _, c := range candidates {
		if !c.HasSecond {
			continue
		}
		if c.Best < ratio*c.SecondBest {
			good++
		}
	}
	return good
}

// maxFeatureSimilarity keeps 100% reserved for pixel-identical pairs
const maxFeatureSimilarity = 99

// Similarity normalises good points by the smaller keypoint count and floors
// to an integer percentage. Either count being zero yields 0.
func Similarity(goodPoints, keypointsA, keypointsB int) int {
	denominator := keypointsA
	if keypointsB < denominator {
		denominator = keypointsB
	}
	if denominator <= 0 || goodPoints <= 0 {
		return 0
	}
	similarity := goodPoints * 100 / denominator
	if similarity > maxFeatureSimilarity {
		return maxFeatureSimilarity
	}
	return similarity
}

// MeetsThreshold reports whether a similarity is high enough to be reported
func MeetsThreshold(similarity, minimum int) bool {
	return similarity >= minimum
}
