package pseudolabel

import (
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// splitMaxIterations caps the 2-means refinement; on a 1-D signal the
// assignments almost always stop changing well before this.
const splitMaxIterations = 50

// SplitOpenSet partitions entropy scores into a low-entropy "known" group
// and a high-entropy "unknown" group with a deterministic 1-D 2-means:
// centers start at the observed minimum and maximum, then alternate
// assign/update until assignments stop changing or the iteration cap hits.
// The returned threshold is the mean of the two final centers.
func SplitOpenSet(entropy []float64) (known []bool, threshold float64) {
	n := len(entropy)
	known = make([]bool, n)
	if n == 0 {
		return known, 0
	}

	lo := floats.Min(entropy)
	hi := floats.Max(entropy)
	if lo == hi {
		// Degenerate input: every sample has the same entropy, so there is
		// no split to find. Keep everything in the known cluster.
		log.Warn().Float64("entropy", lo).Msg("identical entropy across all samples, open-set split is degenerate")
		for i := range known {
			known[i] = true
		}
		return known, lo
	}

	centers := [2]float64{lo, hi}
	assign := make([]int, n)

	for iter := 0; iter < splitMaxIterations; iter++ {
		changed := false
		for i, e := range entropy {
			c := 0
			if math.Abs(e-centers[1]) < math.Abs(e-centers[0]) {
				c = 1
			}
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		var sum [2]float64
		var count [2]int
		for i, e := range entropy {
			sum[assign[i]] += e
			count[assign[i]]++
		}
		for c := range centers {
			if count[c] > 0 {
				centers[c] = sum[c] / float64(count[c])
			}
		}
	}

	// The cluster with the higher center holds the uncertain samples.
	unknownCluster := 0
	if centers[1] > centers[0] {
		unknownCluster = 1
	}
	for i := range entropy {
		known[i] = assign[i] != unknownCluster
	}

	return known, (centers[0] + centers[1]) / 2
}
