package trainer

import (
	"github.com/openset-labs/protolabel/internal/pseudolabel"
)

// OpenSetAccuracy carries the three usual open-set evaluation numbers:
// OS1 averages per-class accuracy over the known classes, OS2 over the
// known classes plus the unknown bucket, Unknown is the unknown bucket
// alone.
type OpenSetAccuracy struct {
	OS1     float64 `json:"os1"`
	OS2     float64 `json:"os2"`
	Unknown float64 `json:"unknown"`
}

// evaluateOpenSet scores frozen-head predictions against ground truth.
// A sample is predicted unknown when its normalized prediction entropy
// exceeds threshold; otherwise it gets the argmax class. truths use the
// flat encoding (numClasses = unknown).
func evaluateOpenSet(logits [][]float64, truths []int, numClasses int, threshold, epsilon float64) OpenSetAccuracy {
	hits := make([]int, numClasses+1)
	counts := make([]int, numClasses+1)

	for i, l := range logits {
		p := pseudolabel.Softmax(l)

		pred := argmax(p)
		if pseudolabel.NormalizedEntropy(p, epsilon) > threshold {
			pred = numClasses
		}

		truth := truths[i]
		if truth < 0 || truth > numClasses {
			continue
		}
		counts[truth]++
		if pred == truth {
			hits[truth]++
		}
	}

	perClass := make([]float64, numClasses+1)
	for c := range perClass {
		if counts[c] > 0 {
			perClass[c] = float64(hits[c]) / float64(counts[c])
		}
	}

	var acc OpenSetAccuracy

	var knownSum float64
	var knownSeen int
	for c := 0; c < numClasses; c++ {
		if counts[c] > 0 {
			knownSum += perClass[c]
			knownSeen++
		}
	}
	if knownSeen > 0 {
		acc.OS1 = knownSum / float64(knownSeen)
	}

	allSeen := knownSeen
	allSum := knownSum
	if counts[numClasses] > 0 {
		acc.Unknown = perClass[numClasses]
		allSum += perClass[numClasses]
		allSeen++
	}
	if allSeen > 0 {
		acc.OS2 = allSum / float64(allSeen)
	}

	return acc
}

func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
