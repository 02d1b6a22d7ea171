package pseudolabel

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SupportCounts tallies hard assignments per class.
func SupportCounts(labels []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, k := range labels {
		counts[k]++
	}
	return counts
}

// FilterLabelSet returns the classes whose support count exceeds minSupport.
// Classes below the cut are excluded from assignment entirely, not just
// down-weighted.
func FilterLabelSet(counts []int, minSupport int) []int {
	var labelSet []int
	for k, c := range counts {
		if c > minSupport {
			labelSet = append(labelSet, k)
		}
	}
	return labelSet
}

func distanceBetween(metric Metric, a, b []float64) float64 {
	if metric == MetricCosine {
		normA := floats.Norm(a, 2)
		normB := floats.Norm(b, 2)
		if normA == 0 || normB == 0 {
			return 1.0
		}
		return 1.0 - floats.Dot(a, b)/(normA*normB)
	}
	return floats.Distance(a, b, 2)
}

// AssignNearest labels every feature row with the class of its nearest
// surviving prototype. Only classes in labelSet compete; their prototypes
// are rows of protos indexed by class.
func AssignNearest(features, protos *mat.Dense, labelSet []int, metric Metric) ([]int, error) {
	if len(labelSet) == 0 {
		return nil, ErrNoConfidentClasses
	}

	rows, _ := features.Dims()
	labels := make([]int, rows)

	for i := 0; i < rows; i++ {
		row := features.RawRowView(i)

		best := labelSet[0]
		bestDist := distanceBetween(metric, row, protos.RawRowView(best))
		for _, k := range labelSet[1:] {
			if d := distanceBetween(metric, row, protos.RawRowView(k)); d < bestDist {
				best, bestDist = k, d
			}
		}
		labels[i] = best
	}

	return labels, nil
}
