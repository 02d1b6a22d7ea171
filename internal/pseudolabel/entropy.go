package pseudolabel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// distributionTolerance bounds how far a probability vector may drift from
// summing to exactly one before it is rejected.
const distributionTolerance = 1e-6

// Softmax converts raw logits into a probability distribution. The max is
// subtracted first so large logits do not overflow.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	copy(out, logits)

	floats.AddConst(-floats.Max(out), out)
	for i, v := range out {
		out[i] = math.Exp(v)
	}
	floats.Scale(1.0/floats.Sum(out), out)

	return out
}

// ValidateDistribution rejects vectors that are not probability
// distributions: negative entries, NaN/Inf, or a sum away from one.
func ValidateDistribution(p []float64) error {
	if len(p) == 0 {
		return fmt.Errorf("pseudolabel: empty distribution")
	}
	sum := 0.0
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("pseudolabel: distribution entry %d is not finite", i)
		}
		if v < 0 {
			return fmt.Errorf("pseudolabel: distribution entry %d is negative (%g)", i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > distributionTolerance {
		return fmt.Errorf("pseudolabel: distribution sums to %g, want 1", sum)
	}
	return nil
}

// NormalizedEntropy scores the uncertainty of a class distribution in [0, 1]:
// 0 for a one-hot vector, 1 for the uniform distribution over K classes.
// eps stabilizes the logarithm for zero probabilities.
func NormalizedEntropy(p []float64, eps float64) float64 {
	var h float64
	for _, v := range p {
		h -= v * math.Log(v+eps)
	}
	h /= math.Log(float64(len(p)))

	// eps shifts the score by a hair on either side of the bounds.
	return math.Min(1, math.Max(0, h))
}
