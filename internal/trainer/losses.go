package trainer

import (
	"math"

	"github.com/openset-labs/protolabel/internal/pseudolabel"
)

// lossEpsilon stabilizes logarithms inside the loss terms.
const lossEpsilon = 1e-5

// batchLoss computes the adaptation loss and its gradient with respect to
// the logits for one mini-batch.
//
// Terms, following the target-adaptation objective:
//   - classification: cross-entropy against pseudo-labels, known-labeled
//     samples only (sentinel-labeled samples carry no classification signal)
//   - entropy: mean prediction entropy over known-labeled samples
//   - diversity: marginal entropy over the whole batch, subtracted so the
//     head keeps using all classes
//
// labels are flat-encoded: class index for known, numClasses for unknown.
// Returns loss = 0 and nil grads when the batch has no known-labeled sample.
func batchLoss(logits [][]float64, labels []int, numClasses int, clsWeight, entWeight float64, diversity bool) (float64, [][]float64) {
	batch := len(logits)
	probs := make([][]float64, batch)
	for i := range logits {
		probs[i] = pseudolabel.Softmax(logits[i])
	}

	var knownCount int
	for _, y := range labels {
		if y < numClasses {
			knownCount++
		}
	}
	if knownCount == 0 {
		return 0, nil
	}

	grads := make([][]float64, batch)
	for i := range grads {
		grads[i] = make([]float64, numClasses)
	}

	var loss float64
	kn := float64(knownCount)

	// Classification and per-sample entropy, known-labeled samples only.
	for i, y := range labels {
		if y >= numClasses {
			continue
		}
		p := probs[i]

		if clsWeight > 0 {
			loss += clsWeight * -math.Log(p[y]+lossEpsilon) / kn
			for j := range p {
				g := p[j]
				if j == y {
					g -= 1
				}
				grads[i][j] += clsWeight * g / kn
			}
		}

		if entWeight > 0 {
			h := 0.0
			for _, v := range p {
				h -= v * math.Log(v+lossEpsilon)
			}
			loss += entWeight * h / kn
			for j, v := range p {
				grads[i][j] += entWeight * -v * (math.Log(v+lossEpsilon) + h) / kn
			}
		}
	}

	// Diversity over the full batch: maximize the entropy of the marginal
	// prediction, i.e. subtract it from the loss.
	if entWeight > 0 && diversity {
		b := float64(batch)
		marginal := make([]float64, numClasses)
		for _, p := range probs {
			for j, v := range p {
				marginal[j] += v / b
			}
		}

		var gent float64
		for _, m := range marginal {
			gent -= m * math.Log(m+lossEpsilon)
		}
		loss -= entWeight * gent

		logTerm := make([]float64, numClasses)
		for j, m := range marginal {
			logTerm[j] = math.Log(m+lossEpsilon) + 1
		}
		for i, p := range probs {
			var inner float64
			for k, v := range p {
				inner += logTerm[k] * v
			}
			for j, v := range p {
				grads[i][j] += entWeight * v * (logTerm[j] - inner) / b
			}
		}
	}

	return loss, grads
}

// averageMeter tracks a running weighted mean, reset per epoch.
type averageMeter struct {
	sum   float64
	count float64
}

func (m *averageMeter) update(value float64, n int) {
	m.sum += value * float64(n)
	m.count += float64(n)
}

func (m *averageMeter) average() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / m.count
}
