package pseudolabel

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// Engine runs one full pseudo-labeling pass over a target-domain capture:
// entropy scoring, open-set split, soft prototypes, nearest-prototype
// assignment and a fixed budget of hard refinement rounds.
//
// The engine is stateless across invocations; everything except the returned
// Result is scratch.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Refine produces a pseudo-label per record plus the open-set confidence
// threshold. Records must be ordered by sample index; the returned label
// vector matches that order. The models that produced the records are never
// touched, only their captured outputs.
func (e *Engine) Refine(records []Record) (*Result, error) {
	if err := e.validateRecords(records); err != nil {
		return nil, err
	}

	n := len(records)
	k := e.cfg.NumClasses

	probs := mat.NewDense(n, k, nil)
	predict := make([]int, n)
	entropy := make([]float64, n)
	for i, rec := range records {
		p := Softmax(rec.Output)
		if err := ValidateDistribution(p); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.Index, err)
		}
		probs.SetRow(i, p)
		predict[i] = argmax(p)
		entropy[i] = NormalizedEntropy(p, e.cfg.Epsilon)
	}

	features := featureMatrix(records)
	if e.cfg.Metric == MetricCosine {
		features = NormalizeForCosine(features)
	}

	knownMask, threshold := SplitOpenSet(entropy)

	var knownIdx []int
	for i, isKnown := range knownMask {
		if isKnown {
			knownIdx = append(knownIdx, i)
		}
	}

	if len(knownIdx) == 0 {
		log.Warn().Msg("open-set split left no known samples, emitting all-unknown labels")
		return e.finish(records, predict, nil, nil, threshold, true), nil
	}

	subFeatures := pickRows(features, knownIdx)
	subProbs := pickRows(probs, knownIdx)
	subPredict := make([]int, len(knownIdx))
	for i, idx := range knownIdx {
		subPredict[i] = predict[idx]
	}

	// Round 0 weights prototypes with the classifier's own probabilities and
	// counts support from its argmax prediction; later rounds use the
	// previous round's hard assignment for both.
	assigned := subPredict
	degraded := false

	for round := 0; round <= e.cfg.Rounds; round++ {
		var protos *mat.Dense
		if round == 0 {
			protos = BuildPrototypes(subFeatures, subProbs)
		} else {
			protos = BuildPrototypes(subFeatures, HardWeights(assigned, k))
		}

		labelSet := FilterLabelSet(SupportCounts(assigned, k), e.cfg.MinSupport)
		next, err := AssignNearest(subFeatures, protos, labelSet, e.cfg.Metric)
		if err != nil {
			// No confident classes: fall back to the unrefined classifier
			// prediction for the known subset.
			log.Warn().Int("round", round).Msg("no class passed the minimum-support filter, falling back to classifier predictions")
			assigned = subPredict
			degraded = true
			break
		}
		assigned = next
	}

	return e.finish(records, predict, knownIdx, assigned, threshold, degraded), nil
}

// finish assembles the full-length label vector and accuracy metrics.
// knownIdx may be nil when every sample landed in the unknown cluster.
func (e *Engine) finish(records []Record, predict, knownIdx, assigned []int, threshold float64, degraded bool) *Result {
	n := len(records)
	k := e.cfg.NumClasses

	labels := make([]Label, n)
	for i := range labels {
		labels[i] = Unknown()
	}
	for pos, idx := range knownIdx {
		labels[idx] = KnownClass(assigned[pos])
	}

	var hitBefore, hitAfter int
	for i, rec := range records {
		if predict[i] == rec.Truth {
			hitBefore++
		}
		if labels[i].Flat(k) == rec.Truth {
			hitAfter++
		}
	}
	res := &Result{
		Labels:         labels,
		Threshold:      threshold,
		Degraded:       degraded,
		AccuracyBefore: float64(hitBefore) / float64(n),
		AccuracyAfter:  float64(hitAfter) / float64(n),
	}

	log.Info().
		Float64("threshold", res.Threshold).
		Bool("degraded", res.Degraded).
		Msgf("pseudo-labeling: accuracy %.2f%% -> %.2f%%", res.AccuracyBefore*100, res.AccuracyAfter*100)

	return res
}

func (e *Engine) validateRecords(records []Record) error {
	if len(records) == 0 {
		return fmt.Errorf("pseudolabel: no records")
	}

	dim := len(records[0].Features)
	lastIndex := -1
	for i, rec := range records {
		if len(rec.Features) != dim {
			return fmt.Errorf("pseudolabel: record %d has feature dim %d, want %d", rec.Index, len(rec.Features), dim)
		}
		if len(rec.Output) != e.cfg.NumClasses {
			return fmt.Errorf("pseudolabel: record %d has %d outputs, want %d", rec.Index, len(rec.Output), e.cfg.NumClasses)
		}
		if rec.Index <= lastIndex {
			return fmt.Errorf("pseudolabel: records not ordered by sample index at position %d", i)
		}
		lastIndex = rec.Index

		for _, v := range rec.Features {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("pseudolabel: record %d has non-finite feature", rec.Index)
			}
		}
		for _, v := range rec.Output {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("pseudolabel: record %d has non-finite output", rec.Index)
			}
		}
	}
	return nil
}

func featureMatrix(records []Record) *mat.Dense {
	m := mat.NewDense(len(records), len(records[0].Features), nil)
	for i, rec := range records {
		m.SetRow(i, rec.Features)
	}
	return m
}

func pickRows(m *mat.Dense, idx []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
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
