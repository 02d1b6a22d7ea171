// Package pseudolabel contains the pseudo-label refinement engine for
// source-free open-set domain adaptation: entropy scoring, open-set
// splitting, prototype building and nearest-prototype assignment.
package pseudolabel

import (
	"errors"
	"fmt"
)

// Metric selects the distance function used for prototype assignment.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

// ErrNoConfidentClasses is returned when every class falls below the
// minimum-support filter and no prototype survives.
var ErrNoConfidentClasses = errors.New("pseudolabel: no class passed the minimum-support filter")

// Config holds the knobs of one refinement pass.
type Config struct {
	NumClasses int     // count of known classes K
	Metric     Metric  // distance metric for prototype assignment
	Epsilon    float64 // numerical-stability constant for entropy scoring
	MinSupport int     // hard-assignment count a class must exceed to stay eligible
	Rounds     int     // extra hard-label refinement rounds after the soft pass
}

func DefaultConfig(numClasses int) Config {
	return Config{
		NumClasses: numClasses,
		Metric:     MetricCosine,
		Epsilon:    1e-5,
		MinSupport: 0,
		Rounds:     1,
	}
}

func (c Config) Validate() error {
	if c.NumClasses < 2 {
		return fmt.Errorf("pseudolabel: need at least 2 known classes, got %d", c.NumClasses)
	}
	if c.Metric != MetricEuclidean && c.Metric != MetricCosine {
		return fmt.Errorf("pseudolabel: unknown metric %q", c.Metric)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("pseudolabel: epsilon must be positive, got %g", c.Epsilon)
	}
	if c.MinSupport < 0 {
		return fmt.Errorf("pseudolabel: min support must be non-negative, got %d", c.MinSupport)
	}
	if c.Rounds < 0 {
		return fmt.Errorf("pseudolabel: rounds must be non-negative, got %d", c.Rounds)
	}
	return nil
}

// Record is one target-domain sample captured during a frozen forward pass.
type Record struct {
	Index    int       // dataset-global sample index
	Features []float64 // feature embedding from the frozen extractor
	Output   []float64 // raw classifier logits; softmax is applied internally
	Truth    int       // ground-truth label, used for accuracy logging only
}

const unknownClass = -1

// Label is either a known class index or the open-set "unknown" tag.
// The tagged form avoids the magic sentinel value (label == K) leaking
// through the codebase.
type Label struct {
	class int
}

func KnownClass(index int) Label { return Label{class: index} }

func Unknown() Label { return Label{class: unknownClass} }

func (l Label) IsUnknown() bool { return l.class == unknownClass }

// Class returns the known class index, or false for unknown labels.
func (l Label) Class() (int, bool) {
	if l.class == unknownClass {
		return 0, false
	}
	return l.class, true
}

// Flat returns the conventional flat encoding: the class index for known
// labels and numClasses for unknown ones.
func (l Label) Flat(numClasses int) int {
	if l.class == unknownClass {
		return numClasses
	}
	return l.class
}

// Result is the output of one refinement pass.
type Result struct {
	Labels    []Label // one per input record, in input order
	Threshold float64 // mean of the two entropy cluster centers
	Degraded  bool    // true when the pass fell back to unrefined predictions

	// Accuracy against ground truth, logged for monitoring only.
	AccuracyBefore float64
	AccuracyAfter  float64
}
