// Package model defines the boundary to the frozen source-domain networks
// and the trainable linear head used during target adaptation.
package model

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FeatureExtractor maps raw input to a feature embedding. The backbone is
// trained elsewhere and only borrowed read-only here; adaptation works from
// its captured outputs.
type FeatureExtractor interface {
	Extract(input []float64) ([]float64, error)
}

// Classifier maps a feature embedding to raw class logits.
type Classifier interface {
	Logits(features []float64) []float64
	NumClasses() int
}

// Linear is a trainable linear softmax head over frozen features.
type Linear struct {
	weights *mat.Dense // K×d
	bias    []float64
	dim     int
	classes int
}

// NewLinear builds a head with small, seed-deterministic random weights.
func NewLinear(numClasses, dim int, seed uint64) *Linear {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	data := make([]float64, numClasses*dim)
	for i := range data {
		data[i] = rng.NormFloat64() * 0.01
	}

	return &Linear{
		weights: mat.NewDense(numClasses, dim, data),
		bias:    make([]float64, numClasses),
		dim:     dim,
		classes: numClasses,
	}
}

func (l *Linear) NumClasses() int { return l.classes }

func (l *Linear) Dim() int { return l.dim }

// Logits computes W·x + b.
func (l *Linear) Logits(features []float64) []float64 {
	out := make([]float64, l.classes)
	for k := 0; k < l.classes; k++ {
		out[k] = floats.Dot(l.weights.RawRowView(k), features) + l.bias[k]
	}
	return out
}

// ApplyGradient performs one SGD step for a single sample: given the loss
// gradient with respect to the logits, W_k -= lr * grad_k * x and
// b_k -= lr * grad_k.
func (l *Linear) ApplyGradient(features, gradLogits []float64, lr float64) {
	for k := 0; k < l.classes; k++ {
		row := l.weights.RawRowView(k)
		floats.AddScaled(row, -lr*gradLogits[k], features)
		l.bias[k] -= lr * gradLogits[k]
	}
}

// LinearState is the serializable form of a Linear head.
type LinearState struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

func (l *Linear) State() LinearState {
	weights := make([][]float64, l.classes)
	for k := range weights {
		weights[k] = append([]float64(nil), l.weights.RawRowView(k)...)
	}
	return LinearState{
		Weights: weights,
		Bias:    append([]float64(nil), l.bias...),
	}
}

// LinearFromState restores a head from its serialized form.
func LinearFromState(st LinearState) (*Linear, error) {
	if len(st.Weights) == 0 || len(st.Weights) != len(st.Bias) {
		return nil, fmt.Errorf("model: malformed linear state: %d weight rows, %d biases", len(st.Weights), len(st.Bias))
	}

	dim := len(st.Weights[0])
	l := &Linear{
		weights: mat.NewDense(len(st.Weights), dim, nil),
		bias:    append([]float64(nil), st.Bias...),
		dim:     dim,
		classes: len(st.Weights),
	}
	for k, row := range st.Weights {
		if len(row) != dim {
			return nil, fmt.Errorf("model: weight row %d has dim %d, want %d", k, len(row), dim)
		}
		l.weights.SetRow(k, row)
	}
	return l, nil
}
