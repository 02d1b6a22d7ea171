package pseudolabel

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// protoEpsilon guards the denominator of prototype aggregation so classes
// with zero weight mass never divide by zero.
const protoEpsilon = 1e-8

// NormalizeForCosine prepares features for cosine-distance mode: every row
// gets a constant bias coordinate appended and is then L2-normalized.
// Applied once, upstream of all refinement rounds.
func NormalizeForCosine(features *mat.Dense) *mat.Dense {
	rows, cols := features.Dims()
	out := mat.NewDense(rows, cols+1, nil)

	for i := 0; i < rows; i++ {
		row := make([]float64, cols+1)
		copy(row, features.RawRowView(i))
		row[cols] = 1.0

		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1.0/norm, row)
		}
		out.SetRow(i, row)
	}

	return out
}

// BuildPrototypes computes one representative vector per class as the
// weight-normalized sum of feature rows:
//
//	proto_k = Σ_i w_ik * x_i / (protoEpsilon + Σ_i w_ik)
//
// weights is n×K; soft class probabilities on the first round, one-hot
// indicators afterwards. The result is K×d.
func BuildPrototypes(features, weights *mat.Dense) *mat.Dense {
	_, numClasses := weights.Dims()
	_, dim := features.Dims()

	protos := mat.NewDense(numClasses, dim, nil)
	protos.Mul(weights.T(), features)

	for k := 0; k < numClasses; k++ {
		mass := floats.Sum(mat.Col(nil, k, weights))
		row := protos.RawRowView(k)
		floats.Scale(1.0/(protoEpsilon+mass), row)
	}

	return protos
}

// HardWeights expands hard labels into a one-hot n×K weight matrix.
func HardWeights(labels []int, numClasses int) *mat.Dense {
	w := mat.NewDense(len(labels), numClasses, nil)
	for i, k := range labels {
		w.Set(i, k, 1)
	}
	return w
}
