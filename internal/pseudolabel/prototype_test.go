package pseudolabel

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestBuildPrototypesHardWeights(t *testing.T) {
	// Two perfectly separable classes; with one-hot weights the prototype is
	// the arithmetic mean of each class's vectors.
	features := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		10, 0,
		10, 1,
	})
	weights := HardWeights([]int{0, 0, 1, 1}, 2)

	protos := BuildPrototypes(features, weights)

	want := [][]float64{{0, 0.5}, {10, 0.5}}
	for k, row := range want {
		got := protos.RawRowView(k)
		for j := range row {
			if math.Abs(got[j]-row[j]) > 1e-6 {
				t.Fatalf("prototype %d = %v, want %v", k, got, row)
			}
		}
	}
}

func TestBuildPrototypesSoftWeights(t *testing.T) {
	features := mat.NewDense(2, 1, []float64{0, 10})
	weights := mat.NewDense(2, 2, []float64{
		0.9, 0.1,
		0.1, 0.9,
	})

	protos := BuildPrototypes(features, weights)

	// proto_0 = (0.9*0 + 0.1*10) / (eps + 1.0) = ~1.0
	if got := protos.At(0, 0); math.Abs(got-1.0) > 1e-6 {
		t.Fatalf("soft prototype 0 = %g, want ~1.0", got)
	}
	if got := protos.At(1, 0); math.Abs(got-9.0) > 1e-6 {
		t.Fatalf("soft prototype 1 = %g, want ~9.0", got)
	}
}

func TestBuildPrototypesZeroSupport(t *testing.T) {
	// A class with zero weight mass must produce a finite (zero) prototype,
	// guarded by the stability constant in the denominator.
	features := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	weights := HardWeights([]int{0, 0}, 3)

	protos := BuildPrototypes(features, weights)

	for j := 0; j < 2; j++ {
		v := protos.At(2, j)
		if math.IsNaN(v) || math.IsInf(v, 0) || v != 0 {
			t.Fatalf("zero-support prototype entry = %g, want 0", v)
		}
	}
}

func TestNormalizeForCosine(t *testing.T) {
	features := mat.NewDense(2, 2, []float64{3, 4, 0, 0})

	out := NormalizeForCosine(features)

	rows, cols := out.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("normalized dims = %dx%d, want 2x3", rows, cols)
	}

	// Every row carries the bias coordinate and unit L2 norm.
	row := out.RawRowView(0)
	if norm := floats.Norm(row, 2); math.Abs(norm-1) > 1e-12 {
		t.Fatalf("row norm = %g, want 1", norm)
	}
	// (3,4,1) has norm sqrt(26).
	if math.Abs(row[2]-1/math.Sqrt(26)) > 1e-12 {
		t.Fatalf("bias coordinate = %g, want %g", row[2], 1/math.Sqrt(26))
	}

	// The all-zero row still gets the bias coordinate, normalized to 1.
	zero := out.RawRowView(1)
	if zero[0] != 0 || zero[1] != 0 || zero[2] != 1 {
		t.Fatalf("zero row normalized to %v", zero)
	}
}

func TestNormalizeForCosineDoesNotMutateInput(t *testing.T) {
	features := mat.NewDense(1, 2, []float64{3, 4})
	_ = NormalizeForCosine(features)

	if features.At(0, 0) != 3 || features.At(0, 1) != 4 {
		t.Fatalf("input features mutated: %v", features.RawRowView(0))
	}
}
