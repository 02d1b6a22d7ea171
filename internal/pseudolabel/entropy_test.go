package pseudolabel

import (
	"math"
	"testing"
)

func TestSoftmaxIsDistribution(t *testing.T) {
	p := Softmax([]float64{2, 1, -1, 0.5})

	sum := 0.0
	for _, v := range p {
		if v <= 0 {
			t.Fatalf("softmax produced non-positive probability %g", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("softmax sums to %g, want 1", sum)
	}
	if p[0] <= p[1] || p[1] <= p[3] || p[3] <= p[2] {
		t.Fatalf("softmax did not preserve logit ordering: %v", p)
	}
}

func TestSoftmaxLargeLogits(t *testing.T) {
	p := Softmax([]float64{1000, 999})
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		t.Fatalf("softmax overflowed on large logits: %v", p)
	}
	if p[0] <= p[1] {
		t.Fatalf("expected p[0] > p[1], got %v", p)
	}
}

func TestValidateDistribution(t *testing.T) {
	cases := []struct {
		name    string
		p       []float64
		wantErr bool
	}{
		{"valid", []float64{0.25, 0.25, 0.5}, false},
		{"one-hot", []float64{0, 1, 0}, false},
		{"empty", nil, true},
		{"negative", []float64{-0.1, 0.6, 0.5}, true},
		{"does not sum to one", []float64{0.5, 0.6}, true},
		{"nan", []float64{math.NaN(), 1}, true},
		{"inf", []float64{math.Inf(1), 1}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDistribution(tc.p)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %v", tc.p)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for %v: %v", tc.p, err)
			}
		})
	}
}

func TestNormalizedEntropyBounds(t *testing.T) {
	const eps = 1e-5

	if got := NormalizedEntropy([]float64{1, 0, 0, 0}, eps); got != 0 {
		t.Fatalf("one-hot entropy = %g, want 0", got)
	}

	uniform := []float64{0.25, 0.25, 0.25, 0.25}
	if got := NormalizedEntropy(uniform, eps); math.Abs(got-1) > 1e-3 {
		t.Fatalf("uniform entropy = %g, want ~1", got)
	}

	// Arbitrary valid distributions stay inside [0, 1].
	for _, p := range [][]float64{
		{0.9, 0.1},
		{0.7, 0.2, 0.1},
		{0.4, 0.3, 0.2, 0.1},
		{0.99, 0.005, 0.005},
	} {
		got := NormalizedEntropy(p, eps)
		if got < 0 || got > 1 {
			t.Fatalf("entropy %g out of [0,1] for %v", got, p)
		}
	}
}

func TestNormalizedEntropyMonotone(t *testing.T) {
	const eps = 1e-5

	sharp := NormalizedEntropy([]float64{0.95, 0.05}, eps)
	flat := NormalizedEntropy([]float64{0.6, 0.4}, eps)
	if sharp >= flat {
		t.Fatalf("expected entropy to grow with uncertainty: sharp=%g flat=%g", sharp, flat)
	}
}

func TestNormalizedEntropyOrderIndependent(t *testing.T) {
	const eps = 1e-5

	a := NormalizedEntropy([]float64{0.5, 0.3, 0.2}, eps)
	b := NormalizedEntropy([]float64{0.2, 0.5, 0.3}, eps)
	if math.Abs(a-b) > 1e-15 {
		t.Fatalf("entropy depends on dimension order: %g vs %g", a, b)
	}
}
